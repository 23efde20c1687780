package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/yamunaarun/narrato-audio-book/internal/document"
	"github.com/yamunaarun/narrato-audio-book/internal/library"
	"github.com/yamunaarun/narrato-audio-book/internal/store"
)

// app bundles the pieces most commands share: the database, the
// repositories over it, and the library.
type app struct {
	db        *gorm.DB
	docs      *store.Documents
	progress  *store.Progress
	bookmarks *store.Bookmarks
	lib       *library.Library
	logger    *log.Logger
	dataDir   string
	user      string
}

// openApp opens the library database under the data directory and
// wires the repositories. Close releases the database.
func openApp() (*app, error) {
	logger := log.Default()

	db, err := store.Open(filepath.Join(dataDir, "narrato.db"))
	if err != nil {
		return nil, fmt.Errorf("unable to open library database: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		_ = store.Close(db)
		return nil, fmt.Errorf("unable to migrate library database: %w", err)
	}

	docs := store.NewDocuments(db)
	return &app{
		db:        db,
		docs:      docs,
		progress:  store.NewProgress(db),
		bookmarks: store.NewBookmarks(db),
		lib:       library.New(docs, document.New(documentConfig()), viper.GetString("language"), logger),
		logger:    logger,
		dataDir:   dataDir,
		user:      userName,
	}, nil
}

func (a *app) Close() error {
	return store.Close(a.db)
}

// documentConfig reads extraction settings from the config file.
func documentConfig() document.Config {
	cfg := document.DefaultConfig()
	if viper.IsSet("document.include_code") {
		cfg.IncludeCode = viper.GetBool("document.include_code")
	}
	if viper.IsSet("document.announce_links") {
		cfg.AnnounceLinks = viper.GetBool("document.announce_links")
	}
	if viper.IsSet("document.announce_images") {
		cfg.AnnounceImages = viper.GetBool("document.announce_images")
	}
	return cfg
}

// findDocument resolves a library document by ID or by fuzzy title
// match.
func (a *app) findDocument(ctx context.Context, arg string) (*store.Document, error) {
	if doc, err := a.lib.Get(ctx, a.user, arg); err == nil {
		return doc, nil
	}

	matches, err := a.lib.Find(ctx, a.user, arg)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no document matching %q; try narrato list", arg)
	}
	return &matches[0], nil
}

// resolveDocument treats the argument as a file path first, importing
// it, and falls back to a library lookup.
func (a *app) resolveDocument(ctx context.Context, arg string) (*store.Document, error) {
	if st, err := os.Stat(arg); err == nil && !st.IsDir() {
		return a.lib.Import(ctx, a.user, arg)
	}
	return a.findDocument(ctx, arg)
}
