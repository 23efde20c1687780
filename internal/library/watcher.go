package library

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/yamunaarun/narrato-audio-book/internal/document"
	"github.com/yamunaarun/narrato-audio-book/internal/store"
)

const (
	// settleDelay gives the writer time to finish before we read the
	// dropped file.
	settleDelay = 100 * time.Millisecond

	// debounceWindow collapses the create/write bursts editors emit
	// into one import.
	debounceWindow = 2 * time.Second
)

// Watcher auto-imports eligible files dropped into a watched folder.
type Watcher struct {
	lib    *Library
	fsw    *fsnotify.Watcher
	owner  string
	logger *log.Logger

	// Imported delivers each auto-imported document. Slow consumers
	// miss entries rather than stalling the watch loop.
	Imported chan store.Document

	done chan struct{}
	wg   sync.WaitGroup

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// Watch starts watching dir and importing for owner. Close the watcher
// to stop.
func (l *Library) Watch(owner, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		lib:      l,
		fsw:      fsw,
		owner:    owner,
		logger:   l.logger,
		Imported: make(chan store.Document, 8),
		done:     make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	w.wg.Add(1)
	go w.run()

	l.logger.Info("watching folder", "dir", dir)
	return w, nil
}

// Close stops the watch loop.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			ext := filepath.Ext(event.Name)
			if ext == "" || !document.Supported(ext) {
				continue
			}
			if !w.firstInWindow(event.Name) {
				continue
			}
			w.logger.Debug("watch event", "file", event.Name, "op", event.Op)
			w.importFile(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watch error", "err", err)
		case <-w.done:
			return
		}
	}
}

// firstInWindow reports whether this path has not fired within the
// debounce window, refreshing its timestamp either way.
func (w *Watcher) firstInWindow(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	last, seen := w.lastSeen[path]
	w.lastSeen[path] = now
	return !seen || now.Sub(last) >= debounceWindow
}

func (w *Watcher) importFile(path string) {
	time.Sleep(settleDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doc, err := w.lib.Import(ctx, w.owner, path)
	if err != nil {
		w.logger.Warn("auto-import failed", "path", path, "err", err)
		return
	}

	select {
	case w.Imported <- *doc:
	default:
	}
}
