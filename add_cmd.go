package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchMode bool

var addCmd = &cobra.Command{
	Use:     "add PATH...",
	Short:   "Import documents into your library",
	Long:    paragraph(fmt.Sprintf("\nImport files into your library so they can be narrated by title. Directories are walked for anything %s can read.", keyword("narrato"))),
	Example: paragraph("narrato add notes.md\nnarrato add docs/ journal.txt\nnarrato add --watch inbox/"),
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		ctx := cmd.Context()

		if watchMode {
			if len(args) != 1 {
				return errors.New("--watch takes exactly one directory")
			}
			return watchFolder(ctx, a, args[0])
		}

		for _, arg := range args {
			st, err := os.Stat(arg)
			if err != nil {
				return fmt.Errorf("unable to stat %s: %w", arg, err)
			}

			if st.IsDir() {
				docs, err := a.lib.ImportDir(ctx, a.user, arg)
				if err != nil {
					return err
				}
				fmt.Printf("Imported %d documents from %s\n", len(docs), keyword(arg))
				continue
			}

			doc, err := a.lib.Import(ctx, a.user, arg)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %s %s\n", titleStyle.Render(doc.Title), subtle(doc.ID))
		}
		return nil
	},
}

// watchFolder blocks, importing eligible files dropped into dir, until
// interrupted.
func watchFolder(ctx context.Context, a *app, dir string) error {
	w, err := a.lib.Watch(a.user, dir)
	if err != nil {
		return err
	}
	defer w.Close() //nolint:errcheck

	fmt.Println(paragraph(fmt.Sprintf("Watching %s. Drop files in to import them; %s to stop.", keyword(dir), keyword("ctrl-c"))))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	for {
		select {
		case doc := <-w.Imported:
			fmt.Printf("Imported %s %s\n", titleStyle.Render(doc.Title), subtle(doc.ID))
		case <-quit:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func init() {
	addCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "watch a directory, importing files dropped into it")
}
