package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"

	"github.com/yamunaarun/narrato-audio-book/internal/store"
)

const listTitleWidth = 40

var listCmd = &cobra.Command{
	Use:     "list [QUERY]",
	Aliases: []string{"ls", "find"},
	Short:   "List documents in your library",
	Long:    paragraph("\nList your documents, newest first. With a query, fuzzy-match against titles."),
	Example: paragraph("narrato list\nnarrato list heron"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		docs, err := a.lib.Find(cmd.Context(), a.user, query)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			if query == "" {
				fmt.Println(paragraph(fmt.Sprintf("\nYour library is empty. Import something with %s.", keyword("narrato add FILE"))))
				return nil
			}
			return fmt.Errorf("no document matching %q", query)
		}

		fmt.Print(renderDocumentList(docs))
		return nil
	},
}

// showLibrary lists the library with a hint on how to play from it.
func showLibrary(ctx context.Context, a *app) error {
	docs, err := a.lib.List(ctx, a.user)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println(paragraph(fmt.Sprintf("\nYour library is empty. Import something with %s, or pipe text straight in.", keyword("narrato add FILE"))))
		return nil
	}

	fmt.Print(renderDocumentList(docs))
	fmt.Println(paragraph(fmt.Sprintf("\nPlay one with %s.", keyword("narrato TITLE"))))
	return nil
}

// renderDocumentList formats documents as aligned rows.
func renderDocumentList(docs []store.Document) string {
	var b strings.Builder
	for _, doc := range docs {
		title := runewidth.FillRight(truncate.StringWithTail(doc.Title, listTitleWidth, "…"), listTitleWidth)
		b.WriteString(fmt.Sprintf("%s  %s  %s  %s  %s\n",
			subtle(doc.ID[:8]),
			titleStyle.Render(title),
			subtle(runewidth.FillRight(doc.SourceFormat, 4)),
			subtle(runewidth.FillLeft(humanize.Bytes(uint64(len(doc.NarrationText))), 7)),
			subtle(humanize.Time(doc.CreatedAt)),
		))
	}
	return b.String()
}
