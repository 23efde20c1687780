package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yamunaarun/narrato-audio-book/internal/store"
)

var deleteBookmark string

var bookmarksCmd = &cobra.Command{
	Use:     "bookmarks [DOCUMENT]",
	Aliases: []string{"bm"},
	Short:   "List or delete bookmarks",
	Long:    paragraph(fmt.Sprintf("\nList the bookmarks of a document. Press %s while playing to drop one.", keyword("b"))),
	Example: paragraph("narrato bookmarks \"field guide\"\nnarrato bookmarks --delete 4f6c0d2e"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		ctx := cmd.Context()

		if deleteBookmark != "" && len(args) == 0 {
			if err := a.bookmarks.Delete(ctx, a.user, deleteBookmark); err != nil {
				return err
			}
			fmt.Println("Deleted bookmark", subtle(deleteBookmark))
			return nil
		}

		if len(args) == 0 {
			return errors.New("name a document, or pass --delete ID")
		}

		doc, err := a.findDocument(ctx, args[0])
		if err != nil {
			return err
		}

		marks, err := a.bookmarks.ListByDocument(ctx, a.user, doc.ID)
		if err != nil {
			return err
		}

		// with a document in hand the ID may be a prefix, as listed
		if deleteBookmark != "" {
			id := deleteBookmark
			for _, m := range marks {
				if strings.HasPrefix(m.ID, deleteBookmark) {
					id = m.ID
					break
				}
			}
			if err := a.bookmarks.Delete(ctx, a.user, id); err != nil {
				return err
			}
			fmt.Println("Deleted bookmark", subtle(id))
			return nil
		}
		if len(marks) == 0 {
			fmt.Println(paragraph(fmt.Sprintf("\nNo bookmarks in %s yet. Press %s while playing to add one.", titleStyle.Render(doc.Title), keyword("b"))))
			return nil
		}

		fmt.Print(renderBookmarkList(marks))
		return nil
	},
}

func renderBookmarkList(marks []store.Bookmark) string {
	var b strings.Builder
	for _, m := range marks {
		label := m.Label
		if label == "" {
			label = fmt.Sprintf("chunk %d", m.ChunkIndex+1)
		}
		b.WriteString(fmt.Sprintf("%s  chunk %3d  %6s  %s  %s\n",
			subtle(m.ID[:8]),
			m.ChunkIndex+1,
			subtle(formatSeconds(m.ElapsedSeconds)),
			label,
			subtle(humanize.Time(m.CreatedAt)),
		))
	}
	return b.String()
}

func formatSeconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Second).String()
}

func init() {
	bookmarksCmd.Flags().StringVarP(&deleteBookmark, "delete", "d", "", "delete a bookmark by ID")
}
