package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:     "edit DOCUMENT",
	Short:   "Edit a document's narration text",
	Long:    paragraph(fmt.Sprintf("\n%s the speakable text of a document in your EDITOR. The imported source stays as it is; only what gets read aloud changes.", keyword("Edit"))),
	Example: paragraph("narrato edit \"field guide\""),
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		ctx := cmd.Context()
		doc, err := a.findDocument(ctx, args[0])
		if err != nil {
			return err
		}

		tmp, err := os.CreateTemp("", "narrato-*.txt")
		if err != nil {
			return fmt.Errorf("unable to create temp file: %w", err)
		}
		path := tmp.Name()
		defer os.Remove(path) //nolint:errcheck

		if _, err := tmp.WriteString(doc.NarrationText); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("unable to write temp file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("unable to close temp file: %w", err)
		}

		c, err := editor.Cmd("Narrato", path)
		if err != nil {
			return fmt.Errorf("unable to open editor: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		edited, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to read edited file: %w", err)
		}

		if string(edited) == doc.NarrationText {
			fmt.Println("No changes.")
			return nil
		}

		if err := a.lib.UpdateNarration(ctx, a.user, doc.ID, string(edited)); err != nil {
			return err
		}
		fmt.Printf("Updated narration for %s\n", titleStyle.Render(doc.Title))
		return nil
	},
}
