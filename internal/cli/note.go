// Package cli provides the command-line interface for the filings tracker.
package cli

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"edgar-tracker/internal/models"
)

// addNoteCommands adds research note commands.
func addNoteCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Research notes",
		Long:  "Attach free-form research notes to tickers.",
	}

	cmd.AddCommand(newNoteAddCmd(app))
	cmd.AddCommand(newNoteListCmd(app))
	cmd.AddCommand(newNoteRemoveCmd(app))

	rootCmd.AddCommand(cmd)
}

func newNoteAddCmd(app *App) *cobra.Command {
	var title, attachment string
	cmd := &cobra.Command{
		Use:   "add SYMBOL CONTENT",
		Short: "Add a note to a ticker",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			note := &models.Note{
				Symbol:     strings.ToUpper(strings.TrimSpace(args[0])),
				Title:      title,
				Content:    strings.Join(args[1:], " "),
				Attachment: attachment,
			}
			if err := app.Store.SaveNote(ctx, note); err != nil {
				output.Error("Failed to save note: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(note)
			}
			output.Success("✓ Note %d saved for %s", note.ID, note.Symbol)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "note title")
	cmd.Flags().StringVar(&attachment, "attach", "", "file path or URL to attach")
	return cmd
}

func newNoteListCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list SYMBOL",
		Short: "List notes for a ticker, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			notes, err := app.Store.ListNotes(ctx, symbol, limit)
			if err != nil {
				output.Error("Failed to list notes: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(notes)
			}
			if len(notes) == 0 {
				output.Info("No notes for %s.", symbol)
				return nil
			}

			for _, n := range notes {
				header := FormatDate(n.CreatedAt)
				if n.Title != "" {
					header += "  " + output.BoldText(n.Title)
				}
				output.Printf("[%d] %s\n", n.ID, header)
				output.Printf("    %s\n", n.Content)
				if n.Attachment != "" {
					output.Dim("    attachment: %s", n.Attachment)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum notes to show")
	return cmd
}

func newNoteRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"remove"},
		Short:   "Delete a note",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			noteID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				output.Error("Invalid note id %q", args[0])
				return err
			}
			if err := app.Store.DeleteNote(ctx, noteID); err != nil {
				output.Error("Failed to delete note: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"deleted": noteID})
			}
			output.Success("✓ Note %d deleted", noteID)
			return nil
		},
	}
}
