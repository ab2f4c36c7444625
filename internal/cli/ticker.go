// Package cli provides the command-line interface for the filings tracker.
package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "edgar-tracker/internal/errors"
	"edgar-tracker/internal/models"
	"edgar-tracker/internal/poller"
)

// addTickerCommands adds watchlist management commands.
func addTickerCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "ticker",
		Short: "Watchlist management",
		Long:  "Add, remove, and inspect the tickers being tracked for filings.",
	}

	cmd.AddCommand(newTickerAddCmd(app))
	cmd.AddCommand(newTickerListCmd(app))
	cmd.AddCommand(newTickerRemoveCmd(app))
	cmd.AddCommand(newTickerWatchCmd(app, true))
	cmd.AddCommand(newTickerWatchCmd(app, false))
	cmd.AddCommand(newTickerSearchCmd(app))
	cmd.AddCommand(newTickerImportCmd(app))

	rootCmd.AddCommand(cmd)
}

func newTickerAddCmd(app *App) *cobra.Command {
	var cik, name, tags string
	cmd := &cobra.Command{
		Use:   "add SYMBOL",
		Short: "Add a ticker to the watchlist",
		Long: `Add a ticker to the watchlist. Without a CIK the ticker is stored but
never polled; supply one with --cik or import the registry's symbol
table first with 'ticker import'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			ticker := &models.Ticker{
				Symbol:  symbol,
				CIK:     strings.TrimSpace(cik),
				Name:    name,
				Tags:    tags,
				Watched: true,
			}
			if err := app.Store.UpsertTicker(ctx, ticker); err != nil {
				output.Error("Failed to add ticker: %v", err)
				return err
			}
			// The upsert may have kept a CIK already on record or filled
			// one from the imported symbol table; poll with the stored row.
			if saved, err := app.Store.GetTicker(ctx, symbol); err == nil {
				ticker = saved
			}

			var firstPoll *poller.RunResult
			if ticker.CIK != "" {
				// A new ticker polls right away rather than waiting out a
				// full interval.
				if result, err := app.newScheduler().RunOnce(ctx, symbol); err == nil {
					firstPoll = result
				} else {
					output.Warning("Initial poll failed: %v", err)
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ticker":     ticker,
					"first_poll": firstPoll,
				})
			}
			output.Success("✓ Added %s to the watchlist", symbol)
			if ticker.CIK == "" {
				output.Warning("No CIK on record; %s will not be polled until one is set.", symbol)
				output.Dim("Run 'edgar-tracker ticker import' or 'ticker add %s --cik <number>'.", symbol)
				return nil
			}
			output.Printf("  CIK: %s\n", ticker.CIK)
			if firstPoll != nil {
				if firstPoll.NewFilings > 0 {
					output.Success("✓ %d filings found on first poll", firstPoll.NewFilings)
				} else if len(firstPoll.Failed) > 0 {
					output.Warning("First poll failed; see 'edgar-tracker status'.")
				} else {
					output.Dim("No filings yet.")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cik, "cik", "", "registry filer identifier (CIK)")
	cmd.Flags().StringVar(&name, "name", "", "company name")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")
	return cmd
}

func newTickerListCmd(app *App) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List watched tickers",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			tickers, err := app.Store.ListTickers(ctx, !all)
			if err != nil {
				output.Error("Failed to list tickers: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(tickers)
			}
			if len(tickers) == 0 {
				output.Info("Watchlist is empty.")
				output.Dim("Add a ticker with 'edgar-tracker ticker add SYMBOL'.")
				return nil
			}

			table := NewTable(output, "Symbol", "CIK", "Exchange", "Name", "Tags", "Watched")
			for _, t := range tickers {
				cik := t.CIK
				if cik == "" {
					cik = output.Red("missing")
				}
				watched := ""
				if t.Watched {
					watched = output.Green("✓")
				}
				table.AddRow(
					output.BoldText(t.Symbol),
					cik,
					t.Exchange,
					TruncateString(t.Name, 36),
					t.Tags,
					watched,
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include unwatched tickers")
	return cmd
}

func newTickerRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm SYMBOL",
		Aliases: []string{"remove"},
		Short:   "Remove a ticker from the watchlist",
		Long: `Remove a ticker. Its filings and alerts stay in the database as
history; only the ticker row and its poll state are deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := app.Store.RemoveTicker(ctx, symbol); err != nil {
				if apperrors.Is(err, apperrors.ErrTickerNotFound) {
					output.Warning("%s is not on the watchlist.", symbol)
					return nil
				}
				output.Error("Failed to remove ticker: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"removed": symbol})
			}
			output.Success("✓ Removed %s", symbol)
			return nil
		},
	}
}

func newTickerWatchCmd(app *App, watch bool) *cobra.Command {
	use, short := "watch SYMBOL", "Resume polling a ticker"
	if !watch {
		use, short = "unwatch SYMBOL", "Pause polling a ticker without removing it"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := app.Store.SetWatched(ctx, symbol, watch); err != nil {
				if apperrors.Is(err, apperrors.ErrTickerNotFound) {
					output.Error("%s is not on the watchlist.", symbol)
				} else {
					output.Error("Failed to update ticker: %v", err)
				}
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"symbol": symbol, "watched": watch})
			}
			if watch {
				output.Success("✓ %s is watched again", symbol)
			} else {
				output.Success("✓ %s paused (filings history kept)", symbol)
			}
			return nil
		},
	}
}

func newTickerSearchCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the local symbol table",
		Long:  "Search imported tickers by symbol prefix or company name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			matches, err := app.Store.SearchTickers(ctx, args[0], limit)
			if err != nil {
				output.Error("Search failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(matches)
			}
			if len(matches) == 0 {
				output.Info("No matches for %q.", args[0])
				output.Dim("The symbol table may be empty; run 'edgar-tracker ticker import'.")
				return nil
			}
			table := NewTable(output, "Symbol", "CIK", "Exchange", "Name")
			for _, t := range matches {
				table.AddRow(output.BoldText(t.Symbol), t.CIK, t.Exchange, TruncateString(t.Name, 48))
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum matches to show")
	return cmd
}

func newTickerImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import the registry symbol table",
		Long: `Download the registry's full ticker-to-CIK table and merge it into the
local database. Watched flags and tags on existing rows are preserved;
missing CIKs on watchlist entries are filled in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !app.requireStore(output) {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			output.Info("Downloading symbol table...")
			tickers, err := app.Source.FetchCompanyTickers(ctx)
			if err != nil {
				output.Error("Download failed: %v", err)
				return err
			}

			n, err := app.Store.BulkUpsertTickers(ctx, tickers)
			if err != nil {
				output.Error("Import failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int{"imported": n})
			}
			output.Success("✓ Imported %d tickers", n)
			return nil
		},
	}
}
