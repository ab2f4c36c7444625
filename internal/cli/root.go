// Package cli provides the command-line interface for the filings tracker.
package cli

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"edgar-tracker/internal/config"
	"edgar-tracker/internal/logging"
	"edgar-tracker/internal/models"
	"edgar-tracker/internal/notify"
	"edgar-tracker/internal/poller"
	"edgar-tracker/internal/source"
	"edgar-tracker/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// RegistrySource is the slice of the registry adapter the CLI drives:
// the poll contract plus the symbol-table download used by import.
type RegistrySource interface {
	source.Source
	FetchCompanyTickers(ctx context.Context) ([]models.Ticker, error)
}

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.FilingStore
	Source   RegistrySource
	Notifier *notify.MultiNotifier
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize SQLite store
	filingStore, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, most commands will be unavailable")
	} else {
		app.Store = filingStore
		logger.Debug().Str("path", cfg.Storage.DBPath).Msg("SQLite store initialized")
	}

	// One throttle shared by every registry call the process makes.
	throttle := source.NewThrottle(cfg.Source.ThrottleDelay)
	app.Source = source.NewEdgarSource(cfg.Source, throttle, logger)

	app.Notifier = notify.NewMultiNotifier(cfg.Notifications)

	rootCmd := &cobra.Command{
		Use:   "edgar-tracker",
		Short: "EDGAR filings tracker - watchlist polling and alerting CLI",
		Long: `edgar-tracker watches a list of company tickers, polls the SEC EDGAR
registry for their filings, and alerts exactly once per newly observed
filing. Filings, alerts, notes, and poll state persist across restarts.

Use 'edgar-tracker help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/edgar-tracker)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addTickerCommands(rootCmd, app)
	addFilingCommands(rootCmd, app)
	addAlertCommands(rootCmd, app)
	addPollCommands(rootCmd, app)
	addNoteCommands(rootCmd, app)

	return rootCmd
}

// newScheduler builds a scheduler over the app's store and source. Each
// command that polls builds its own; there is no long-lived scheduler
// outside of watch mode.
func (app *App) newScheduler() *poller.Scheduler {
	var notifier notify.Notifier
	if app.Notifier != nil {
		notifier = app.Notifier
	}
	return poller.NewScheduler(app.Store, app.Source, app.Config.Polling, notifier, app.Logger)
}

// requireStore guards commands that need persistence.
func (app *App) requireStore(output *Output) bool {
	if app.Store == nil {
		output.Error("Store not initialized. Check storage.db_path in the configuration.")
		return false
	}
	return true
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("edgar-tracker v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Polling Configuration")
	output.Printf("  Interval:        %s\n", cfg.Polling.Interval)
	output.Printf("  Max Workers:     %d\n", cfg.Polling.MaxWorkers)
	output.Printf("  Max Failures:    %d\n", cfg.Polling.MaxFailures)
	output.Printf("  Backoff Cap:     %s\n", cfg.Polling.BackoffCap)
	output.Printf("  Manual Bypass:   %v\n", cfg.Polling.ManualBypassesBackoff)
	output.Println()

	output.Bold("Source Configuration")
	agent := cfg.Source.UserAgent
	if agent == "" {
		agent = output.Red("(not set)")
	}
	output.Printf("  User Agent:      %s\n", agent)
	output.Printf("  Filings/Ticker:  %d\n", cfg.Source.FilingsPerTicker)
	output.Printf("  Throttle Delay:  %s\n", cfg.Source.ThrottleDelay)
	output.Printf("  Timeout:         %s\n", cfg.Source.Timeout)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:        %s\n", cfg.Storage.DBPath)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:         %v\n", cfg.Notifications.Enabled)
	output.Printf("  Webhook:         %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:        %v\n", cfg.Notifications.Telegram.Enabled)
	if cfg.Notifications.Telegram.BotToken != "" {
		output.Printf("  Telegram Token:  %s\n", logging.MaskToken(cfg.Notifications.Telegram.BotToken))
	}

	return nil
}
