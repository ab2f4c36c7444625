// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"edgar-tracker/internal/models"
)

// FilingStore defines the interface for filings persistence. It is the
// only shared mutable resource between concurrent poll workers, so every
// logical write is a single atomic operation at this boundary.
type FilingStore interface {
	// Tickers
	UpsertTicker(ctx context.Context, ticker *models.Ticker) error
	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)
	ListTickers(ctx context.Context, watchedOnly bool) ([]models.Ticker, error)
	SetWatched(ctx context.Context, symbol string, watched bool) error
	RemoveTicker(ctx context.Context, symbol string) error
	SearchTickers(ctx context.Context, query string, limit int) ([]models.Ticker, error)
	BulkUpsertTickers(ctx context.Context, tickers []models.Ticker) (int, error)

	// Filings. UpsertFiling inserts the filing keyed on
	// (symbol, filing_id, hash) and, in the same transaction, creates its
	// alert when the row is newly inserted. The returned flag is the only
	// signal that an alert was created: re-observing a known filing is a
	// no-op and never produces a second alert.
	UpsertFiling(ctx context.Context, filing *models.Filing) (bool, error)
	KnownFilingKeys(ctx context.Context, symbol string) (map[models.FilingKey]struct{}, error)
	ListFilings(ctx context.Context, filter FilingFilter) ([]models.Filing, error)
	GetFiling(ctx context.Context, rowID int64) (*models.Filing, error)
	MarkFilingRead(ctx context.Context, rowID int64) error

	// Alerts
	ListAlerts(ctx context.Context, unreadOnly bool, limit int) ([]models.Alert, error)
	UnreadAlertCount(ctx context.Context) (int, error)
	MarkAlertRead(ctx context.Context, alertID int64) error
	MarkAllAlertsRead(ctx context.Context) (int, error)

	// Poll state
	SavePollState(ctx context.Context, state *models.PollState) error
	LoadPollStates(ctx context.Context) (map[string]models.PollState, error)

	// Notes
	SaveNote(ctx context.Context, note *models.Note) error
	ListNotes(ctx context.Context, symbol string, limit int) ([]models.Note, error)
	DeleteNote(ctx context.Context, noteID int64) error

	// Lifecycle
	Close() error
}

// FilingFilter represents filters for querying filings.
type FilingFilter struct {
	Symbol     string
	Type       models.FilingType
	Since      time.Time
	UnreadOnly bool
	Limit      int
}
