// Package source provides filing registry adapters.
package source

import (
	"context"

	"edgar-tracker/internal/models"
)

// Source defines the interface for listing and fetching regulatory
// filings from an external registry. Implementations perform network I/O
// and local document caching only; they never touch the filing store.
type Source interface {
	// ListFilings returns filing metadata for a ticker, most-recent-first,
	// bounded to the configured maximum count. Fails with
	// errors.ErrSourceUnavailable, ErrSourceRateLimited or
	// ErrSourceNotFound (wrapped in a SourceError).
	ListFilings(ctx context.Context, ticker models.Ticker) ([]models.Filing, error)

	// FetchDocument retrieves the raw document body for a filing, using
	// the local cache when present. Same error kinds as ListFilings.
	FetchDocument(ctx context.Context, filing models.Filing) ([]byte, error)
}
