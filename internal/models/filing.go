package models

import "time"

// Filing represents a single regulatory filing observed for a ticker.
// A filing is identified by (symbol, filing_id, hash): if the registry
// reissues a filing id with different content, the new hash makes it a
// distinct record rather than an overwrite.
type Filing struct {
	ID        int64 // store row id, 0 until persisted
	Symbol    string
	FilingID  string // source-assigned identifier (SEC accession number)
	Hash      string // content hash distinguishing amendments
	Type      FilingType
	Title     string
	FiledAt   time.Time
	URL       string
	Source    Source
	Read      bool
	CreatedAt time.Time
}

// Key returns the identity key used for dedup.
func (f Filing) Key() FilingKey {
	return FilingKey{FilingID: f.FilingID, Hash: f.Hash}
}

// FilingKey is the dedup identity of a filing within one ticker.
type FilingKey struct {
	FilingID string
	Hash     string
}

// Alert represents a user-visible notification for a newly observed
// filing. Exactly one alert ever exists per filing row.
type Alert struct {
	ID          int64
	FilingRowID int64
	CreatedAt   time.Time
	Read        bool

	// Denormalized for display, populated by store queries.
	Symbol   string
	FilingID string
	Title    string
	Type     FilingType
}

// PollState holds the scheduler's persisted per-ticker state so that a
// restart neither resets backoff nor re-alerts on known filings.
type PollState struct {
	Symbol              string
	LastAttempt         time.Time
	LastOutcome         PollOutcome
	ConsecutiveFailures int
	NextEligible        time.Time
	LastError           string
}

// Degraded reports whether the ticker has exceeded the failure threshold.
func (p PollState) Degraded(maxFailures int) bool {
	return maxFailures > 0 && p.ConsecutiveFailures >= maxFailures
}
