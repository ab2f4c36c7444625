// Package models provides domain models for the filings tracker.
package models

import (
	"time"
)

// FilingType represents the type of a regulatory filing.
type FilingType string

const (
	FilingAnnual    FilingType = "10-K"
	FilingQuarterly FilingType = "10-Q"
	FilingCurrent   FilingType = "8-K"
	FilingProxy     FilingType = "DEF 14A"
	FilingOwnership FilingType = "4"
)

// Source identifies the registry a filing came from.
type Source string

const (
	SourceSEC Source = "sec"
)

// PollOutcome represents the result of a single poll attempt.
type PollOutcome string

const (
	OutcomeSuccess     PollOutcome = "SUCCESS"
	OutcomeUnavailable PollOutcome = "UNAVAILABLE"
	OutcomeRateLimited PollOutcome = "RATE_LIMITED"
	OutcomeNotFound    PollOutcome = "NOT_FOUND"
	OutcomeStoreError  PollOutcome = "STORE_ERROR"
)

// Ticker represents a tracked company symbol.
type Ticker struct {
	Symbol    string
	CIK       string // registry filer identifier, zero-padded; empty means not pollable
	Exchange  string
	Name      string
	Tags      string // comma-separated
	Watched   bool
	CreatedAt time.Time
}

// Pollable reports whether the scheduler can poll this ticker.
func (t Ticker) Pollable() bool {
	return t.Watched && t.CIK != ""
}

// Note represents a user research note attached to a ticker.
type Note struct {
	ID         int64
	Symbol     string
	Title      string
	Content    string
	Attachment string // file path or URL
	CreatedAt  time.Time
}
