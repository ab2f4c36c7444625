// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSourceRateLimited = errors.New("source rate limited")
	ErrSourceNotFound    = errors.New("source has no record")
	ErrStoreWrite        = errors.New("store write failed")
	ErrTickerNotFound    = errors.New("ticker not found")
	ErrNoCIK             = errors.New("ticker has no registry identifier")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrShuttingDown      = errors.New("scheduler shutting down")
)

// SourceError represents an error from the external filings registry.
type SourceError struct {
	Host   string
	Op     string
	Status int
	Kind   error // one of the Source* sentinels
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source error [%s %s]: %v: %v", e.Host, e.Op, e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("source error [%s %s]: %v (status %d)", e.Host, e.Op, e.Kind, e.Status)
	}
	return fmt.Sprintf("source error [%s %s]: %v", e.Host, e.Op, e.Kind)
}

// Unwrap exposes the sentinel so errors.Is(err, ErrSourceRateLimited)
// works through the wrapper.
func (e *SourceError) Unwrap() error {
	return e.Kind
}

// NewSourceError creates a new SourceError.
func NewSourceError(host, op string, status int, kind, err error) *SourceError {
	return &SourceError{
		Host:   host,
		Op:     op,
		Status: status,
		Kind:   kind,
		Err:    err,
	}
}

// StoreError represents a persistence failure. A StoreError during a poll
// cycle aborts the cycle before alerting.
type StoreError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("store error [%s] %s: %v", e.Op, e.Symbol, e.Err)
	}
	return fmt.Sprintf("store error [%s]: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return ErrStoreWrite
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, symbol string, err error) *StoreError {
	return &StoreError{
		Op:     op,
		Symbol: symbol,
		Err:    err,
	}
}

// ConfigError represents a startup configuration failure. These are the
// only user-fatal errors in the tracker.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error [%s]: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfigInvalid
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
