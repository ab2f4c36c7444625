// Package poller drives the fetch, diff, persist, alert cycle for every
// watched ticker.
package poller

import (
	"math"
	"time"

	"edgar-tracker/internal/models"
)

// Backoff is the retry policy as pure data: base interval, per-outcome
// multipliers, and a cap. NextDelay is a pure function of the policy and
// the failure count, testable without real time or network.
type Backoff struct {
	Base              time.Duration
	UnavailableFactor float64
	RateLimitFactor   float64
	Cap               time.Duration
}

// NextDelay computes the delay before the next eligible poll after the
// given outcome, with failures counting the new failure (>= 1 on any
// failed outcome). Success returns the base interval. Rate limiting
// backs off harder than plain unavailability. The result is
// non-decreasing in failures and never exceeds the cap.
func (b Backoff) NextDelay(outcome models.PollOutcome, failures int) time.Duration {
	if outcome == models.OutcomeSuccess {
		return b.Base
	}

	factor := b.UnavailableFactor
	if outcome == models.OutcomeRateLimited {
		factor = b.RateLimitFactor
	}
	if factor < 1 {
		factor = 1
	}
	if failures < 1 {
		failures = 1
	}

	delay := float64(b.Base) * math.Pow(factor, float64(failures))
	if delay > float64(b.Cap) || delay < 0 || math.IsInf(delay, 1) {
		return b.Cap
	}
	return time.Duration(delay)
}

// failureOutcome reports whether the outcome increments the consecutive
// failure count. A missing registry record is permanent for the ticker
// until the user corrects it, not a transient failure.
func failureOutcome(outcome models.PollOutcome) bool {
	switch outcome {
	case models.OutcomeUnavailable, models.OutcomeRateLimited, models.OutcomeStoreError:
		return true
	}
	return false
}
