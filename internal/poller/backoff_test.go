package poller

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"edgar-tracker/internal/models"
)

func testBackoff() Backoff {
	return Backoff{
		Base:              15 * time.Minute,
		UnavailableFactor: 2.0,
		RateLimitFactor:   4.0,
		Cap:               4 * time.Hour,
	}
}

func TestNextDelay_SuccessResetsToBase(t *testing.T) {
	b := testBackoff()
	if got := b.NextDelay(models.OutcomeSuccess, 0); got != b.Base {
		t.Errorf("success delay = %s, want %s", got, b.Base)
	}
	// Success after a failure streak still returns base.
	if got := b.NextDelay(models.OutcomeSuccess, 7); got != b.Base {
		t.Errorf("success delay after failures = %s, want %s", got, b.Base)
	}
}

func TestNextDelay_UnavailableDoubles(t *testing.T) {
	b := testBackoff()
	cases := []struct {
		failures int
		want     time.Duration
	}{
		{1, 30 * time.Minute},
		{2, 60 * time.Minute},
		{3, 120 * time.Minute},
		{4, 240 * time.Minute},
		{5, 4 * time.Hour}, // capped
	}
	for _, c := range cases {
		if got := b.NextDelay(models.OutcomeUnavailable, c.failures); got != c.want {
			t.Errorf("NextDelay(UNAVAILABLE, %d) = %s, want %s", c.failures, got, c.want)
		}
	}
}

func TestNextDelay_RateLimitedBacksOffHarder(t *testing.T) {
	b := testBackoff()
	unavail := b.NextDelay(models.OutcomeUnavailable, 1)
	limited := b.NextDelay(models.OutcomeRateLimited, 1)
	if limited <= unavail {
		t.Errorf("rate-limited delay %s should exceed unavailable delay %s", limited, unavail)
	}
	if limited != 60*time.Minute {
		t.Errorf("NextDelay(RATE_LIMITED, 1) = %s, want 1h", limited)
	}
}

func TestNextDelay_ZeroFailuresClampedToOne(t *testing.T) {
	b := testBackoff()
	if got := b.NextDelay(models.OutcomeUnavailable, 0); got != 30*time.Minute {
		t.Errorf("NextDelay(UNAVAILABLE, 0) = %s, want 30m", got)
	}
}

func TestFailureOutcome(t *testing.T) {
	cases := map[models.PollOutcome]bool{
		models.OutcomeSuccess:     false,
		models.OutcomeNotFound:    false,
		models.OutcomeUnavailable: true,
		models.OutcomeRateLimited: true,
		models.OutcomeStoreError:  true,
	}
	for outcome, want := range cases {
		if got := failureOutcome(outcome); got != want {
			t.Errorf("failureOutcome(%s) = %v, want %v", outcome, got, want)
		}
	}
}

// Property: delay is non-decreasing in the failure count and never
// exceeds the cap, for any sane policy.
func TestProperty_BackoffMonotoneAndCapped(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	outcomes := []models.PollOutcome{
		models.OutcomeUnavailable,
		models.OutcomeRateLimited,
		models.OutcomeStoreError,
	}

	properties.Property("failure delay is monotone in failures and capped", prop.ForAll(
		func(baseMinutes int, factor float64, capHours int, failures int, outcomeIdx int) bool {
			b := Backoff{
				Base:              time.Duration(baseMinutes) * time.Minute,
				UnavailableFactor: factor,
				RateLimitFactor:   factor * 2,
				Cap:               time.Duration(capHours) * time.Hour,
			}
			outcome := outcomes[outcomeIdx%len(outcomes)]

			cur := b.NextDelay(outcome, failures)
			next := b.NextDelay(outcome, failures+1)
			if next < cur {
				t.Logf("delay decreased: %s -> %s (failures %d)", cur, next, failures)
				return false
			}
			if cur > b.Cap {
				t.Logf("delay %s exceeds cap %s", cur, b.Cap)
				return false
			}
			return true
		},
		gen.IntRange(1, 120),
		gen.Float64Range(1.0, 8.0),
		gen.IntRange(1, 48),
		gen.IntRange(0, 50),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t)
}
