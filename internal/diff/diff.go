// Package diff computes the set of genuinely new filings from a fresh
// registry listing and the previously stored state for a ticker.
package diff

import (
	"edgar-tracker/internal/models"
)

// New returns the listed filings whose (filing id, hash) pair is absent
// from the known set, preserving the listing's most-recent-first order.
// A filing id reissued with a different hash is an amendment and counts
// as new; the original record is untouched. Duplicate keys within a
// single listing are collapsed to their first occurrence.
//
// Pure function: no I/O, deterministic.
func New(listed []models.Filing, known map[models.FilingKey]struct{}) []models.Filing {
	if len(listed) == 0 {
		return nil
	}

	seen := make(map[models.FilingKey]struct{}, len(listed))
	var fresh []models.Filing
	for _, f := range listed {
		key := f.Key()
		if _, ok := known[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, f)
	}
	return fresh
}
