package similarity

import (
	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/store"
)

// maxViolations mirrors identity's cap on a single DisplayNameCheck's
// reported collision list.
const maxViolations = 5

// Checker scans a candidate display name against every other identity's
// display name and reports the ones above limit.
type Checker struct {
	Limit float64
}

// NewChecker builds a Checker with the configured similarity threshold.
func NewChecker(limit float64) Checker {
	return Checker{Limit: limit}
}

// Violations compares name against every record not belonging to self, in
// store order, returning the ones scoring above c.Limit. It stops as soon
// as it has collected 5 — it does not rank by similarity first, matching
// the original's scan-and-break (display_name.rs's VIOLATIONS_CAP check).
func (c Checker) Violations(self identity.Context, name string, existing []store.DisplayNameRecord) []identity.DisplayNameEntry {
	var entries []identity.DisplayNameEntry
	for _, rec := range existing {
		if rec.Context == self {
			continue
		}
		score := Score(name, rec.DisplayName)
		if score <= c.Limit {
			continue
		}
		if len(entries) == maxViolations {
			break
		}
		entries = append(entries, identity.DisplayNameEntry{
			DisplayName: rec.DisplayName,
			Context:     rec.Context,
			Similarity:  score,
		})
	}
	return entries
}
