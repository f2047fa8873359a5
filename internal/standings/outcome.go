// Package standings implements the contest-result aggregation engine: a
// per-participant resolver over the cached fetch layer, a fan-out aggregator
// with deterministic ranking, and a result-cache guard that only ever stores
// fully trustworthy computations.
package standings

import (
	"fmt"
	"math"
	"sort"
)

// OutcomeStatus tags the resolution result for one participant. The tag is
// decided once by the resolver so the aggregator and callers never
// re-inspect payload shapes.
type OutcomeStatus string

const (
	// StatusAttended means the participant has a record in the contest.
	StatusAttended OutcomeStatus = "attended"

	// StatusNotParticipated means the contest has no record for the
	// participant.
	StatusNotParticipated OutcomeStatus = "not_participated"

	// StatusError means this participant's resolution failed (transport,
	// malformed payload); siblings are unaffected.
	StatusError OutcomeStatus = "error"

	// StatusContestError means the contest lookup itself failed upstream.
	// It aborts the whole fan-out and becomes the sole outcome.
	StatusContestError OutcomeStatus = "contest_error"
)

// profileURLFormat builds the deterministic profile link for a handle.
const profileURLFormat = "https://leetcode.com/u/%s/"

// ParticipantOutcome is one participant's resolved result for a contest.
// Outcomes are immutable once constructed; they are either cached as part of
// an AggregateResult snapshot or discarded.
//
// Rating fields are pointers because the upstream omits them freely; a nil
// delta or rating sorts as negative infinity.
type ParticipantOutcome struct {
	Status OutcomeStatus `json:"-"`

	// Handle is the participant's identity. It is empty only on the
	// contest-level error sentinel.
	Handle     string `json:"username"`
	ProfileURL string `json:"link"`
	Attended   bool   `json:"attended"`

	Rank                  *int     `json:"rank,omitempty"`
	OldRating             *float64 `json:"old_rating,omitempty"`
	NewRating             *float64 `json:"new_rating,omitempty"`
	DeltaRating           *float64 `json:"delta_rating,omitempty"`
	AttendedContestsCount *int     `json:"attendedContestsCount,omitempty"`

	// Error carries the failure description for non-attended statuses.
	Error string `json:"error,omitempty"`
}

// ContestLevel reports whether this outcome is the contest-level error
// sentinel.
func (o ParticipantOutcome) ContestLevel() bool { return o.Status == StatusContestError }

// AggregateResult is the ordered outcome sequence for one aggregate request
// plus its failure counters. The sequence length equals the requested
// participant count unless a contest-level error short-circuited the
// fan-out, in which case it holds exactly the sentinel.
type AggregateResult struct {
	Outcomes             []ParticipantOutcome
	ErrorCount           int
	NotParticipatedCount int
}

// sortOutcomes orders attended outcomes before non-attended ones, then by
// delta rating descending and new rating descending as tie-break. Missing
// values sort as negative infinity. The sort is stable so equal keys keep
// insertion order.
func sortOutcomes(outcomes []ParticipantOutcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		a, b := outcomes[i], outcomes[j]
		if a.Attended != b.Attended {
			return a.Attended
		}
		ad, bd := floatOrNegInf(a.DeltaRating), floatOrNegInf(b.DeltaRating)
		if ad != bd {
			return ad > bd
		}
		return floatOrNegInf(a.NewRating) > floatOrNegInf(b.NewRating)
	})
}

func floatOrNegInf(v *float64) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return *v
}

func profileURL(handle string) string {
	return fmt.Sprintf(profileURLFormat, handle)
}
