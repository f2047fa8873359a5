package standings

import (
	"context"
	"fmt"

	"github.com/ahrav/go-standings/internal/upstream"
)

// Fetcher is the slice of the fetch layer the resolver consumes.
type Fetcher interface {
	RecordLocator(contestID, handle string) string
	FetchRecords(ctx context.Context, locator string) (*upstream.Payload, error)
}

// Resolver resolves one participant's outcome for one contest. All failures
// short of a contest-level structured error are contained here as Error
// outcomes and never abort sibling resolutions.
type Resolver struct {
	fetcher Fetcher
}

// NewResolver returns a resolver backed by the given fetch layer.
func NewResolver(fetcher Fetcher) *Resolver {
	return &Resolver{fetcher: fetcher}
}

// Resolve classifies the participant's contest record into an outcome.
// A structured upstream error is the contest itself being invalid, not a
// per-user condition: it yields the contest-level sentinel with an empty
// handle, and the caller is expected to abort the fan-out.
func (r *Resolver) Resolve(ctx context.Context, contestID, handle string) ParticipantOutcome {
	out := ParticipantOutcome{
		Status:     StatusAttended,
		Handle:     handle,
		ProfileURL: profileURL(handle),
		Attended:   true,
	}

	locator := r.fetcher.RecordLocator(contestID, handle)
	payload, err := r.fetcher.FetchRecords(ctx, locator)
	if err != nil {
		out.Status = StatusError
		out.Attended = false
		out.Error = fmt.Sprintf("⚠️ Error for %s: `%v`", handle, err)
		return out
	}

	switch payload.Kind {
	case upstream.KindEmpty:
		out.Status = StatusNotParticipated
		out.Attended = false
		out.Error = "❌ Not Participated"

	case upstream.KindStructuredError:
		out.Status = StatusContestError
		out.Attended = false
		out.Handle = ""
		out.Error = "❌ " + payload.Message

	case upstream.KindRecords:
		if len(payload.Records) == 0 {
			out.Status = StatusNotParticipated
			out.Attended = false
			out.Error = "❌ Not Participated"
			break
		}
		first := payload.Records[0]
		out.Rank = first.Rank
		out.OldRating = first.OldRating
		out.NewRating = first.NewRating
		out.DeltaRating = first.DeltaRating
		out.AttendedContestsCount = first.AttendedContestsCount
	}

	return out
}
