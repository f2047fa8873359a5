package standings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-standings/internal/cache"
)

// validate is the package-level validator instance used for input validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidInput indicates an aggregate request was rejected before any
// fetch was attempted.
var ErrInvalidInput = errors.New("invalid aggregate input")

// AggregateInput carries the validated arguments of one aggregate request.
type AggregateInput struct {
	ContestID string   `validate:"required"`
	Handles   []string `validate:"required,min=1,dive,required"`
}

// Validate checks the input against its constraints.
func (in *AggregateInput) Validate() error { return validate.Struct(in) }

// UserResolver resolves a single participant's outcome. Implemented by
// Resolver; faked in tests.
type UserResolver interface {
	Resolve(ctx context.Context, contestID, handle string) ParticipantOutcome
}

// resultKey identifies one aggregate computation: the contest plus the
// participant set as an ordered tuple. Handles are joined with a unit
// separator so distinct sets cannot collide.
type resultKey struct {
	contestID    string
	participants string
}

func newResultKey(contestID string, handles []string) resultKey {
	return resultKey{contestID: contestID, participants: strings.Join(handles, "\x1f")}
}

// cachedAggregate is the immutable snapshot stored in the result tier.
type cachedAggregate struct {
	result AggregateResult
	future bool
}

// Service fans a resolver out over a participant set and guards the
// computation with the result-tier cache. Only computations with zero
// resolver-level errors are ever cached, so a client retry after a
// transient failure always recomputes with fresh per-user data.
type Service struct {
	users   UserResolver
	results *cache.LRU[resultKey, cachedAggregate]
	logger  *slog.Logger
}

// NewService builds the aggregation service with a result cache of the
// given capacity.
func NewService(users UserResolver, capacity int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:   users,
		results: cache.NewLRU[resultKey, cachedAggregate](capacity),
		logger:  logger.With("component", "standings"),
	}
}

// Aggregate resolves every handle for the contest and returns the ordered
// result plus whether the contest looks like it has not happened yet (every
// requested participant confirmed absent).
//
// Resolution is sequential and short-circuits on a contest-level error: the
// partial work is discarded, ErrorCount is set to the full participant
// count, and the sentinel is the sole outcome. Remaining handles are never
// queried.
func (s *Service) Aggregate(ctx context.Context, contestID string, handles []string) (AggregateResult, bool, error) {
	in := AggregateInput{ContestID: contestID, Handles: handles}
	if err := in.Validate(); err != nil {
		return AggregateResult{}, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key := newResultKey(contestID, handles)
	if hit, ok := s.results.Get(key); ok {
		s.logger.DebugContext(ctx, "result cache hit",
			"contest_id", contestID, "participants", len(handles))
		return hit.result, hit.future, nil
	}

	result, err := s.compute(ctx, contestID, handles)
	if err != nil {
		// Never leave a poisoned or partial entry behind for this key.
		s.results.Remove(key)
		return AggregateResult{}, false, err
	}

	future := result.NotParticipatedCount >= len(handles)
	if result.ErrorCount == 0 {
		s.results.Put(key, cachedAggregate{result: result, future: future})
	}

	s.logger.InfoContext(ctx, "aggregate computed",
		"contest_id", contestID,
		"participants", len(handles),
		"errors", result.ErrorCount,
		"not_participated", result.NotParticipatedCount,
		"cached", result.ErrorCount == 0)
	return result, future, nil
}

// compute performs the fan-out and final ordering.
func (s *Service) compute(ctx context.Context, contestID string, handles []string) (AggregateResult, error) {
	var res AggregateResult
	outcomes := make([]ParticipantOutcome, 0, len(handles))

	for _, handle := range handles {
		if err := ctx.Err(); err != nil {
			return AggregateResult{}, fmt.Errorf("aggregate %s aborted: %w", contestID, err)
		}

		out := s.users.Resolve(ctx, contestID, handle)
		if out.ContestLevel() {
			s.logger.WarnContext(ctx, "contest-level error, aborting fan-out",
				"contest_id", contestID, "error", out.Error)
			return AggregateResult{
				Outcomes:   []ParticipantOutcome{out},
				ErrorCount: len(handles),
			}, nil
		}

		switch out.Status {
		case StatusNotParticipated:
			res.NotParticipatedCount++
		case StatusError:
			res.ErrorCount++
		}
		outcomes = append(outcomes, out)
	}

	sortOutcomes(outcomes)
	res.Outcomes = outcomes
	return res, nil
}

// ClearResults empties the result-tier cache only; the fetch tier is
// cleared independently through its own client.
func (s *Service) ClearResults() { s.results.Clear() }

// ResultCacheLen reports the number of cached aggregates, for tests and
// diagnostics.
func (s *Service) ResultCacheLen() int { return s.results.Len() }
