// Package profile looks up a participant's actual performance in a named
// contest through the upstream GraphQL profile API. It shares the engine's
// cache vocabulary: a bounded LRU tier sized independently from the fetch
// and result tiers, populated only by successful lookups.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-standings/internal/cache"
)

// Contest name prefixes accepted before any network call is made.
const (
	weeklyPrefix   = "weekly-contest-"
	biweeklyPrefix = "biweekly-contest-"
)

// userAgent identifies requests to the GraphQL endpoint; the upstream
// rejects requests without a browser-like agent.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

const rankingQuery = `
    query userContestRankingInfo($username: String!) {
      userContestRanking(username: $username) {
        attendedContestsCount
        rating
        globalRanking
        totalParticipants
        topPercentage
        badge {
          name
        }
      }
      userContestRankingHistory(username: $username) {
        attended
        problemsSolved
        totalProblems
        rating
        ranking
        contest {
          title
        }
      }
    }
`

// Result is one participant's actual contest performance, or the reason it
// could not be determined. Failures are always contained here; Lookup never
// returns an error.
type Result struct {
	Handle         string   `json:"username,omitempty"`
	Rating         *float64 `json:"rating,omitempty"`
	Ranking        *int     `json:"ranking,omitempty"`
	ProblemsSolved *int     `json:"problemsSolved,omitempty"`
	TotalProblems  *int     `json:"totalProblems,omitempty"`
	HistoryFound   *bool    `json:"contest_history_found,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Config controls the profile lookup service.
type Config struct {
	// GraphQLURL is the upstream profile endpoint.
	GraphQLURL string

	// HTTPClient is the shared outbound client; a default client is used
	// when nil.
	HTTPClient *http.Client

	// Timeout bounds each outbound lookup.
	Timeout time.Duration

	// CacheCapacity sizes the profile cache tier.
	CacheCapacity int

	// Workers bounds the concurrent fan-out in LookupAll.
	Workers int

	Logger *slog.Logger
}

// cacheKey identifies one (contest, handle) lookup.
type cacheKey struct {
	contest string
	handle  string
}

// Service resolves contest performance with a success-only cache tier.
// Safe for concurrent use.
type Service struct {
	url     string
	client  *http.Client
	timeout time.Duration
	workers int
	store   *cache.LRU[cacheKey, Result]
	logger  *slog.Logger
}

// New builds the profile lookup service.
func New(cfg Config) *Service {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Service{
		url:     cfg.GraphQLURL,
		client:  client,
		timeout: cfg.Timeout,
		workers: workers,
		store:   cache.NewLRU[cacheKey, Result](cfg.CacheCapacity),
		logger:  logger.With("component", "profile"),
	}
}

// ValidContestName reports whether name carries a recognized contest prefix.
// The gate runs before any network call.
func ValidContestName(name string) bool {
	return strings.HasPrefix(name, weeklyPrefix) || strings.HasPrefix(name, biweeklyPrefix)
}

// normalizeTitle converts a contest name to the upstream's history title
// format: lowercase with hyphens replaced by spaces.
func normalizeTitle(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", " "))
}

// Lookup returns the participant's performance in the named contest.
// Successful results are cached; every failure shape is returned as a
// Result with Error set and is never cached, so the lookup can be retried.
func (s *Service) Lookup(ctx context.Context, contestName, handle string) Result {
	key := cacheKey{contest: contestName, handle: handle}
	if cached, ok := s.store.Get(key); ok {
		return cached
	}

	if !ValidContestName(contestName) {
		s.logger.WarnContext(ctx, "invalid contest name", "contest", contestName)
		return Result{Error: "Invalid contest name"}
	}
	if handle == "" {
		return Result{Error: "Username is required"}
	}

	result := s.fetch(ctx, contestName, handle)
	if result.Error == "" {
		s.store.Put(key, result)
	}
	return result
}

// LookupAll fans Lookup out over handles with a bounded worker limit.
// Per-handle failures are contained in their map entries.
func (s *Service) LookupAll(ctx context.Context, contestName string, handles []string) map[string]Result {
	results := make(map[string]Result, len(handles))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, handle := range handles {
		g.Go(func() error {
			res := s.Lookup(ctx, contestName, handle)
			mu.Lock()
			results[handle] = res
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait only joins the fan-out.
	_ = g.Wait()
	return results
}

// ClearCache empties the profile cache tier.
func (s *Service) ClearCache() { s.store.Clear() }

// CacheLen reports the number of cached lookups, for tests and diagnostics.
func (s *Service) CacheLen() int { return s.store.Len() }

type graphQLRequest struct {
	OperationName string            `json:"operationName"`
	Variables     map[string]string `json:"variables"`
	Query         string            `json:"query"`
}

type historyEntry struct {
	Attended       bool     `json:"attended"`
	ProblemsSolved *int     `json:"problemsSolved"`
	TotalProblems  *int     `json:"totalProblems"`
	Rating         *float64 `json:"rating"`
	Ranking        *int     `json:"ranking"`
	Contest        struct {
		Title string `json:"title"`
	} `json:"contest"`
}

type graphQLResponse struct {
	Data struct {
		UserContestRankingHistory []historyEntry `json:"userContestRankingHistory"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// fetch performs the GraphQL call and searches the returned history for the
// contest, most recent entry first.
func (s *Service) fetch(ctx context.Context, contestName, handle string) Result {
	body, err := json.Marshal(graphQLRequest{
		OperationName: "userContestRankingInfo",
		Variables:     map[string]string{"username": handle},
		Query:         rankingQuery,
	})
	if err != nil {
		return Result{Error: fmt.Sprintf("Request failed: %v", err)}
	}

	reqCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("Request failed: %v", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.WarnContext(ctx, "profile lookup timed out", "handle", handle)
			return Result{Error: "Request timeout"}
		}
		return Result{Error: fmt.Sprintf("Request failed: %v", err)}
	}
	defer resp.Body.Close()

	// A non-JSON body means the edge blocked the request before it
	// reached the API.
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		s.logger.WarnContext(ctx, "non-JSON profile response", "content_type", ct)
		return Result{Error: "Cloudflare blocked the request"}
	}

	var decoded graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{Error: fmt.Sprintf("Request failed: %v", err)}
	}
	if len(decoded.Errors) > 0 {
		return Result{Error: decoded.Errors[0].Message}
	}

	history := decoded.Data.UserContestRankingHistory
	if len(history) == 0 {
		return Result{Error: "No contest history found for user", HistoryFound: boolPtr(false)}
	}

	title := normalizeTitle(contestName)
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if strings.ToLower(entry.Contest.Title) != title {
			continue
		}
		return Result{
			Handle:         handle,
			Rating:         entry.Rating,
			Ranking:        entry.Ranking,
			ProblemsSolved: entry.ProblemsSolved,
			TotalProblems:  entry.TotalProblems,
			HistoryFound:   boolPtr(true),
		}
	}

	return Result{Error: "Contest not found in user's history", HistoryFound: boolPtr(false)}
}

func boolPtr(v bool) *bool { return &v }
