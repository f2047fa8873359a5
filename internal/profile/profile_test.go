package profile_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-standings/internal/profile"
)

const historyBody = `{
  "data": {
    "userContestRankingHistory": [
      {"attended": true, "problemsSolved": 2, "totalProblems": 4, "rating": 1510.2, "ranking": 4100,
       "contest": {"title": "Weekly Contest 400"}},
      {"attended": true, "problemsSolved": 3, "totalProblems": 4, "rating": 1766.4, "ranking": 2790,
       "contest": {"title": "Weekly Contest 476"}},
      {"attended": false, "problemsSolved": 0, "totalProblems": 4, "rating": 1766.4, "ranking": 0,
       "contest": {"title": "Biweekly Contest 120"}}
    ]
  }
}`

type fakeGraphQL struct {
	server *httptest.Server
	hits   atomic.Int64

	status      int
	contentType string
	body        string
}

func newFakeGraphQL(t *testing.T) *fakeGraphQL {
	t.Helper()
	f := &fakeGraphQL{status: http.StatusOK, contentType: "application/json", body: historyBody}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)

		// The request itself must be a well-formed GraphQL POST.
		var req struct {
			OperationName string            `json:"operationName"`
			Variables     map[string]string `json:"variables"`
		}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "userContestRankingInfo", req.OperationName)
			assert.NotEmpty(t, req.Variables["username"])
		}

		w.Header().Set("Content-Type", f.contentType)
		w.WriteHeader(f.status)
		fmt.Fprint(w, f.body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newService(t *testing.T, f *fakeGraphQL) *profile.Service {
	t.Helper()
	return profile.New(profile.Config{
		GraphQLURL:    f.server.URL,
		Timeout:       2 * time.Second,
		CacheCapacity: 8,
		Workers:       2,
	})
}

func TestValidContestName(t *testing.T) {
	assert.True(t, profile.ValidContestName("weekly-contest-476"))
	assert.True(t, profile.ValidContestName("biweekly-contest-120"))
	assert.False(t, profile.ValidContestName(""))
	assert.False(t, profile.ValidContestName("monthly-contest-1"))
	assert.False(t, profile.ValidContestName("contest-476"))
}

func TestLookupFindsContestCaseInsensitive(t *testing.T) {
	f := newFakeGraphQL(t)
	svc := newService(t, f)

	res := svc.Lookup(context.Background(), "weekly-contest-476", "alice")

	assert.Empty(t, res.Error)
	assert.Equal(t, "alice", res.Handle)
	require.NotNil(t, res.Rating)
	assert.InDelta(t, 1766.4, *res.Rating, 1e-9)
	require.NotNil(t, res.Ranking)
	assert.Equal(t, 2790, *res.Ranking)
	require.NotNil(t, res.ProblemsSolved)
	assert.Equal(t, 3, *res.ProblemsSolved)
	require.NotNil(t, res.HistoryFound)
	assert.True(t, *res.HistoryFound)
}

func TestLookupGatesInvalidNamesBeforeNetwork(t *testing.T) {
	f := newFakeGraphQL(t)
	svc := newService(t, f)

	res := svc.Lookup(context.Background(), "not-a-contest", "alice")
	assert.Equal(t, "Invalid contest name", res.Error)

	res = svc.Lookup(context.Background(), "weekly-contest-476", "")
	assert.Equal(t, "Username is required", res.Error)

	assert.Equal(t, int64(0), f.hits.Load(), "validation failures must not reach the network")
}

func TestLookupCachesSuccessOnly(t *testing.T) {
	f := newFakeGraphQL(t)
	svc := newService(t, f)

	_ = svc.Lookup(context.Background(), "weekly-contest-476", "alice")
	_ = svc.Lookup(context.Background(), "weekly-contest-476", "alice")
	assert.Equal(t, int64(1), f.hits.Load(), "successful lookup must be served from cache")
	assert.Equal(t, 1, svc.CacheLen())

	// A contest absent from the history is an error shape and not cached.
	_ = svc.Lookup(context.Background(), "weekly-contest-9999", "alice")
	_ = svc.Lookup(context.Background(), "weekly-contest-9999", "alice")
	assert.Equal(t, int64(3), f.hits.Load())
	assert.Equal(t, 1, svc.CacheLen())
}

func TestLookupContestNotInHistory(t *testing.T) {
	f := newFakeGraphQL(t)
	svc := newService(t, f)

	res := svc.Lookup(context.Background(), "weekly-contest-9999", "alice")

	assert.Equal(t, "Contest not found in user's history", res.Error)
	require.NotNil(t, res.HistoryFound)
	assert.False(t, *res.HistoryFound)
}

func TestLookupEmptyHistory(t *testing.T) {
	f := newFakeGraphQL(t)
	f.body = `{"data": {"userContestRankingHistory": []}}`
	svc := newService(t, f)

	res := svc.Lookup(context.Background(), "weekly-contest-476", "ghost")

	assert.Equal(t, "No contest history found for user", res.Error)
	require.NotNil(t, res.HistoryFound)
	assert.False(t, *res.HistoryFound)
}

func TestLookupGraphQLError(t *testing.T) {
	f := newFakeGraphQL(t)
	f.body = `{"errors": [{"message": "That user does not exist."}]}`
	svc := newService(t, f)

	res := svc.Lookup(context.Background(), "weekly-contest-476", "nobody")
	assert.Equal(t, "That user does not exist.", res.Error)
	assert.Equal(t, 0, svc.CacheLen())
}

func TestLookupNonJSONResponse(t *testing.T) {
	f := newFakeGraphQL(t)
	f.contentType = "text/html"
	f.body = `<html>blocked</html>`
	svc := newService(t, f)

	res := svc.Lookup(context.Background(), "weekly-contest-476", "alice")
	assert.Equal(t, "Cloudflare blocked the request", res.Error)
}

func TestLookupTransportFailureContained(t *testing.T) {
	f := newFakeGraphQL(t)
	svc := newService(t, f)
	f.server.Close()

	res := svc.Lookup(context.Background(), "weekly-contest-476", "alice")
	assert.Contains(t, res.Error, "Request failed")
}

func TestLookupAllBoundedFanOut(t *testing.T) {
	f := newFakeGraphQL(t)
	svc := newService(t, f)

	handles := []string{"alice", "bob", "carol"}
	results := svc.LookupAll(context.Background(), "weekly-contest-476", handles)

	require.Len(t, results, 3)
	for _, handle := range handles {
		res, ok := results[handle]
		require.True(t, ok)
		assert.Empty(t, res.Error)
		assert.Equal(t, handle, res.Handle)
	}
}
