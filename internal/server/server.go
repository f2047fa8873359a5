// Package server is the HTTP boundary of the standings service. Handlers
// validate and normalize requests, assemble the participant set from the
// directory and/or explicit usernames, and delegate to the aggregation and
// profile cores. All failure paths return a JSON {"detail": …} body; nothing
// here is fatal to the process.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-standings/internal/profile"
	"github.com/ahrav/go-standings/internal/standings"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Aggregator is the slice of the standings core the server consumes.
type Aggregator interface {
	Aggregate(ctx context.Context, contestID string, handles []string) (standings.AggregateResult, bool, error)
}

// DirectoryLookup resolves a channel to its registered handles.
type DirectoryLookup interface {
	Participants(ctx context.Context, channelID string) ([]string, error)
}

// ProfileLookup resolves actual contest performance for a handle set.
type ProfileLookup interface {
	LookupAll(ctx context.Context, contestName string, handles []string) map[string]profile.Result
}

// CacheScope names one clearable cache tier.
type CacheScope string

const (
	ScopeAll     CacheScope = "all"
	ScopeFetch   CacheScope = "fetch"
	ScopeResult  CacheScope = "result"
	ScopeProfile CacheScope = "profile"
)

// Deps wires the server to its collaborators. The clear funcs are invoked
// per tier; "all" clears each tier explicitly, there is no global lock
// across cache instances.
type Deps struct {
	Aggregator Aggregator
	Directory  DirectoryLookup
	Profiles   ProfileLookup

	ClearFetch   func()
	ClearResult  func()
	ClearProfile func()

	// AllowedOrigins is the CORS allow list; requests from other origins
	// receive no CORS grant.
	AllowedOrigins []string

	Logger *slog.Logger
}

// Server routes and serves the public API.
type Server struct {
	deps   Deps
	logger *slog.Logger
}

// New builds a Server from its dependencies.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{deps: deps, logger: logger.With("component", "server")}
}

// Handler returns the routed HTTP handler with CORS and request logging
// applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /standings", s.handleStandings)
	mux.HandleFunc("GET /obtained", s.handleObtained)
	mux.HandleFunc("POST /cache/clear", s.handleCacheClear)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.logRequests(corsMiddleware(s.deps.AllowedOrigins, mux))
}

// statusRecorder captures the written status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.InfoContext(r.Context(), "request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Service is running",
	})
}

// handleCacheClear clears one cache tier, or every tier for scope "all".
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	scope := CacheScope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = ScopeAll
	}

	switch scope {
	case ScopeAll:
		s.deps.ClearFetch()
		s.deps.ClearResult()
		s.deps.ClearProfile()
	case ScopeFetch:
		s.deps.ClearFetch()
	case ScopeResult:
		s.deps.ClearResult()
	case ScopeProfile:
		s.deps.ClearProfile()
	default:
		writeError(w, http.StatusBadRequest,
			"Invalid scope. Must be one of: all, fetch, result, profile")
		return
	}

	s.logger.Info("cache cleared", "scope", scope)
	writeJSON(w, http.StatusOK, cacheClearResponse{
		Success: true,
		Message: "Cache cleared successfully",
		Scope:   string(scope),
	})
}

// handleStandings serves predicted rating changes for a contest.
func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	req := standingsRequest{
		ContestType: r.URL.Query().Get("contestType"),
		ContestNo:   r.URL.Query().Get("contestNo"),
		ChannelNo:   r.URL.Query().Get("channelNo"),
		Username:    r.URL.Query().Get("username"),
	}
	req.normalize()
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, req.validationDetail(err))
		return
	}

	contestName := req.ContestType + req.ContestNo
	handles, ok := s.collectHandles(w, r, req.ChannelNo, req.Username)
	if !ok {
		return
	}
	if len(handles) == 0 {
		writeJSON(w, http.StatusOK, standingsResponse{ContestName: contestName, Users: []standings.ParticipantOutcome{}})
		return
	}

	result, future, err := s.deps.Aggregator.Aggregate(r.Context(), contestName, handles)
	if err != nil {
		if errors.Is(err, standings.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "aggregate failed",
			"contest", contestName, "error", err)
		writeError(w, http.StatusInternalServerError, "Error processing contest data: "+err.Error())
		return
	}

	resp := standingsResponse{ContestName: contestName, Users: []standings.ParticipantOutcome{}}
	switch {
	case future:
		// A future contest has no standings yet.
	case len(result.Outcomes) > 0 && result.Outcomes[0].ContestLevel():
		resp.Error = result.Outcomes[0].Error
	default:
		resp.Users = result.Outcomes
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleObtained serves actual contest performance for a handle set.
func (s *Server) handleObtained(w http.ResponseWriter, r *http.Request) {
	req := obtainedRequest{
		Name:      r.URL.Query().Get("name"),
		ChannelNo: r.URL.Query().Get("channelNo"),
		Username:  r.URL.Query().Get("username"),
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, req.validationDetail(err))
		return
	}

	handles, ok := s.collectHandles(w, r, req.ChannelNo, req.Username)
	if !ok {
		return
	}
	if len(handles) == 0 {
		writeJSON(w, http.StatusOK, map[string]profile.Result{})
		return
	}

	writeJSON(w, http.StatusOK, s.deps.Profiles.LookupAll(r.Context(), req.Name, handles))
}

// collectHandles merges directory membership with explicit usernames,
// preserving order and deduplicating. It writes the error response itself
// and reports false when the request is already answered.
func (s *Server) collectHandles(w http.ResponseWriter, r *http.Request, channelNo, username string) ([]string, bool) {
	var handles []string

	if channelNo != "" {
		members, err := s.deps.Directory.Participants(r.Context(), channelNo)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "directory lookup failed",
				"channel_id", channelNo, "error", err)
			writeError(w, http.StatusInternalServerError,
				"Failed to fetch users from directory: "+err.Error())
			return nil, false
		}
		handles = append(handles, members...)
	}
	handles = append(handles, splitUsernames(username)...)

	return dedupe(handles), true
}
