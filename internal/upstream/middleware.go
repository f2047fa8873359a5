package upstream

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-standings/internal/cache"
)

// newCacheMiddleware returns success-only caching keyed by locator. Hits are
// served without any outbound call. Only KindRecords payloads are written
// back: structured errors would pin "not found" past the entity's creation,
// and transport failures would mask transient outages.
func newCacheMiddleware(store *cache.LRU[string, Payload]) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Payload, error) {
			if cached, ok := store.Get(req.Locator); ok {
				return &cached, nil
			}

			payload, err := next.Handle(ctx, req)
			if err != nil {
				return nil, err
			}
			if payload.Kind == KindRecords {
				store.Put(req.Locator, *payload)
			}
			return payload, nil
		})
	}
}

// newRateLimitMiddleware throttles outbound reads with a token bucket so
// fan-outs respect the upstream's rate limits. Waiting is bounded by the
// request context; an exhausted wait surfaces as a retryable transport
// failure.
func newRateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Payload, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, &Error{
					Class:   ClassTransport,
					Locator: req.Locator,
					Message: "rate limit wait aborted",
					Err:     ErrRateLimited,
				}
			}
			return next.Handle(ctx, req)
		})
	}
}

// newLoggingMiddleware records each fetch with a per-request ID, duration,
// and outcome classification.
func newLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Payload, error) {
			start := time.Now()
			requestID := uuid.NewString()

			payload, err := next.Handle(ctx, req)
			elapsed := time.Since(start)

			if err != nil {
				logger.WarnContext(ctx, "fetch failed",
					"request_id", requestID,
					"locator", req.Locator,
					"duration_ms", elapsed.Milliseconds(),
					"error", err)
				return nil, err
			}

			logger.DebugContext(ctx, "fetch completed",
				"request_id", requestID,
				"locator", req.Locator,
				"duration_ms", elapsed.Milliseconds(),
				"kind", payload.Kind)
			return payload, nil
		})
	}
}
