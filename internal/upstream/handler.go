// Package upstream implements the cached fetch layer for the contest record
// API. A composable middleware pipeline wraps a plain HTTP core handler:
// logging, outbound rate limiting, and success-only caching are layered
// around the network call, and every response is classified exactly once
// into a tagged payload union at this boundary.
//
// Caching contract:
//   - Well-formed record lists (including empty ones) are cached by locator.
//   - Structured upstream errors and transport failures are never cached,
//     so the next identical fetch retries from scratch.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request identifies one idempotent outbound read.
type Request struct {
	// Locator is the fully built URL for the read. It doubles as the
	// fetch-tier cache key.
	Locator string
}

// Handler processes fetch requests. Implementations form a middleware
// pipeline with the HTTP core innermost.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Payload, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Payload, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Payload, error) {
	return f(ctx, req)
}

// Middleware transforms a Handler into an enhanced Handler.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler. Middleware
// executes in the order provided, first middleware outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// maxBodyBytes bounds response reads so a misbehaving upstream cannot
// exhaust memory.
const maxBodyBytes = 4 << 20

// httpHandler is the core handler that performs the actual GET.
type httpHandler struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPHandler wraps client with per-request timeouts. A zero timeout
// disables the per-request deadline (the client's own timeout still
// applies).
func newHTTPHandler(client *http.Client, timeout time.Duration) Handler {
	return &httpHandler{client: client, timeout: timeout}
}

// Handle performs the outbound read and classifies the response body.
// Transport failures are returned as classified errors and never reach the
// cache tier above.
func (h *httpHandler) Handle(ctx context.Context, req *Request) (*Payload, error) {
	if req.Locator == "" {
		return nil, &Error{Class: ClassValidation, Message: "empty locator", Err: ErrEmptyLocator}
	}

	reqCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.Locator, nil)
	if err != nil {
		return nil, &Error{
			Class:   ClassValidation,
			Locator: req.Locator,
			Message: "invalid locator",
			Err:     err,
		}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, classify(req.Locator, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(req.Locator, fmt.Errorf("read body: %w", err))
	}

	statusOK := resp.StatusCode >= 200 && resp.StatusCode < 300
	return decodePayload(req.Locator, body, statusOK, resp.StatusCode)
}
