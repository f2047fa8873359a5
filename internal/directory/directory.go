// Package directory resolves the participant handles registered for a
// channel. The backing store is an RTDB-style REST endpoint: a channel's
// node is fetched as JSON and may be absent, a flat array of handles, or an
// object whose values are handles. Lookup failures propagate to the caller;
// the directory is a thin collaborator and is deliberately uncached.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"
)

// maxBodyBytes bounds directory reads.
const maxBodyBytes = 1 << 20

// Config controls the directory client.
type Config struct {
	// BaseURL is the root of the directory store; channel nodes live at
	// {base}/users/{channel}.json.
	BaseURL string

	// HTTPClient is the shared outbound client; a default client is used
	// when nil.
	HTTPClient *http.Client

	// Timeout bounds each lookup.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client fetches channel membership. Safe for concurrent use.
type Client struct {
	baseURL *url.URL
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a directory client for the configured store.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("directory: invalid base URL: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: base,
		client:  client,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "directory"),
	}, nil
}

// Participants returns the handles registered for channelID, sorted and
// deduplicated so downstream cache keys are deterministic. An absent
// channel node yields an empty set, not an error.
func (c *Client) Participants(ctx context.Context, channelID string) ([]string, error) {
	if channelID == "" {
		return nil, fmt.Errorf("directory: empty channel id")
	}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	node := c.baseURL.JoinPath("users", channelID+".json")
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, node.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("directory: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory: fetch channel %s: %w", channelID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory: fetch channel %s: unexpected status %d", channelID, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("directory: read channel %s: %w", channelID, err)
	}

	handles, err := decodeHandles(body)
	if err != nil {
		return nil, fmt.Errorf("directory: decode channel %s: %w", channelID, err)
	}

	c.logger.DebugContext(ctx, "channel resolved",
		"channel_id", channelID, "participants", len(handles))
	return handles, nil
}

// decodeHandles accepts the store's node shapes: null, an array of handles,
// or an object whose values are handles.
func decodeHandles(body []byte) ([]string, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	switch node := raw.(type) {
	case nil:
		// Absent channel.
	case []any:
		for _, v := range node {
			addHandle(set, v)
		}
	case map[string]any:
		for _, v := range node {
			addHandle(set, v)
		}
	default:
		return nil, fmt.Errorf("unsupported node shape %T", raw)
	}

	handles := make([]string, 0, len(set))
	for h := range set {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles, nil
}

func addHandle(set map[string]struct{}, v any) {
	s, ok := v.(string)
	if !ok || s == "" {
		return
	}
	set[s] = struct{}{}
}
