// Package api talks to the remote scoring service: one deduplicated request
// per session, raced against the caller's timeout, with an in-memory slot and
// an optional persisted cache in front of it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stupside/thumbmark/internal/component"
	"github.com/stupside/thumbmark/internal/digest"
	"github.com/stupside/thumbmark/internal/options"
	"github.com/stupside/thumbmark/internal/stablejson"
	"github.com/stupside/thumbmark/internal/storage"
	"github.com/stupside/thumbmark/internal/version"
)

// ErrInvalidAPIKey is returned when the API rejects the key (HTTP 403).
var ErrInvalidAPIKey = errors.New("INVALID_API_KEY")

// State is the lifecycle of the session's API call.
type State int32

const (
	StateIdle State = iota
	StateInFlight
	StateResolved
	StateTimedOutWithStaleCache
	StateTimedOutNoCache
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	case StateResolved:
		return "resolved"
	case StateTimedOutWithStaleCache:
		return "timed_out_with_stale_cache"
	case StateTimedOutNoCache:
		return "timed_out_no_cache"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Client is a session against the scoring API. It is safe for concurrent use.
type Client struct {
	http  *http.Client
	store *storage.Tolerant
	now   func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	state  State
	result *Response
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client. Its Timeout bounds requests
// that outlive the caller's own deadline.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithClock replaces time.Now for cache expiry.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func NewClient(store storage.Store, opts ...ClientOption) *Client {
	c := &Client{
		http:  &http.Client{Timeout: 30 * time.Second},
		store: storage.NewTolerant(store),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the outcome of the most recent call.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Client) memory() *Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Fetch returns the API's view of components. It serves, in order: the
// session's previous result, a fresh persisted cache, a new request shared by
// every concurrent caller. If the request outlasts opts.Timeout, a persisted
// response is returned even if expired, otherwise one marked timed_out.
//
// A nil Response with a nil error means the API failed transiently.
// ErrInvalidAPIKey is the only API error returned.
func (c *Client) Fetch(ctx context.Context, components component.Record, opts *options.Options) (*Response, error) {
	if opts.CacheAPICall {
		if res := c.memory(); res != nil {
			return res, nil
		}
	}

	cache := ReadCache(ctx, c.store, opts)
	if opts.CacheAPICall && cache.Fresh(c.now()) {
		return cache.APIResponse, nil
	}

	// The request must survive a caller that gives up: a late answer still
	// fills the session slot and the persisted cache. It works on its own copy
	// of the tree since the caller is free to change it once Fetch returns.
	detached := context.WithoutCancel(ctx)
	sent := components.Clone()
	ch := c.group.DoChan(opts.Endpoint()+"\x00"+opts.APIKey, func() (any, error) {
		return c.request(detached, sent, opts)
	})

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, ErrInvalidAPIKey) {
				return nil, res.Err
			}
			slog.WarnContext(ctx, "scoring api failed", "error", res.Err)
			return nil, nil
		}
		return res.Val.(*Response), nil
	case <-timer.C:
		if cache.APIResponse != nil {
			c.setState(StateTimedOutWithStaleCache)
			slog.DebugContext(ctx, "scoring api timed out, using cached response")
			return cache.APIResponse, nil
		}
		c.setState(StateTimedOutNoCache)
		return &Response{Info: &Info{TimedOut: true}, Version: version.Version}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type requestBody struct {
	Components component.Record `json:"components"`
	Options    *options.Options `json:"options"`
	ClientHash string           `json:"clientHash"`
	Version    string           `json:"version"`
	VisitorID  string           `json:"visitorId,omitempty"`
}

func (c *Client) request(ctx context.Context, components component.Record, opts *options.Options) (*Response, error) {
	c.setState(StateInFlight)

	serialized, err := stablejson.Marshal(components)
	if err != nil {
		c.setState(StateIdle)
		return nil, fmt.Errorf("serializing components: %w", err)
	}

	visitorID := VisitorID(ctx, c.store, opts)
	body, err := json.Marshal(requestBody{
		Components: components,
		Options:    opts,
		ClientHash: digest.Sum(serialized),
		Version:    version.Version,
		VisitorID:  visitorID,
	})
	if err != nil {
		c.setState(StateIdle)
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.Endpoint()+"/thumbmark", bytes.NewReader(body))
	if err != nil {
		c.setState(StateIdle)
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("x-api-key", opts.APIKey)
	req.Header.Set("Authorization", "custom-authorized")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.setState(StateIdle)
		return nil, fmt.Errorf("calling %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		c.setState(StateFailed)
		return nil, ErrInvalidAPIKey
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.setState(StateIdle)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.setState(StateIdle)
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if out.VisitorID != "" && out.VisitorID != visitorID {
		SetVisitorID(ctx, c.store, opts, out.VisitorID)
	}

	c.mu.Lock()
	c.result = &out
	c.state = StateResolved
	c.mu.Unlock()

	if opts.CacheAPICall && opts.CacheLifetime > 0 {
		now := c.now()
		WriteCache(ctx, c.store, opts, Cache{
			APIResponse:       &out,
			APIResponseExpiry: Expiry(now, opts.CacheLifetime).UnixMilli(),
		})
	}

	return &out, nil
}
