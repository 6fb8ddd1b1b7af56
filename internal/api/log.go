package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stupside/thumbmark/internal/component"
	"github.com/stupside/thumbmark/internal/options"
	"github.com/stupside/thumbmark/internal/version"
)

// LogSink reports a sampled thumbmark to the API's log endpoint, at most once
// per sink.
type LogSink struct {
	http   *http.Client
	path   string
	sample func() float64

	sent atomic.Bool
	wg   sync.WaitGroup
}

// LogSinkOption customizes a LogSink.
type LogSinkOption func(*LogSink)

func WithLogHTTPClient(hc *http.Client) LogSinkOption {
	return func(s *LogSink) { s.http = hc }
}

// WithSampler replaces the random source compared against LogSampleRate.
func WithSampler(sample func() float64) LogSinkOption {
	return func(s *LogSink) { s.sample = sample }
}

// NewLogSink returns a sink reporting path as the page the thumbmark was taken on.
func NewLogSink(path string, opts ...LogSinkOption) *LogSink {
	s := &LogSink{
		http:   &http.Client{Timeout: 10 * time.Second},
		path:   path,
		sample: rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type logPayload struct {
	Thumbmark    string           `json:"thumbmark"`
	Components   component.Record `json:"components"`
	Experimental component.Record `json:"experimental"`
	Version      string           `json:"version"`
	Options      *options.Options `json:"options"`
	Path         string           `json:"path"`
}

// Report fires the log request in the background if this call is sampled and
// nothing was reported yet. It returns whether a request was started.
func (s *LogSink) Report(ctx context.Context, thumbmark string, components, experimental component.Record, opts *options.Options) bool {
	if s.sent.Load() || s.sample() >= opts.LogSampleRate {
		return false
	}
	if !s.sent.CompareAndSwap(false, true) {
		return false
	}

	if experimental == nil {
		experimental = component.Record{}
	}
	body, err := json.Marshal(logPayload{
		Thumbmark:    thumbmark,
		Components:   components,
		Experimental: experimental,
		Version:      version.Version,
		Options:      opts,
		Path:         s.path,
	})
	if err != nil {
		slog.DebugContext(ctx, "encoding log payload", "error", err)
		return false
	}

	endpoint := opts.Endpoint() + "/log"
	ctx = context.WithoutCancel(ctx)

	s.wg.Go(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.http.Do(req)
		if err != nil {
			slog.DebugContext(ctx, "log report failed", "error", err)
			return
		}
		resp.Body.Close()
	})
	return true
}

// Wait blocks until background reports have finished.
func (s *LogSink) Wait() {
	s.wg.Wait()
}
