// Package browser runs the built-in probes inside a real Chrome instance
// driven over the DevTools protocol.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/stupside/thumbmark/internal/app"
)

// Session owns one browser process. Every evaluation opens its own tab on the
// session's page server and closes it afterwards.
type Session struct {
	cfg         app.BrowserConfig
	page        *pageServer
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu        sync.Mutex
	userAgent string
}

// NewSession starts the page server and launches the browser. The launch is
// bounded by cfg.Timeout.
func NewSession(ctx context.Context, cfg app.BrowserConfig) (*Session, error) {
	page, err := newPageServer()
	if err != nil {
		return nil, fmt.Errorf("starting page server: %w", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOpts(cfg)...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Same pattern as evaluate: a child of the chromedp context must not be
	// cancelled on timeout, so the launch runs in its own goroutine.
	launched := make(chan error, 1)
	go func() {
		launched <- chromedp.Run(browserCtx)
	}()

	select {
	case err = <-launched:
	case <-time.After(cfg.Timeout):
		err = fmt.Errorf("browser launch timed out after %s", cfg.Timeout)
	}
	if err != nil {
		cancel()
		allocCancel()
		page.Close()
		return nil, err
	}

	slog.DebugContext(ctx, "browser: session started", "page", page.URL())

	return &Session{
		cfg:         cfg,
		page:        page,
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}, nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// Evaluate runs script in a fresh tab and decodes its (awaited) result into
// res. A null or undefined result leaves res untouched. It returns ctx.Err()
// as soon as ctx is done; the tab is closed either way.
func (s *Session) Evaluate(ctx context.Context, label, script string, res any) error {
	tabCtx, closeTab := chromedp.NewContext(s.ctx)
	defer closeTab()

	// raw belongs to the goroutine until done delivers.
	var raw []byte
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx,
			emulate(s.cfg),
			chromedp.Navigate(s.page.URL()),
			chromedp.Evaluate(script, &raw, awaitPromise),
		)
	}()

	select {
	case err := <-done:
		if errors.Is(err, chromedp.ErrJSUndefined) || errors.Is(err, chromedp.ErrJSNull) {
			raw, err = nil, nil
		}
		if err != nil {
			return fmt.Errorf("evaluating %s: %w", label, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	snapshot(tabCtx, s.cfg.SnapshotDir, label)

	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, res); err != nil {
		return fmt.Errorf("decoding %s: %w", label, err)
	}
	return nil
}

// UserAgent returns navigator.userAgent as the browser reports it. A
// successful lookup is remembered for the life of the session.
func (s *Session) UserAgent(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userAgent != "" {
		return s.userAgent, nil
	}

	var ua string
	if err := s.Evaluate(ctx, "useragent", "navigator.userAgent", &ua); err != nil {
		return "", err
	}
	s.userAgent = ua
	return ua, nil
}

// Close tears down the browser, the allocator and the page server.
func (s *Session) Close() error {
	s.cancel()
	s.allocCancel()
	return s.page.Close()
}
