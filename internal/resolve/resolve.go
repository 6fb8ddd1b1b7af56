// Package resolve runs component probes concurrently under a shared deadline
// and collects whatever finished in time.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stupside/thumbmark/internal/component"
	"github.com/stupside/thumbmark/internal/options"
)

// Status is the outcome of a single probe.
type Status uint8

const (
	StatusResolved Status = iota
	StatusEmpty
	StatusFailed
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Result is what one probe produced. Timed-out probes carry the timeout
// sentinel as their Value.
type Result struct {
	Name    string
	Value   component.Record
	Elapsed time.Duration
	Status  Status
	Err     error
}

// Resolution is the snapshot of a resolve run.
type Resolution struct {
	// Results holds one entry per candidate, in candidate order.
	Results []Result
	// Components holds only the resolved probes.
	Components component.Record
	// Elapsed is recorded for every candidate whatever its outcome.
	Elapsed map[string]time.Duration
}

// Candidates drops excluded names and, when an include list is set, keeps only
// the names it selects. A dotted include entry selects every name it starts with.
func Candidates(entries []component.Entry, opts *options.Options) []component.Entry {
	dotted := slices.ContainsFunc(opts.Include, func(inc string) bool {
		return strings.Contains(inc, ".")
	})

	out := make([]component.Entry, 0, len(entries))
	for _, e := range entries {
		if slices.Contains(opts.Exclude, e.Name) {
			continue
		}
		switch {
		case dotted:
			if !slices.ContainsFunc(opts.Include, func(inc string) bool { return strings.HasPrefix(inc, e.Name) }) {
				continue
			}
		case len(opts.Include) > 0:
			if !slices.Contains(opts.Include, e.Name) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// Resolve invokes every candidate probe at once and waits at most opts.Timeout.
// Probes get the deadline through their context; one that ignores it is left
// running in the background and its result is discarded.
func Resolve(ctx context.Context, entries []component.Entry, opts *options.Options) *Resolution {
	candidates := Candidates(entries, opts)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	results := make([]Result, len(candidates))

	// Failures are recorded per result, so no goroutine returns an error.
	var g errgroup.Group
	for i, e := range candidates {
		g.Go(func() error {
			results[i] = run(ctx, e, opts)
			return nil
		})
	}
	_ = g.Wait()

	res := &Resolution{
		Results:    results,
		Components: make(component.Record, len(results)),
		Elapsed:    make(map[string]time.Duration, len(results)),
	}
	for _, r := range results {
		res.Elapsed[r.Name] = r.Elapsed

		switch r.Status {
		case StatusResolved:
			res.Components[r.Name] = component.Nested(r.Value)
		case StatusFailed:
			slog.DebugContext(ctx, "component failed", "component", r.Name, "error", r.Err)
		case StatusTimedOut:
			slog.DebugContext(ctx, "component timed out", "component", r.Name, "elapsed", r.Elapsed)
		}
	}
	return res
}

type outcome struct {
	rec component.Record
	err error
}

func run(ctx context.Context, e component.Entry, opts *options.Options) Result {
	start := time.Now()

	// Buffered so an orphaned probe can still deliver and exit.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("probe panicked: %v", r)}
			}
		}()
		rec, err := e.Probe(ctx, opts)
		done <- outcome{rec: rec, err: err}
	}()

	select {
	case out := <-done:
		r := Result{Name: e.Name, Elapsed: time.Since(start)}
		switch {
		case out.err != nil && ctx.Err() != nil && errors.Is(out.err, ctx.Err()):
			r.Status, r.Value, r.Err = StatusTimedOut, component.TimeoutSentinel(), out.err
		case out.err != nil:
			r.Status, r.Err = StatusFailed, out.err
		case out.rec == nil:
			r.Status = StatusEmpty
		default:
			r.Status, r.Value = StatusResolved, out.rec
		}
		return r
	case <-ctx.Done():
		return Result{
			Name:    e.Name,
			Value:   component.TimeoutSentinel(),
			Elapsed: time.Since(start),
			Status:  StatusTimedOut,
			Err:     context.Cause(ctx),
		}
	}
}
