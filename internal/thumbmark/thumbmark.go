// Package thumbmark ties probes, filtering, hashing and the scoring API into a
// single fingerprint computation.
package thumbmark

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stupside/thumbmark/internal/api"
	"github.com/stupside/thumbmark/internal/component"
	"github.com/stupside/thumbmark/internal/digest"
	"github.com/stupside/thumbmark/internal/filter"
	"github.com/stupside/thumbmark/internal/options"
	"github.com/stupside/thumbmark/internal/resolve"
	"github.com/stupside/thumbmark/internal/stablejson"
	"github.com/stupside/thumbmark/internal/version"
)

// Identity reports the user agent the probes run under.
type Identity interface {
	UserAgent(ctx context.Context) (string, error)
}

// StaticIdentity is a fixed user agent.
type StaticIdentity string

func (s StaticIdentity) UserAgent(context.Context) (string, error) {
	return string(s), nil
}

// Config wires a Thumbmark. Only the registry is mandatory.
type Config struct {
	// Defaults are the instance-level options; nil means options.Default().
	Defaults *options.Options
	Identity Identity
	// Client is used when an API key is set.
	Client   *api.Client
	LogSink  *api.LogSink
	RuleSets filter.RuleSets
}

// Thumbmark computes fingerprints from the probes of a registry.
type Thumbmark struct {
	registry *component.Registry
	defaults options.Options
	identity Identity
	client   *api.Client
	logSink  *api.LogSink
	ruleSets filter.RuleSets
}

// Response is the result of Get.
type Response struct {
	Thumbmark  string           `json:"thumbmark"`
	Components component.Record `json:"components"`
	Info       *api.Info        `json:"info"`
	Version    string           `json:"version"`
	// Elapsed is per component, in milliseconds, when Performance is set.
	Elapsed map[string]float64 `json:"elapsed,omitempty"`
}

func New(registry *component.Registry, cfg Config) *Thumbmark {
	t := &Thumbmark{
		registry: registry,
		defaults: options.Default(),
		identity: cfg.Identity,
		client:   cfg.Client,
		logSink:  cfg.LogSink,
		ruleSets: cfg.RuleSets,
	}
	if cfg.Defaults != nil {
		t.defaults = cfg.Defaults.Clone()
	}
	if t.identity == nil {
		t.identity = StaticIdentity("")
	}
	if t.ruleSets == nil {
		t.ruleSets = filter.DefaultRuleSets()
	}
	return t
}

// IncludeComponent registers a custom probe, replacing any probe of that name.
func (t *Thumbmark) IncludeComponent(name string, probe component.Probe) {
	t.registry.Register(name, probe)
}

// Version returns the library version reported in every response.
func (t *Thumbmark) Version() string {
	return version.Version
}

// Get computes a thumbmark. opts override the instance defaults for this call
// only. Probe and transient API failures degrade the result; only an invalid
// API key or an unserializable component tree fail the call.
func (t *Thumbmark) Get(ctx context.Context, opts ...options.Option) (*Response, error) {
	o := options.New(t.defaults, opts...)

	var (
		res     *resolve.Resolution
		browser = filter.Unknown
	)

	var g errgroup.Group
	g.Go(func() error {
		res = resolve.Resolve(ctx, t.registry.All(), o)
		return nil
	})
	g.Go(func() error {
		ua, err := t.identity.UserAgent(ctx)
		if err != nil {
			slog.WarnContext(ctx, "user agent unavailable, only unconditional rules apply", "error", err)
			return nil
		}
		browser = filter.Detect(ua)
		return nil
	})
	_ = g.Wait()

	slog.DebugContext(ctx, "components resolved",
		"browser", browser,
		"candidates", len(res.Results),
		"resolved", len(res.Components),
	)

	f := filter.New(o, browser, t.ruleSets)
	components := f.Apply(res.Components)

	var info *api.Info
	if o.APIKey != "" && t.client != nil {
		remote, err := t.client.Fetch(ctx, components, o)
		if err != nil {
			return nil, fmt.Errorf("fetching api data: %w", err)
		}
		if remote != nil {
			merged := components.Clone()
			maps.Copy(merged, f.Apply(remote.Components))
			components = merged
			info = remote.Info
		}
	}

	serialized, err := stablejson.Marshal(components)
	if err != nil {
		return nil, fmt.Errorf("serializing components: %w", err)
	}
	hash := digest.Sum(serialized)

	if info == nil {
		info = api.APIOnly()
	}

	if o.Logging && t.logSink != nil {
		t.logSink.Report(ctx, hash, components, nil, o)
	}

	out := &Response{
		Thumbmark:  hash,
		Components: components,
		Info:       info,
		Version:    version.Version,
	}
	if o.Performance {
		out.Elapsed = make(map[string]float64, len(res.Elapsed))
		for name, d := range res.Elapsed {
			out.Elapsed[name] = float64(d) / float64(time.Millisecond)
		}
	}
	return out, nil
}
