// Package filter prunes component trees by dotted path. Exclusions come from
// the caller and from stabilization rule sets conditioned on the browser.
package filter

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/stupside/thumbmark/internal/component"
	"github.com/stupside/thumbmark/internal/options"
)

// Excludes returns opts.Exclude plus every exclusion of the rule sets named in
// opts.Stabilize that applies to b.
func Excludes(opts *options.Options, b Browser, sets RuleSets) []string {
	out := slices.Clone(opts.Exclude)
	for _, name := range opts.Stabilize {
		rules, ok := sets[name]
		if !ok {
			slog.Debug("unknown stabilization rule set", "name", name)
			continue
		}
		for _, r := range rules {
			if r.Applies(b) {
				out = append(out, r.Exclude...)
			}
		}
	}
	return out
}

// Filter is an immutable set of include and exclude paths.
type Filter struct {
	exclude []string
	include []string
}

// New builds the filter for one computation.
func New(opts *options.Options, b Browser, sets RuleSets) *Filter {
	return &Filter{
		exclude: Excludes(opts, b, sets),
		include: slices.Clone(opts.Include),
	}
}

// Apply returns a pruned copy of rec. A leaf survives unless it is excluded and
// not included; records left without leaves are dropped.
func (f *Filter) Apply(rec component.Record) component.Record {
	return f.walk(rec, "")
}

func (f *Filter) walk(rec component.Record, prefix string) component.Record {
	out := make(component.Record, len(rec))
	for key, v := range rec {
		path := prefix + key

		if nested, ok := v.Record(); ok {
			if kept := f.walk(nested, path+"."); len(kept) > 0 {
				out[key] = component.Nested(kept)
			}
			continue
		}

		if !matchesAny(path, f.exclude) || matchesAny(path, f.include) {
			out[key] = v
		}
	}
	return out
}

func matchesAny(path string, rules []string) bool {
	return slices.ContainsFunc(rules, func(rule string) bool {
		return Matches(path, rule)
	})
}

// Matches reports whether rule is a prefix of the dotted leaf path. The path
// is terminated with a dot, so "canvas." selects "canvas.geometry" and
// "canvas.geometry" selects that leaf only. Matching is on raw characters:
// "scr" selects "screen.width".
func Matches(path, rule string) bool {
	return strings.HasPrefix(path+".", rule)
}
