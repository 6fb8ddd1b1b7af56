package filter

import (
	"maps"
	"slices"
)

// Rule excludes dotted paths, optionally only on some browsers.
// An empty Browsers list applies everywhere.
type Rule struct {
	Exclude  []string `koanf:"exclude" json:"exclude" validate:"required,min=1"`
	Browsers []string `koanf:"browsers" json:"browsers,omitempty"`
}

// RuleSets maps a rule set name (as listed in Options.Stabilize) to its rules.
type RuleSets map[string][]Rule

// DefaultRuleSets returns the built-in stabilization rules.
func DefaultRuleSets() RuleSets {
	return RuleSets{
		"private": {
			{Exclude: []string{"canvas"}, Browsers: []string{"firefox", "safari>=17", "brave"}},
			{Exclude: []string{"audio"}, Browsers: []string{"samsungbrowser", "safari"}},
			{Exclude: []string{"fonts"}, Browsers: []string{"firefox"}},
			{
				Exclude: []string{
					"audio.sampleHash",
					"hardware.deviceMemory",
					"header.acceptLanguage.q",
					"system.hardwareConcurrency",
					"plugins",
				},
				Browsers: []string{"brave"},
			},
			{Exclude: []string{"tls.extensions"}, Browsers: []string{"firefox", "chrome", "safari"}},
			{Exclude: []string{"header.acceptLanguage"}, Browsers: []string{"edge", "chrome"}},
		},
		"iframe": {
			{Exclude: []string{"system.applePayVersion", "system.cookieEnabled"}, Browsers: []string{"safari"}},
			{Exclude: []string{"permissions"}},
		},
		"vpn": {
			{Exclude: []string{"ip"}},
		},
	}
}

// Merge returns a copy of s where every set in other replaces the set of the
// same name.
func (s RuleSets) Merge(other RuleSets) RuleSets {
	out := make(RuleSets, len(s)+len(other))
	for name, rules := range s {
		out[name] = slices.Clone(rules)
	}
	maps.Copy(out, other)
	return out
}

// Applies reports whether r is active for b.
func (r Rule) Applies(b Browser) bool {
	if len(r.Browsers) == 0 {
		return true
	}
	return slices.ContainsFunc(r.Browsers, b.Matches)
}
