package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stupside/thumbmark/internal/component"
	"github.com/stupside/thumbmark/internal/options"
)

func sample() component.Record {
	return component.Record{
		"one": component.String("1"),
		"two": component.Number(2),
		"three": component.Nested(component.Record{
			"a": component.Bool(true),
			"b": component.Bool(false),
		}),
	}
}

func apply(t *testing.T, rec component.Record, opts ...options.Option) component.Record {
	t.Helper()
	o := options.New(options.Default(), append([]options.Option{options.WithStabilize()}, opts...)...)
	return New(o, Unknown, DefaultRuleSets()).Apply(rec)
}

func assertRecord(t *testing.T, want, got component.Record) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %v, got %v", want.Any(), got.Any())
}

func TestExcludeTopLevel(t *testing.T) {
	got := apply(t, sample(), options.WithExclude("one"))
	assertRecord(t, component.Record{
		"two":   component.Number(2),
		"three": component.Nested(component.Record{"a": component.Bool(true), "b": component.Bool(false)}),
	}, got)
}

func TestExcludeLowLevel(t *testing.T) {
	got := apply(t, sample(), options.WithExclude("two", "three.a"))
	assertRecord(t, component.Record{
		"one":   component.String("1"),
		"three": component.Nested(component.Record{"b": component.Bool(false)}),
	}, got)
}

func TestIncludeWinsOverExclude(t *testing.T) {
	got := apply(t, sample(),
		options.WithExclude("one", "three"),
		options.WithInclude("one", "three.b"),
	)
	assertRecord(t, component.Record{
		"one":   component.String("1"),
		"three": component.Nested(component.Record{"b": component.Bool(false)}),
	}, got)
}

func TestEmptySubtreesAreDropped(t *testing.T) {
	got := apply(t, sample(), options.WithExclude("three.a", "three.b"))
	assert.NotContains(t, got, "three")
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := sample()
	apply(t, in, options.WithExclude("three.a"))
	inner, _ := in["three"].Record()
	assert.Contains(t, inner, "a")
}

func TestApplyIsDeterministic(t *testing.T) {
	first := apply(t, sample(), options.WithExclude("three.a"))
	for range 10 {
		assertRecord(t, first, apply(t, sample(), options.WithExclude("three.a")))
	}
}

func TestMatchesIsRawPrefix(t *testing.T) {
	assert.True(t, Matches("canvas", "canvas"))
	assert.True(t, Matches("canvas.commonPixelsHash", "canvas"))
	assert.True(t, Matches("canvas.commonPixelsHash", "canvas."))
	assert.True(t, Matches("canvasX", "canvas"))
	assert.True(t, Matches("screen.width", "scr"))
	assert.True(t, Matches("system.browser.name", "system.browser.name"))
	assert.False(t, Matches("canvasX", "canvas."))
	assert.False(t, Matches("system.browser", "system.browser.name"))
	assert.False(t, Matches("screen.width", "screen.height"))
}

func TestExcludeByPartialName(t *testing.T) {
	rec := component.Record{
		"screen": component.Nested(component.Record{"width": component.Number(1)}),
		"one":    component.String("1"),
	}
	opts := options.New(options.Default(), options.WithStabilize(), options.WithExclude("scr"))

	got := New(opts, Unknown, DefaultRuleSets()).Apply(rec)
	assert.Equal(t, []string{"one"}, got.Keys())
}

func tree() component.Record {
	return component.Record{
		"canvas": component.Nested(component.Record{"commonPixelsHash": component.String("abc")}),
		"fonts":  component.Nested(component.Record{"Arial": component.Number(12)}),
		"audio":  component.Nested(component.Record{"sampleHash": component.Number(1), "maxChannels": component.Number(2)}),
		"system": component.Nested(component.Record{
			"cookieEnabled":       component.Bool(true),
			"hardwareConcurrency": component.Number(8),
		}),
		"permissions": component.Nested(component.Record{"camera": component.String("prompt")}),
		"screen":      component.Nested(component.Record{"width": component.Number(1920)}),
	}
}

func stabilized(ua string, sets ...string) component.Record {
	opts := options.New(options.Default(), options.WithStabilize(sets...))
	return New(opts, Detect(ua), DefaultRuleSets()).Apply(tree())
}

func TestStabilizeSafari17Private(t *testing.T) {
	got := stabilized(uaSafari17, "private")
	assert.NotContains(t, got, "canvas")
	assert.NotContains(t, got, "audio")
	assert.Contains(t, got, "fonts")
	assert.Contains(t, got, "screen")
}

func TestStabilizeSafari16KeepsCanvas(t *testing.T) {
	got := stabilized(uaSafari16, "private")
	assert.Contains(t, got, "canvas")
	assert.NotContains(t, got, "audio")
}

func TestStabilizeFirefoxPrivate(t *testing.T) {
	got := stabilized(uaFirefoxWindows, "private")
	assert.NotContains(t, got, "canvas")
	assert.NotContains(t, got, "fonts")
	assert.Contains(t, got, "audio")
}

func TestStabilizeBravePrivate(t *testing.T) {
	got := stabilized(uaBrave, "private")
	assert.NotContains(t, got, "canvas")

	audio, _ := got["audio"].Record()
	assert.NotContains(t, audio, "sampleHash")
	assert.Contains(t, audio, "maxChannels")

	system, _ := got["system"].Record()
	assert.NotContains(t, system, "hardwareConcurrency")
}

func TestStabilizeIframe(t *testing.T) {
	chrome := stabilized(uaChromeWindows, "iframe")
	assert.NotContains(t, chrome, "permissions")
	system, _ := chrome["system"].Record()
	assert.Contains(t, system, "cookieEnabled")

	safari := stabilized(uaSafari17, "iframe")
	system, _ = safari["system"].Record()
	assert.NotContains(t, system, "cookieEnabled")
}

func TestExcludesIgnoresUnknownSets(t *testing.T) {
	opts := options.New(options.Default(), options.WithExclude("x"), options.WithStabilize("nope", "vpn"))
	assert.Equal(t, []string{"x", "ip"}, Excludes(opts, Unknown, DefaultRuleSets()))
}

func TestRuleSetsMerge(t *testing.T) {
	custom := RuleSets{"vpn": {{Exclude: []string{"ip", "network"}}}, "lab": {{Exclude: []string{"screen"}}}}
	merged := DefaultRuleSets().Merge(custom)

	assert.Len(t, merged["private"], 6)
	assert.Equal(t, []string{"ip", "network"}, merged["vpn"][0].Exclude)
	assert.Contains(t, merged, "lab")
}
