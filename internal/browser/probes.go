package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/stupside/thumbmark/internal/component"
	"github.com/stupside/thumbmark/internal/digest"
	"github.com/stupside/thumbmark/internal/options"
	"github.com/stupside/thumbmark/internal/stablejson"
)

//go:embed js/audio.js
var audioJS string

//go:embed js/canvas.js
var canvasJS string

//go:embed js/fonts.js
var fontsJS string

//go:embed js/hardware.js
var hardwareJS string

//go:embed js/locales.js
var localesJS string

//go:embed js/math.js
var mathJS string

//go:embed js/permissions.js
var permissionsJS string

//go:embed js/plugins.js
var pluginsJS string

//go:embed js/screen.js
var screenJS string

//go:embed js/speech.js
var speechJS string

//go:embed js/system.js
var systemJS string

//go:embed js/webgl.js
var webglJS string

// evaluator runs a script in a page and decodes its result.
type evaluator interface {
	Evaluate(ctx context.Context, label, script string, res any) error
}

// Builtins returns the built-in probes, in the order they are reported.
func Builtins(s *Session) []component.Entry {
	return builtins(s)
}

func builtins(ev evaluator) []component.Entry {
	return []component.Entry{
		{Name: "audio", Probe: objectProbe(ev, "audio", audioJS)},
		{Name: "canvas", Probe: canvasProbe(ev)},
		{Name: "fonts", Probe: objectProbe(ev, "fonts", fontsJS)},
		{Name: "hardware", Probe: objectProbe(ev, "hardware", hardwareJS)},
		{Name: "locales", Probe: objectProbe(ev, "locales", localesJS)},
		{Name: "math", Probe: objectProbe(ev, "math", mathJS)},
		{Name: "permissions", Probe: permissionsProbe(ev)},
		{Name: "plugins", Probe: objectProbe(ev, "plugins", pluginsJS)},
		{Name: "screen", Probe: objectProbe(ev, "screen", screenJS)},
		{Name: "speech", Probe: speechProbe(ev)},
		{Name: "system", Probe: objectProbe(ev, "system", systemJS)},
		{Name: "webgl", Probe: webglProbe(ev)},
	}
}

// objectProbe evaluates a script returning a plain object.
func objectProbe(ev evaluator, name, script string) component.Probe {
	return func(ctx context.Context, _ *options.Options) (component.Record, error) {
		var out any
		if err := ev.Evaluate(ctx, name, script, &out); err != nil {
			return nil, err
		}
		return component.FromAny(out)
	}
}

// DefaultPermissions are queried when Options.PermissionsToCheck is empty.
var DefaultPermissions = []string{
	"accelerometer", "accessibility", "accessibility-events", "ambient-light-sensor",
	"background-fetch", "background-sync", "bluetooth", "camera", "clipboard-read",
	"clipboard-write", "device-info", "display-capture", "gyroscope", "geolocation",
	"local-fonts", "magnetometer", "microphone", "midi", "nfc", "notifications",
	"payment-handler", "persistent-storage", "push", "speaker", "storage-access",
	"top-level-storage-access", "window-management", "query",
}

func permissionsProbe(ev evaluator) component.Probe {
	return func(ctx context.Context, opts *options.Options) (component.Record, error) {
		script, err := permissionsScript(opts)
		if err != nil {
			return nil, err
		}
		return objectProbe(ev, "permissions", script)(ctx, opts)
	}
}

// permissionsScript fills the permission names into the embedded snippet.
func permissionsScript(opts *options.Options) (string, error) {
	names := DefaultPermissions
	if opts != nil && len(opts.PermissionsToCheck) > 0 {
		names = opts.PermissionsToCheck
	}
	list, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("encoding permission names: %w", err)
	}
	return strings.NewReplacer("__PERMISSIONS__", string(list)).Replace(permissionsJS), nil
}

func canvasProbe(ev evaluator) component.Probe {
	return func(ctx context.Context, _ *options.Options) (component.Record, error) {
		var urls []string
		if err := ev.Evaluate(ctx, "canvas", canvasJS, &urls); err != nil {
			return nil, err
		}
		return canvasRecord(urls), nil
	}
}

// canvasRecord digests the rendered data URL. Two renders that disagree mean
// the canvas is noised, which is reported as unsupported.
func canvasRecord(urls []string) component.Record {
	if len(urls) != 2 || urls[0] == "" || urls[0] != urls[1] {
		return component.Record{"dataHash": component.String("unsupported")}
	}
	return component.Record{"dataHash": component.String(digest.Sum(urls[0]))}
}

func webglProbe(ev evaluator) component.Probe {
	return func(ctx context.Context, _ *options.Options) (component.Record, error) {
		var out map[string]any
		if err := ev.Evaluate(ctx, "webgl", webglJS, &out); err != nil {
			return nil, err
		}
		return webglRecord(out)
	}
}

// webglRecord replaces the raw pixel dump with its digest.
func webglRecord(out map[string]any) (component.Record, error) {
	if out == nil {
		return nil, nil
	}
	if pixels, ok := out["pixels"].(string); ok {
		delete(out, "pixels")
		out["commonImageHash"] = digest.Sum(pixels)
	}
	return component.FromAny(out)
}

func speechProbe(ev evaluator) component.Probe {
	return func(ctx context.Context, _ *options.Options) (component.Record, error) {
		var voices []string
		if err := ev.Evaluate(ctx, "speech", speechJS, &voices); err != nil {
			return nil, err
		}
		if voices == nil {
			return nil, nil
		}
		return speechRecord(voices)
	}
}

// speechRecord reduces voice signatures to a count and an order-independent hash.
func speechRecord(voices []string) (component.Record, error) {
	sorted := slices.Clone(voices)
	slices.Sort(sorted)

	list, err := stablejson.Marshal(sorted)
	if err != nil {
		return nil, fmt.Errorf("serializing voices: %w", err)
	}
	details := component.Record{
		"voiceCount": component.Number(float64(len(sorted))),
		"voicesHash": component.String(digest.Sum(list)),
	}
	serialized, err := stablejson.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("serializing voice details: %w", err)
	}

	return component.Record{
		"details": component.Nested(details),
		"hash":    component.String(digest.Sum(serialized)),
	}, nil
}
