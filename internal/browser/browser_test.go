package browser

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupside/thumbmark/internal/app"
	"github.com/stupside/thumbmark/internal/component"
	"github.com/stupside/thumbmark/internal/digest"
	"github.com/stupside/thumbmark/internal/options"
	"github.com/stupside/thumbmark/internal/stablejson"
)

func TestPageServer(t *testing.T) {
	s, err := newPageServer()
	require.NoError(t, err)
	defer s.Close()

	assert.Regexp(t, `^http://127\.0\.0\.1:\d+/$`, s.URL())

	resp, err := http.Get(s.URL())
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, blankPage, string(body))

	missing, err := http.Get(s.URL() + "missing")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestPageServerClose(t *testing.T) {
	s, err := newPageServer()
	require.NoError(t, err)
	url := s.URL()
	require.NoError(t, s.Close())

	_, err = http.Get(url)
	assert.Error(t, err)
}

func TestAllocatorOpts(t *testing.T) {
	base := app.BrowserConfig{ChromePath: "/usr/bin/chromium", Headless: true}
	n := len(allocatorOpts(base))

	full := base
	full.Width, full.Height = 1280, 720
	full.UserAgent = "Mozilla/5.0"
	full.Locale = "fr-FR"
	assert.Len(t, allocatorOpts(full), n+3)

	// A window size needs both dimensions.
	half := base
	half.Width = 1280
	assert.Len(t, allocatorOpts(half), n)
}

func TestSnapshotNoopWithoutDebug(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snaps")
	snapshot(context.Background(), dir, "canvas")

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

// fake answers evaluations from canned JSON keyed by label.
type fake map[string]string

func (f fake) Evaluate(_ context.Context, label, _ string, res any) error {
	raw, ok := f[label]
	if !ok {
		return errors.New("no such probe")
	}
	if raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), res)
}

func probe(t *testing.T, ev evaluator, name string) (component.Record, error) {
	t.Helper()
	for _, e := range builtins(ev) {
		if e.Name == name {
			return e.Probe(context.Background(), nil)
		}
	}
	t.Fatalf("no builtin %q", name)
	return nil, nil
}

func TestBuiltinNames(t *testing.T) {
	var names []string
	for _, e := range builtins(fake{}) {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{
		"audio", "canvas", "fonts", "hardware", "locales", "math",
		"permissions", "plugins", "screen", "speech", "system", "webgl",
	}, names)
}

func TestObjectProbe(t *testing.T) {
	ev := fake{
		"system":  `{"platform":"Linux x86_64","cookieEnabled":true,"productSub":"20030107"}`,
		"locales": `null`,
	}

	rec, err := probe(t, ev, "system")
	require.NoError(t, err)
	platform, _ := rec["platform"].Str()
	assert.Equal(t, "Linux x86_64", platform)
	cookies, _ := rec["cookieEnabled"].Boolean()
	assert.True(t, cookies)

	rec, err = probe(t, ev, "locales")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = probe(t, ev, "fonts")
	assert.Error(t, err)
}

func TestCanvasRecord(t *testing.T) {
	url := "data:image/png;base64,AAAA"

	rec := canvasRecord([]string{url, url})
	got, _ := rec["dataHash"].Str()
	assert.Equal(t, digest.Sum(url), got)

	for _, urls := range [][]string{nil, {url}, {url, url + "B"}, {"", ""}} {
		got, _ := canvasRecord(urls)["dataHash"].Str()
		assert.Equal(t, "unsupported", got, "%v", urls)
	}
}

func TestWebGLRecord(t *testing.T) {
	rec, err := probe(t, fake{"webgl": `{"pixels":"0,0,0,255","vendor":"WebKit","renderer":"SwiftShader"}`}, "webgl")
	require.NoError(t, err)

	assert.NotContains(t, rec, "pixels")
	h, _ := rec["commonImageHash"].Str()
	assert.Equal(t, digest.Sum("0,0,0,255"), h)
	vendor, _ := rec["vendor"].Str()
	assert.Equal(t, "WebKit", vendor)

	rec, err = webglRecord(nil)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSpeechRecordIgnoresVoiceOrder(t *testing.T) {
	a, err := speechRecord([]string{"b,Bob,en-GB,1,0", "a,Alice,en-US,1,1"})
	require.NoError(t, err)
	b, err := speechRecord([]string{"a,Alice,en-US,1,1", "b,Bob,en-GB,1,0"})
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	details, ok := a["details"].Record()
	require.True(t, ok)
	count, _ := details["voiceCount"].Num()
	assert.Equal(t, float64(2), count)

	c, err := speechRecord([]string{"a,Alice,en-US,1,1"})
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
}

func TestSpeechProbeUnsupported(t *testing.T) {
	rec, err := probe(t, fake{"speech": `null`}, "speech")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSpeechHashCoversDetails(t *testing.T) {
	rec, err := speechRecord([]string{"a,Alice,en-US,1,1"})
	require.NoError(t, err)

	details, ok := rec["details"].Record()
	require.True(t, ok)
	serialized, err := stablejson.Marshal(details)
	require.NoError(t, err)
	h, _ := rec["hash"].Str()
	assert.Equal(t, digest.Sum(serialized), h)
}

// scripted records the script it was asked to run.
type scripted struct {
	script string
}

func (s *scripted) Evaluate(_ context.Context, _, script string, res any) error {
	s.script = script
	return json.Unmarshal([]byte(`{"camera":"prompt"}`), res)
}

func TestPermissionsScript(t *testing.T) {
	script, err := permissionsScript(options.New(options.Default()))
	require.NoError(t, err)
	assert.NotContains(t, script, "__PERMISSIONS__")
	assert.Contains(t, script, `["accelerometer","accessibility",`)

	ev := &scripted{}
	opts := options.New(options.Default(), options.WithPermissionsToCheck("camera", "geolocation"))
	for _, e := range builtins(ev) {
		if e.Name != "permissions" {
			continue
		}
		rec, err := e.Probe(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, []string{"camera"}, rec.Keys())
	}
	assert.Contains(t, ev.script, `const names = ["camera","geolocation"];`)
	assert.NotContains(t, ev.script, "accelerometer")
}
