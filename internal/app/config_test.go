package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupside/thumbmark/internal/options"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const fullConfig = `
browser:
  timeout: 30s
  headless: true
  chrome_path: /usr/bin/chromium
  user_agent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/120.0"
  width: 1280
  height: 720
thumbmark:
  timeout: 2s
  exclude: [webgl]
  stabilize: [private, vpn]
  api_key: secret
  api_endpoint: https://api.example.com
  cache_api_call: false
  cache_lifetime: 1h
  logging: false
  log_sample_rate: 0.5
  storage_prefix: myapp
  permissions_to_check: [camera, microphone]
  rules:
    lab:
      - exclude: [screen]
        browsers: ["chrome>=120"]
storage:
  backend: file
  path: /tmp/thumbmark.json
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, fullConfig))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, int64(1280), cfg.Browser.Width)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)

	o := cfg.Thumbmark.Defaults()
	assert.Equal(t, 2*time.Second, o.Timeout)
	assert.Equal(t, []string{"webgl"}, o.Exclude)
	assert.Equal(t, []string{"private", "vpn"}, o.Stabilize)
	assert.Equal(t, "secret", o.APIKey)
	assert.False(t, o.CacheAPICall)
	assert.Equal(t, time.Hour, o.CacheLifetime)
	assert.False(t, o.Logging)
	assert.InDelta(t, 0.5, o.LogSampleRate, 1e-9)
	assert.Equal(t, "myapp_visitor_id", o.PropertyName("visitor_id"))
	assert.Equal(t, []string{"camera", "microphone"}, o.PermissionsToCheck)

	sets := cfg.Thumbmark.RuleSets()
	require.Contains(t, sets, "lab")
	assert.Equal(t, []string{"chrome>=120"}, sets["lab"][0].Browsers)
	assert.Contains(t, sets, "private")
}

func TestDefaultsWhenUnset(t *testing.T) {
	o := ThumbmarkConfig{}.Defaults()
	def := options.Default()

	assert.Equal(t, def.Timeout, o.Timeout)
	assert.Equal(t, def.Stabilize, o.Stabilize)
	assert.True(t, o.CacheAPICall)
	assert.True(t, o.Logging)
	assert.Equal(t, "thumbmark_cache", o.PropertyName("cache"))
	assert.Empty(t, o.PermissionsToCheck)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"missing chrome path": `
browser:
  timeout: 30s
`,
		"unknown backend": `
browser:
  timeout: 30s
  chrome_path: /usr/bin/chromium
storage:
  backend: redis
`,
		"nats without url": `
browser:
  timeout: 30s
  chrome_path: /usr/bin/chromium
storage:
  backend: nats
  bucket: thumbmark
`,
		"empty rule": `
browser:
  timeout: 30s
  chrome_path: /usr/bin/chromium
thumbmark:
  rules:
    lab:
      - browsers: [chrome]
`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
