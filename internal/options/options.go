package options

import (
	"encoding/json"
	"slices"
	"time"
)

const (
	// DefaultTimeout bounds component resolution and the scoring API call.
	DefaultTimeout = 5 * time.Second
	// DefaultCacheLifetime is zero so that API responses are not persisted unless asked for.
	DefaultCacheLifetime = time.Duration(0)
	// MaximumCacheLifetime caps any persisted API response (72h).
	MaximumCacheLifetime = 259_200_000 * time.Millisecond
	// DefaultStoragePrefix namespaces every persisted key.
	DefaultStoragePrefix = "thumbmark"
	// DefaultAPIEndpoint is the remote scoring service.
	DefaultAPIEndpoint = "https://api.thumbmarkjs.com"
	// DefaultLogSampleRate is the probability that a session reports to the log endpoint.
	DefaultLogSampleRate = 0.0001
)

// Options configures a single thumbmark computation.
type Options struct {
	Exclude       []string      `json:"exclude"`
	Include       []string      `json:"include"`
	Stabilize     []string      `json:"stabilize"`
	Timeout       time.Duration `json:"-"`
	APIKey        string        `json:"api_key,omitempty"`
	APIEndpoint   string        `json:"api_endpoint,omitempty"`
	CacheAPICall  bool          `json:"cache_api_call"`
	CacheLifetime time.Duration `json:"-"`
	Performance   bool          `json:"performance"`
	Logging       bool          `json:"logging"`
	Experimental  bool          `json:"experimental"`
	LogSampleRate float64       `json:"-"`

	// PermissionsToCheck narrows the permissions probe; empty means its built-in list.
	PermissionsToCheck []string `json:"permissions_to_check,omitempty"`

	// PropertyName maps a logical storage name (e.g. "visitor_id") to the key it is stored under.
	PropertyName func(name string) string `json:"-"`
}

// Option overrides a single field of Options.
type Option func(*Options)

// DefaultPropertyName prefixes name with DefaultStoragePrefix.
func DefaultPropertyName(name string) string {
	return DefaultStoragePrefix + "_" + name
}

// PrefixedPropertyName returns a namer using prefix instead of DefaultStoragePrefix.
func PrefixedPropertyName(prefix string) func(string) string {
	return func(name string) string {
		return prefix + "_" + name
	}
}

// Default returns the built-in defaults.
func Default() Options {
	return Options{
		Exclude:       []string{},
		Include:       []string{},
		Stabilize:     []string{"private", "iframe"},
		Timeout:       DefaultTimeout,
		CacheAPICall:  true,
		CacheLifetime: DefaultCacheLifetime,
		Logging:       true,
		LogSampleRate: DefaultLogSampleRate,
		PropertyName:  DefaultPropertyName,
	}
}

// New copies base and applies opts on top of it.
func New(base Options, opts ...Option) *Options {
	o := base.Clone()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PropertyName == nil {
		o.PropertyName = DefaultPropertyName
	}
	return &o
}

// Clone returns a copy that shares no slices with o.
func (o Options) Clone() Options {
	o.Exclude = slices.Clone(o.Exclude)
	o.Include = slices.Clone(o.Include)
	o.Stabilize = slices.Clone(o.Stabilize)
	o.PermissionsToCheck = slices.Clone(o.PermissionsToCheck)
	return o
}

// Endpoint returns the configured API endpoint or the default one.
func (o *Options) Endpoint() string {
	if o.APIEndpoint != "" {
		return o.APIEndpoint
	}
	return DefaultAPIEndpoint
}

// MarshalJSON emits durations in milliseconds, the unit the scoring API expects.
func (o Options) MarshalJSON() ([]byte, error) {
	type plain Options
	return json.Marshal(struct {
		plain
		Timeout         int64 `json:"timeout"`
		CacheLifetimeMs int64 `json:"cache_lifetime_in_ms"`
	}{
		plain:           plain(o),
		Timeout:         o.Timeout.Milliseconds(),
		CacheLifetimeMs: o.CacheLifetime.Milliseconds(),
	})
}

func WithExclude(paths ...string) Option {
	return func(o *Options) { o.Exclude = paths }
}

func WithInclude(paths ...string) Option {
	return func(o *Options) { o.Include = paths }
}

func WithStabilize(sets ...string) Option {
	return func(o *Options) { o.Stabilize = sets }
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

func WithAPIKey(key string) Option {
	return func(o *Options) { o.APIKey = key }
}

func WithAPIEndpoint(endpoint string) Option {
	return func(o *Options) { o.APIEndpoint = endpoint }
}

func WithCacheAPICall(enabled bool) Option {
	return func(o *Options) { o.CacheAPICall = enabled }
}

func WithCacheLifetime(d time.Duration) Option {
	return func(o *Options) { o.CacheLifetime = d }
}

func WithPerformance(enabled bool) Option {
	return func(o *Options) { o.Performance = enabled }
}

func WithLogging(enabled bool) Option {
	return func(o *Options) { o.Logging = enabled }
}

func WithExperimental(enabled bool) Option {
	return func(o *Options) { o.Experimental = enabled }
}

func WithLogSampleRate(rate float64) Option {
	return func(o *Options) { o.LogSampleRate = rate }
}

func WithPermissionsToCheck(names ...string) Option {
	return func(o *Options) { o.PermissionsToCheck = names }
}

func WithPropertyName(namer func(string) string) Option {
	return func(o *Options) { o.PropertyName = namer }
}
