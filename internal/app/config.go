package app

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/stupside/thumbmark/internal/filter"
	"github.com/stupside/thumbmark/internal/options"
)

// Storage backends understood by StorageConfig.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendNATS   = "nats"
)

// Config holds all application configuration.
type Config struct {
	Browser   BrowserConfig   `koanf:"browser" validate:"required"`
	Thumbmark ThumbmarkConfig `koanf:"thumbmark"`
	Storage   StorageConfig   `koanf:"storage"`
}

// BrowserConfig holds settings for the headless browser that runs the probes.
type BrowserConfig struct {
	Timeout    time.Duration `koanf:"timeout" validate:"required"`
	Headless   bool          `koanf:"headless"`
	NoSandbox  bool          `koanf:"no_sandbox"`
	ChromePath string        `koanf:"chrome_path" validate:"required"`

	// Emulation overrides; empty values keep the browser's own.
	UserAgent string `koanf:"user_agent"`
	Locale    string `koanf:"locale"`
	Timezone  string `koanf:"timezone"`
	Width     int64  `koanf:"width" validate:"omitempty,min=320"`
	Height    int64  `koanf:"height" validate:"omitempty,min=240"`

	// SnapshotDir receives page screenshots when debug logging is on.
	SnapshotDir string `koanf:"snapshot_dir"`
}

// ThumbmarkConfig holds the instance-level defaults for every computation.
// Pointer fields distinguish "unset" from an explicit false or zero.
type ThumbmarkConfig struct {
	Timeout       time.Duration   `koanf:"timeout" validate:"gte=0"`
	Exclude       []string        `koanf:"exclude"`
	Include       []string        `koanf:"include"`
	Stabilize     []string        `koanf:"stabilize"`
	APIKey        string          `koanf:"api_key"`
	APIEndpoint   string          `koanf:"api_endpoint" validate:"omitempty,url"`
	CacheAPICall  *bool           `koanf:"cache_api_call"`
	CacheLifetime time.Duration   `koanf:"cache_lifetime" validate:"gte=0"`
	Performance   bool            `koanf:"performance"`
	Logging       *bool           `koanf:"logging"`
	Experimental  bool            `koanf:"experimental"`
	LogSampleRate *float64        `koanf:"log_sample_rate" validate:"omitempty,gte=0,lte=1"`
	StoragePrefix string          `koanf:"storage_prefix"`
	Rules         filter.RuleSets `koanf:"rules" validate:"omitempty,dive,dive"`

	PermissionsToCheck []string `koanf:"permissions_to_check"`
}

// StorageConfig selects where the visitor id and API cache are persisted.
type StorageConfig struct {
	Backend string `koanf:"backend" validate:"omitempty,oneof=memory file nats"`
	Path    string `koanf:"path" validate:"required_if=Backend file"`
	URL     string `koanf:"url" validate:"required_if=Backend nats"`
	Bucket  string `koanf:"bucket" validate:"required_if=Backend nats"`
}

// Defaults layers the configured values over options.Default.
func (c ThumbmarkConfig) Defaults() options.Options {
	o := options.Default()
	if c.Timeout > 0 {
		o.Timeout = c.Timeout
	}
	if c.Exclude != nil {
		o.Exclude = c.Exclude
	}
	if c.Include != nil {
		o.Include = c.Include
	}
	if c.Stabilize != nil {
		o.Stabilize = c.Stabilize
	}
	o.APIKey = c.APIKey
	o.APIEndpoint = c.APIEndpoint
	if c.CacheAPICall != nil {
		o.CacheAPICall = *c.CacheAPICall
	}
	o.CacheLifetime = c.CacheLifetime
	o.Performance = c.Performance
	if c.Logging != nil {
		o.Logging = *c.Logging
	}
	o.Experimental = c.Experimental
	if c.LogSampleRate != nil {
		o.LogSampleRate = *c.LogSampleRate
	}
	if c.PermissionsToCheck != nil {
		o.PermissionsToCheck = c.PermissionsToCheck
	}
	if c.StoragePrefix != "" {
		o.PropertyName = options.PrefixedPropertyName(c.StoragePrefix)
	}
	return o.Clone()
}

// RuleSets returns the built-in rule sets with configured sets layered on top.
func (c ThumbmarkConfig) RuleSets() filter.RuleSets {
	return filter.DefaultRuleSets().Merge(c.Rules)
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// ConfigFrom extracts the Config from the CLI command metadata.
func ConfigFrom(cmd *cli.Command) (*Config, error) {
	v, ok := cmd.Root().Metadata["config"]
	if !ok {
		return nil, fmt.Errorf("config not found in command metadata")
	}
	cfg, ok := v.(*Config)
	if !ok {
		return nil, fmt.Errorf("config has unexpected type %T", v)
	}
	return cfg, nil
}
