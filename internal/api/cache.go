package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/stupside/thumbmark/internal/options"
	"github.com/stupside/thumbmark/internal/storage"
)

const cacheKey = "cache"

// Cache is the persisted record under PropertyName("cache").
type Cache struct {
	APIResponse *Response `json:"apiResponse,omitempty"`
	// APIResponseExpiry is in epoch milliseconds.
	APIResponseExpiry int64 `json:"apiResponseExpiry,omitempty"`
}

// Fresh reports whether the cache holds a response that has not expired.
func (c Cache) Fresh(now time.Time) bool {
	return c.APIResponse != nil && now.UnixMilli() < c.APIResponseExpiry
}

// ReadCache returns the persisted cache. Missing or unreadable entries yield
// an empty Cache.
func ReadCache(ctx context.Context, store *storage.Tolerant, opts *options.Options) Cache {
	raw := store.Read(ctx, opts.PropertyName(cacheKey))
	if raw == "" {
		return Cache{}
	}
	var c Cache
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		slog.DebugContext(ctx, "ignoring unreadable cache", "error", err)
		return Cache{}
	}
	return c
}

// WriteCache merges update into the persisted cache.
func WriteCache(ctx context.Context, store *storage.Tolerant, opts *options.Options, update Cache) {
	c := ReadCache(ctx, store, opts)
	if update.APIResponse != nil {
		c.APIResponse = update.APIResponse
	}
	if update.APIResponseExpiry != 0 {
		c.APIResponseExpiry = update.APIResponseExpiry
	}

	data, err := json.Marshal(c)
	if err != nil {
		slog.DebugContext(ctx, "encoding cache", "error", err)
		return
	}
	store.Write(ctx, opts.PropertyName(cacheKey), string(data))
}

// Expiry returns now+lifetime, capped at now+MaximumCacheLifetime.
func Expiry(now time.Time, lifetime time.Duration) time.Time {
	return now.Add(min(lifetime, options.MaximumCacheLifetime))
}
