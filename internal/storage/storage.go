// Package storage persists small string values such as the visitor id and the
// cached API response.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stupside/thumbmark/internal/app"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Store is a string key-value store.
type Store interface {
	// Get returns the value under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open returns the store selected by cfg.
func Open(ctx context.Context, cfg app.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", app.BackendMemory:
		return NewMemory(), nil
	case app.BackendFile:
		return NewFile(cfg.Path)
	case app.BackendNATS:
		return NewNATS(ctx, cfg.URL, cfg.Bucket)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// Tolerant wraps a Store so that failures never reach the caller: a failed
// read is a miss and a failed write is a no-op.
type Tolerant struct {
	store Store
}

func NewTolerant(store Store) *Tolerant {
	return &Tolerant{store: store}
}

// Read returns the value under key or the empty string.
func (t *Tolerant) Read(ctx context.Context, key string) string {
	v, ok, err := t.store.Get(ctx, key)
	if err != nil {
		slog.DebugContext(ctx, "storage read failed", "key", key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// Write stores value under key, ignoring errors.
func (t *Tolerant) Write(ctx context.Context, key, value string) {
	if err := t.store.Set(ctx, key, value); err != nil {
		slog.DebugContext(ctx, "storage write failed", "key", key, "error", err)
	}
}
