package api

import (
	"context"

	"github.com/stupside/thumbmark/internal/options"
	"github.com/stupside/thumbmark/internal/storage"
)

const visitorIDKey = "visitor_id"

// VisitorID returns the stored visitor id. When the caller uses a custom
// namer and nothing is stored under it yet, an id under the default key is
// migrated over.
func VisitorID(ctx context.Context, store *storage.Tolerant, opts *options.Options) string {
	key := opts.PropertyName(visitorIDKey)
	if id := store.Read(ctx, key); id != "" {
		return id
	}

	legacy := options.DefaultPropertyName(visitorIDKey)
	if legacy == key {
		return ""
	}
	id := store.Read(ctx, legacy)
	if id != "" {
		store.Write(ctx, key, id)
	}
	return id
}

// SetVisitorID stores id under the caller's key.
func SetVisitorID(ctx context.Context, store *storage.Tolerant, opts *options.Options, id string) {
	store.Write(ctx, opts.PropertyName(visitorIDKey), id)
}
