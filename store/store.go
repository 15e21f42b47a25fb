// Package store persists the normalized technique records between builds
// so a serving process can start without re-reading the raw mapping dump.
//
// One Store interface, three backends: an in-process memory store, a
// compact JSON flat file, and a Redis-backed store. Records round-trip in
// the exact dedup/sort order fixed at build time, so the query engine never
// re-derives ordering at read time. The backend is chosen explicitly by
// configuration via Open; there is no fallback from one backend to another.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/countermap/countermap/config"
	"github.com/countermap/countermap/ontology"
)

// ErrNotFound indicates that no persisted index exists in the backend yet.
var ErrNotFound = errors.New("no persisted index")

// Store persists and retrieves a complete normalized index. Save replaces
// the previous contents wholesale; Load returns records in saved order.
type Store interface {
	// Save replaces the persisted index with the given records.
	Save(ctx context.Context, techniques []ontology.Technique) error

	// Load returns all persisted records in saved order, or ErrNotFound
	// when nothing has been saved yet.
	Load(ctx context.Context) ([]ontology.Technique, error)

	// Close releases backend resources.
	Close() error
}

// Open creates the store selected by the configuration. Unknown backends
// are a configuration error, never a silent fallback.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Path), nil
	case "redis":
		return NewRedisStore(RedisOptions{
			URL:       cfg.Redis.URL,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
