// Package storage stores agent photos and face crops in an object store and
// hands out the public URLs recorded on agent records.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/agent-faceid/internal/config"
)

// ObjectStore is a flat key/value blob store with public URLs.
type ObjectStore interface {
	// Put uploads data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Delete removes the object under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// PublicURL returns the URL under which key is served.
	PublicURL(key string) string
}

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid object key")

// New creates the object store selected by cfg.Backend.
func New(cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicURL)
	case "azure":
		return NewAzureStore(cfg.AzureAccount, cfg.AzureKey, cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
