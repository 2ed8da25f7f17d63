// Package cache keeps the last known tree of an app between CLI runs.
package cache

import (
	"context"
	"errors"

	"github.com/spectree/spectree/internal/types"
)

// ErrMiss is returned when nothing is cached for an app.
var ErrMiss = errors.New("cache miss")

// Cache stores one tree snapshot per app, keyed by the app's documentId (or
// local id for apps never synced).
type Cache interface {
	Load(ctx context.Context, appID string) (*types.Tree, error)
	Save(ctx context.Context, t *types.Tree) error
	Close() error
}

// Key returns the cache key for t.
func Key(t *types.Tree) string {
	if t.App.DocumentID != "" {
		return t.App.DocumentID
	}
	return t.App.ID
}
