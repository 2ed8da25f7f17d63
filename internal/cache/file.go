package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spectree/spectree/internal/export"
	"github.com/spectree/spectree/internal/types"
)

var unsafeKeyRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileCache stores snapshots as JSON files, one per app, under Dir.
type FileCache struct {
	Dir string
}

// NewFileCache creates dir if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &FileCache{Dir: dir}, nil
}

// Path is the snapshot file for appID.
func (c *FileCache) Path(appID string) string {
	return filepath.Join(c.Dir, "tree-"+unsafeKeyRe.ReplaceAllString(appID, "_")+".json")
}

// Load implements Cache.
func (c *FileCache) Load(_ context.Context, appID string) (*types.Tree, error) {
	data, err := os.ReadFile(c.Path(appID)) // #nosec G304 - path built from sanitized key
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", appID, ErrMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	var t types.Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("corrupt cache for %s: %w", appID, err)
	}
	t.Normalize()
	return &t, nil
}

// Save implements Cache.
func (c *FileCache) Save(_ context.Context, t *types.Tree) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}
	return export.WriteAtomic(c.Path(Key(t)), data, 0o600)
}

// Close implements Cache.
func (c *FileCache) Close() error { return nil }
