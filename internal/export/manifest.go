package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spectree/spectree/internal/types"
)

// Manifest describes one export file. It is written next to the export as
// <name>.manifest.json.
type Manifest struct {
	ExportedAt time.Time      `json:"exported_at"`
	Format     Format         `json:"format"`
	App        string         `json:"app"`
	Since      *time.Time     `json:"since,omitempty"`
	Counts     map[string]int `json:"counts"`
}

// NewManifest summarizes t.
func NewManifest(t *types.Tree, format Format, since time.Time) *Manifest {
	m := &Manifest{
		ExportedAt: time.Now().UTC(),
		Format:     format,
		App:        t.App.DocumentID,
		Counts:     make(map[string]int, len(types.AllItemTypes)),
	}
	if m.App == "" {
		m.App = t.App.ID
	}
	if !since.IsZero() {
		m.Since = &since
	}
	for _, it := range types.AllItemTypes {
		m.Counts[string(it)] = t.Count(it)
	}
	return m
}

// ManifestPath derives the manifest path from an export path.
func ManifestPath(exportPath string) string {
	return strings.TrimSuffix(exportPath, filepath.Ext(exportPath)) + ".manifest.json"
}

// WriteFile exports t to path and writes its manifest. Both files are
// replaced atomically.
func WriteFile(path string, t *types.Tree, format Format, since time.Time) (*Manifest, error) {
	if !since.IsZero() {
		t = Since(t, since)
	}
	var buf bytes.Buffer
	if err := Write(&buf, t, format); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	if err := WriteAtomic(path, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}

	manifest := NewManifest(t, format, since)
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := WriteAtomic(ManifestPath(path), data, 0o600); err != nil {
		return nil, err
	}
	return manifest, nil
}

// WriteAtomic writes data to a temp file in the target directory and renames
// it over path.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tempFile, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		_ = tempFile.Close()    // may already be closed before rename
		_ = os.Remove(tempPath) // may already be renamed
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", base, err)
	}
	// Close before rename (required on Windows)
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", base, err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", base, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", base, err)
	}
	return nil
}
