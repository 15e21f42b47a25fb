package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/countermap/countermap/ontology"
)

// FileStore persists the index as a compact JSON array in a single flat
// file. Writes go through a temp file and rename so readers never observe
// a partially written index.
type FileStore struct {
	path string
}

// NewFileStore creates a file store writing to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes the records as compact JSON, replacing any previous file.
func (s *FileStore) Save(_ context.Context, techniques []ontology.Technique) error {
	data, err := json.Marshal(techniques)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

// Load reads the records back in saved order.
func (s *FileStore) Load(_ context.Context) ([]ontology.Technique, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var techniques []ontology.Technique
	if err := json.Unmarshal(data, &techniques); err != nil {
		return nil, fmt.Errorf("failed to decode index file: %w", err)
	}
	return techniques, nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}
