package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// snapshotFile persists a whole collection as one JSON document.
// An empty path disables persistence.
type snapshotFile[T any] struct {
	path string
}

func newSnapshotFile[T any](path string) *snapshotFile[T] {
	return &snapshotFile[T]{path: path}
}

func (s *snapshotFile[T]) enabled() bool {
	return s.path != ""
}

// load returns the persisted items, or nil when no snapshot exists yet
func (s *snapshotFile[T]) load() ([]T, error) {
	if !s.enabled() {
		return nil, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", s.path, err)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", s.path, err)
	}

	return items, nil
}

// save replaces the snapshot atomically through a temp file and rename
func (s *snapshotFile[T]) save(items []T) error {
	if !s.enabled() {
		return nil
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot %s: %w", s.path, err)
	}

	return nil
}
