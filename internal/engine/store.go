package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is the storage boundary for finished artifacts: write bytes, get back
// a stable path. In the browser-extension deployment this is the download
// manager; tests use an in-memory fake.
type Store interface {
	Save(name string, data []byte) (path string, size int64, err error)
}

// DirStore saves artifacts into a directory on the local filesystem.
type DirStore struct {
	Dir string
}

func (s *DirStore) Save(name string, data []byte) (string, int64, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(s.Dir, SanitizeFilename(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", 0, fmt.Errorf("write artifact: %w", err)
	}
	return path, int64(len(data)), nil
}
