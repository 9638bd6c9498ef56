package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Materializer writes a byte stream to a durable location the merge service
// can read by path. The write-then-reference handoff is an external
// constraint of the service, so it stays behind this seam and tests plug in
// an in-memory fake.
type Materializer interface {
	Materialize(ctx context.Context, name string, data []byte) (path string, err error)
}

// materializeTimeout bounds how long a single artifact write may take.
const materializeTimeout = 60 * time.Second

// DirMaterializer writes track files into a directory shared with the merge
// service.
type DirMaterializer struct {
	Dir string
}

func (m *DirMaterializer) Materialize(ctx context.Context, name string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, materializeTimeout)
	defer cancel()

	path := filepath.Join(m.Dir, name)
	done := make(chan error, 1)
	go func() {
		if err := os.MkdirAll(m.Dir, 0o755); err != nil {
			done <- err
			return
		}
		done <- os.WriteFile(path, data, 0o644)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("materialize %s: %w", name, err)
		}
		return path, nil
	case <-ctx.Done():
		return "", fmt.Errorf("materialize %s: %w", name, ctx.Err())
	}
}
