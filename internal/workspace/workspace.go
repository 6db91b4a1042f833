package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is a scratch directory owned by a single generation request.
type Workspace struct {
	ID   string
	Dir  string
	Keep bool
}

// New creates a fresh directory under base (the system temp dir when empty).
func New(base string) (*Workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}
	id := uuid.NewString()
	dir := filepath.Join(base, "beatreel-"+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{ID: id, Dir: dir}, nil
}

func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Close removes the directory and everything in it unless Keep is set.
func (w *Workspace) Close() error {
	if w == nil || w.Keep {
		return nil
	}
	return os.RemoveAll(w.Dir)
}
