package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirWriter writes artifacts into a directory. Each file appears atomically under its
// final name.
type DirWriter struct {
	Dir string
}

// Write implements Writer.
func (w DirWriter) Write(_ context.Context, name string, data []byte) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(w.Dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	final := filepath.Join(w.Dir, name)
	if err := os.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	if err := os.Chmod(final, 0644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", name, err)
	}
	return final, nil
}
