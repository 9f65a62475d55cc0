package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	w := DirWriter{Dir: dir}

	path, err := w.Write(context.Background(), "grok_abc_001.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "grok_abc_001.jpg"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files remain")
}

func TestDirWriter_RejectsPaths(t *testing.T) {
	w := DirWriter{Dir: t.TempDir()}
	for _, name := range []string{"", "../escape.jpg", "sub/dir.jpg"} {
		_, err := w.Write(context.Background(), name, []byte("x"))
		assert.Error(t, err, name)
	}
}
