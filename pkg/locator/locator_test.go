package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0644))
}

func TestLocateDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.html"))
	touch(t, filepath.Join(root, "a.html"))
	touch(t, filepath.Join(root, "nested", "deep", "c.HTML"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "report.htm"))

	files, err := Locate(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "a.html"),
		filepath.Join(root, "b.html"),
		filepath.Join(root, "nested", "deep", "c.HTML"),
	}, files)
}

func TestLocateSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	touch(t, path)

	files, err := Locate(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestLocateMissing(t *testing.T) {
	_, err := Locate(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestLocateEmptyDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "readme.md"))

	_, err := Locate(root)
	assert.ErrorIs(t, err, ErrNoInput)
}
