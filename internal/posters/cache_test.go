package posters_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ogero/allocine-weekly/internal/posters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCache_ClearThenWrite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.jpg")
	writeFile(t, dir, "2.jpg")
	writeFile(t, dir, "old-poster.jpg")
	writeFile(t, dir, "notes.txt")
	writeFile(t, dir, "poster.png")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755))

	c := posters.NewCache(dir)

	removed, err := c.Clear()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.ElementsMatch(t, []string{"notes.txt", "poster.png", "sub.jpg"}, listDir(t, dir))

	path, err := c.WritePoster(1, []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1.jpg"), path)
	assert.ElementsMatch(t, []string{"1.jpg", "notes.txt", "poster.png", "sub.jpg"}, listDir(t, dir))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), b)
}

func TestCache_WritePoster(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "posters")
	c := posters.NewCache(dir)

	_, err := c.WritePoster(2, []byte("first"))
	require.NoError(t, err)

	path, err := c.WritePoster(2, []byte("second"))
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))
	assert.Equal(t, []string{"2.jpg"}, listDir(t, dir))

	_, err = c.WritePoster(0, []byte("x"))
	assert.Error(t, err)
}

func TestCache_ClearMissingDir(t *testing.T) {
	c := posters.NewCache(filepath.Join(t.TempDir(), "missing"))

	removed, err := c.Clear()
	require.NoError(t, err)
	assert.Zero(t, removed)
}
