package posters

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ogero/allocine-weekly/internal/common"
)

// posterPattern matches every file this package writes.
const posterPattern = "*.jpg"

// Cache stores poster images on disk, one file per rank.
type Cache struct {
	dir string
}

// NewCache returns a Cache rooted at dir. The directory is created on first write.
func NewCache(dir string) *Cache {
	return &Cache{dir: filepath.Clean(dir)}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the file path used for rank.
func (c *Cache) Path(rank int) string {
	return filepath.Join(c.dir, strconv.Itoa(rank)+".jpg")
}

// Clear deletes every cached poster and returns how many were removed. A failed deletion is logged and
// skipped. Files not matching the poster pattern are left untouched, and a missing directory is empty.
func (c *Cache) Clear() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to os.ReadDir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(posterPattern, entry.Name()); !ok {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			common.Log.Warn("Failed to delete cached poster", "path", path, "err", err)
			continue
		}
		removed++
	}

	common.Log.Info("Cleared poster cache", "dir", c.dir, "removed", removed)

	return removed, nil
}

// WritePoster writes data as the poster for rank, replacing any previous file, and returns its path.
func (c *Cache) WritePoster(rank int, data []byte) (string, error) {
	if rank < 1 {
		return "", fmt.Errorf("invalid rank %d", rank)
	}

	path := c.Path(rank)
	if err := writeFileAtomic(c.dir, filepath.Base(path), data); err != nil {
		return "", fmt.Errorf("failed to write poster: %w", err)
	}

	return path, nil
}

// writeFileAtomic writes name in dir through a temporary file renamed over the target,
// so readers never see a partially written poster.
func writeFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, filepath.Join(dir, name))
}
