package filetransfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Cache is the on-disk store of fetched remote file bytes, laid out as
// cache_dir/<src_device_id>/<file_id>[.<ext>] (§4.15).
type Cache struct {
	dir string
	mu  sync.Mutex
}

func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) pathFor(srcDeviceID string, fileID int64, ext string) string {
	name := fmt.Sprintf("%d%s", fileID, ext)
	return filepath.Join(c.dir, srcDeviceID, name)
}

func (c *Cache) tempPathFor(srcDeviceID string, fileID int64) string {
	return filepath.Join(c.dir, srcDeviceID, fmt.Sprintf(".tmp-%d", fileID))
}

// Lookup returns the cached path for (srcDeviceID, fileID, ext) if the
// file is present and matches size (and checksum, when one was given),
// short-circuiting a re-fetch (§3, §4.15). A nil checksum skips the
// re-hash and trusts size alone, same as before a checksum was known.
func (c *Cache) Lookup(srcDeviceID string, fileID int64, ext string, expectedSize int64, checksum *string) (string, bool) {
	path := c.pathFor(srcDeviceID, fileID, ext)
	info, err := os.Stat(path)
	if err != nil || info.Size() != expectedSize {
		return "", false
	}
	if checksum != nil && !fileChecksumMatches(path, *checksum) {
		return "", false
	}
	return path, true
}

func fileChecksumMatches(path, want string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	return hex.EncodeToString(h.Sum(nil)) == want
}

// Commit moves tempPath into its final cache location atomically.
func (c *Cache) Commit(srcDeviceID string, fileID int64, ext, tempPath string) (string, error) {
	final := c.pathFor(srcDeviceID, fileID, ext)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return "", fmt.Errorf("filetransfer: cache mkdir: %w", err)
	}
	if err := os.Rename(tempPath, final); err != nil {
		return "", fmt.Errorf("filetransfer: cache commit: %w", err)
	}
	return final, nil
}

// Clear removes every cached file.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("filetransfer: cache clear: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("filetransfer: cache clear: %w", err)
		}
	}
	return nil
}

// TotalSize sums the size of every cached file.
func (c *Cache) TotalSize() (int64, error) {
	var total int64
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("filetransfer: cache size: %w", err)
	}
	return total, nil
}
