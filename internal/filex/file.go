// Package filex holds file helpers shared by the local blob store and the CLI.
package filex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteAtomic streams r into a temp file under tmpDir and renames it to dst,
// creating dst's directory as needed. An empty tmpDir uses dst's directory.
// A failed write never leaves a partial dst behind.
func WriteAtomic(tmpDir, dst string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return 0, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	if tmpDir == "" {
		tmpDir = dir
	}

	tmp, err := os.CreateTemp(tmpDir, ".put-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	n, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return 0, err
	}
	return n, nil
}

// AvailablePath returns path if nothing exists there, otherwise the first
// free "name (n).ext" next to it.
func AvailablePath(path string) string {
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
