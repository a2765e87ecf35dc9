// Package storage is the physical layer for artifact bytes. Objects are
// addressed by opaque keys; every write goes to a fresh key.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/google/uuid"
)

// BlobStore stores and retrieves object bytes.
type BlobStore interface {
	// Put writes r under key and returns the number of bytes stored. size is
	// the length announced by the caller, or -1 when unknown. Stores need not
	// read more than size+1 bytes, so a longer body shows up as a count of
	// size+1.
	Put(ctx context.Context, key string, r io.Reader, size int64) (int64, error)
	// Copy duplicates the object at src to dst.
	Copy(ctx context.Context, src, dst string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh storage key under the scope's prefix.
func NewKey(scope models.Scope) string {
	d := time.Now().UTC()
	return fmt.Sprintf("%s/%s/%d/%02d/%02d/%v", scope.Kind, scope.ID, d.Year(), d.Month(), d.Day(), uuid.New())
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
