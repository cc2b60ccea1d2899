// Package blobstore keeps the bytes of content objects under a managed
// root, addressed by storage locators of the form "<h[0:2]>/<h>".
package blobstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var ErrorInvalidLocator = errors.New("invalid storage locator")

// BlobInfo describes one stored blob.
type BlobInfo struct {
	Locator string
	Size    int64
	ModTime time.Time
}

// Store is a blob backend. Create never overwrites: an occupied locator
// yields common.ErrorAlreadyExists. Open and Remove report a missing blob
// as common.ErrorNotFound where the backend can tell.
type Store interface {
	Create(ctx context.Context, locator string, r io.Reader) (int64, error)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	Remove(ctx context.Context, locator string) error
	Walk(ctx context.Context, fn func(BlobInfo) error) error
	Check(ctx context.Context) error
}

// Locator derives the sharded storage locator for handle.
func Locator(handle string) string {
	if len(handle) < 2 {
		return handle
	}
	return handle[:2] + "/" + handle
}

func validLocator(locator string) error {
	if locator == "" || strings.HasPrefix(locator, "/") || strings.Contains(locator, "\\") {
		return ErrorInvalidLocator
	}
	if path.Clean(locator) != locator {
		return ErrorInvalidLocator
	}
	for _, part := range strings.Split(locator, "/") {
		if part == ".." || strings.HasPrefix(part, ".") {
			return ErrorInvalidLocator
		}
	}
	return nil
}
