package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/homeserver/internal/common"
	"github.com/dmitrijs2005/homeserver/internal/filex"
)

// FSStore keeps blobs as files under root.
type FSStore struct {
	root string
}

// NewFSStore creates root if needed and fails unless it is writable.
func NewFSStore(root string) (*FSStore, error) {
	abs, err := filex.EnsureWritableDir(root)
	if err != nil {
		return nil, err
	}
	return &FSStore{root: abs}, nil
}

// Root is the absolute managed directory.
func (s *FSStore) Root() string { return s.root }

func (s *FSStore) path(locator string) (string, error) {
	if err := validLocator(locator); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(locator)), nil
}

// Create writes r to a hidden temp file next to the target and links it
// into place, so readers never observe a partial blob and an existing
// blob is never replaced.
func (s *FSStore) Create(ctx context.Context, locator string, r io.Reader) (int64, error) {
	target, err := s.path(locator)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close blob: %w", err)
	}

	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("%w: %s", common.ErrorAlreadyExists, locator)
		}
		return 0, fmt.Errorf("link blob: %w", err)
	}

	return n, nil
}

func (s *FSStore) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	p, err := s.path(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FSStore) Remove(_ context.Context, locator string) error {
	p, err := s.path(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return common.ErrorNotFound
		}
		return err
	}
	return nil
}

// Walk visits every blob, skipping hidden temp and probe files.
func (s *FSStore) Walk(ctx context.Context, fn func(BlobInfo) error) error {
	return filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		return fn(BlobInfo{Locator: filepath.ToSlash(rel), Size: info.Size(), ModTime: info.ModTime()})
	})
}

// Check re-verifies that the root is still writable.
func (s *FSStore) Check(context.Context) error {
	_, err := filex.EnsureWritableDir(s.root)
	return err
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
