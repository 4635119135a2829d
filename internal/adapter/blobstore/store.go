// Package blobstore keeps uploaded image files on an afero filesystem and
// serves them over HTTP.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/spf13/afero"
)

var ErrInvalidPath = errors.New("invalid blob path")

type Store struct {
	fs      afero.Fs
	baseURL string
}

var _ domain.BlobStore = (*Store)(nil)

// New returns a store rooted at fsys. Public URLs are baseURL joined with
// the blob path.
func New(fsys afero.Fs, baseURL string) *Store {
	return &Store{fs: fsys, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewOnDisk returns a store rooted at dir on the local filesystem.
func NewOnDisk(dir, baseURL string) (*Store, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return New(afero.NewBasePathFs(osFs, dir), baseURL), nil
}

func (s *Store) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanPath(name)
	if err != nil {
		return "", err
	}

	if err := s.fs.MkdirAll(path.Dir(clean), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := afero.WriteReader(s.fs, clean, r); err != nil {
		_ = s.fs.Remove(clean)
		return "", fmt.Errorf("failed to write blob %s (%s): %w", clean, contentType, err)
	}
	return s.URL(clean), nil
}

// Remove deletes the blob. A blob that does not exist is not an error.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := cleanPath(name)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(clean); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove blob %s: %w", clean, err)
	}
	return nil
}

func (s *Store) Open(name string) (afero.File, error) {
	clean, err := cleanPath(name)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(clean)
}

func (s *Store) URL(name string) string {
	return s.baseURL + "/" + strings.TrimLeft(name, "/")
}

// Handler serves stored files. Directory listings are not served. Mount it
// with the URL prefix stripped.
func (s *Store) Handler() http.Handler {
	files := http.FileServer(afero.NewHttpFs(s.fs))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// cleanPath normalises a relative blob path to the rooted form the
// filesystem and the file server share. Anything that would resolve
// outside the store root is rejected.
func cleanPath(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, '\\') {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	clean := path.Clean("/" + name)
	if clean == "/" || "/"+path.Clean(name) != clean {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return clean, nil
}
