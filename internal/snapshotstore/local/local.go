// Package local stores snapshots as files under a directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/fincore/internal/snapshotstore"
)

// Store is a snapshotstore.Store rooted at a directory.
type Store struct {
	root string
}

// New returns a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("local store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) path(key string) (string, error) {
	if err := snapshotstore.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put writes r to a temporary file and renames it into place, so readers
// never observe a partial snapshot.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) (snapshotstore.ObjectInfo, error) {
	p, err := s.path(key)
	if err != nil {
		return snapshotstore.ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return snapshotstore.ObjectInfo{}, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return snapshotstore.ObjectInfo{}, fmt.Errorf("put %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return snapshotstore.ObjectInfo{}, fmt.Errorf("put %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return snapshotstore.ObjectInfo{}, fmt.Errorf("put %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return snapshotstore.ObjectInfo{}, fmt.Errorf("put %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return snapshotstore.ObjectInfo{}, fmt.Errorf("put %s: %w", key, err)
	}

	st, err := os.Stat(p)
	if err != nil {
		return snapshotstore.ObjectInfo{}, fmt.Errorf("put %s: %w", key, err)
	}
	return snapshotstore.ObjectInfo{Key: key, Size: st.Size(), LastModified: st.ModTime()}, nil
}

// Get opens the file for key.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, mapError(key, err)
	}
	return f, nil
}

// List walks the directory for keys starting with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]snapshotstore.ObjectInfo, error) {
	out := []snapshotstore.ObjectInfo{}

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, snapshotstore.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes the file for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return mapError(key, err)
	}
	return nil
}

func mapError(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", snapshotstore.ErrNotFound, key)
	}
	return fmt.Errorf("%s: %w", key, err)
}
