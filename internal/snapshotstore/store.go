// Package snapshotstore defines where backup snapshots are kept.
//
// Providers (local directory, MinIO/S3) implement Store. Callers depend on
// this package only:
//
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	info, err := store.Put(ctx, snapshotstore.NewKey("snapshots", time.Now()), r, size)
package snapshotstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned (wrapped) when a key does not exist.
var ErrNotFound = errors.New("snapshot not found")

// ErrInvalidKey is returned (wrapped) for keys outside the allowed form.
var ErrInvalidKey = errors.New("invalid snapshot key")

// Store persists snapshot documents as named objects.
type Store interface {
	// Put stores r under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64) (ObjectInfo, error)

	// Get opens the object at key. The caller must close it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the objects whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete removes key. Deleting a missing key returns ErrNotFound.
	Delete(ctx context.Context, key string) error
}

// ObjectInfo describes a stored snapshot.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// keyPattern allows slash-separated segments of safe characters.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+(/[A-Za-z0-9._-]+)*$`)

// ValidateKey rejects keys that could escape the store's root.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// NewKey names a snapshot taken at t under prefix. Keys sort by time.
func NewKey(prefix string, t time.Time) string {
	name := "backup-" + t.UTC().Format("20060102T150405.000Z") + ".json"
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
