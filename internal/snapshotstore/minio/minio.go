// Package minio stores snapshots in a MinIO or S3-compatible bucket.
//
// Usage:
//
//	store, err := minio.New(ctx, minio.Config{
//		Endpoint: "localhost:9000", AccessKey: "minioadmin", SecretKey: "minioadmin",
//		Bucket: "fincore-backups",
//	})
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/JonMunkholm/fincore/internal/snapshotstore"
)

// Config holds connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
}

// Store is a snapshotstore.Store backed by one bucket. It is safe for
// concurrent use.
type Store struct {
	client *miniogo.Client
	bucket string
}

// New connects to the server and creates the bucket when it is missing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("minio store: bucket is required")
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio store: create client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, mapError(err, "check bucket "+cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, mapError(err, "create bucket "+cfg.Bucket)
		}
	}

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads r as a JSON object.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) (snapshotstore.ObjectInfo, error) {
	if err := snapshotstore.ValidateKey(key); err != nil {
		return snapshotstore.ObjectInfo{}, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return snapshotstore.ObjectInfo{}, mapError(err, "put "+key)
	}
	return snapshotstore.ObjectInfo{Key: key, Size: info.Size, LastModified: info.LastModified}, nil
}

// Get opens a streaming handle to key. The object is stat'ed first so a
// missing key fails here rather than on the first Read.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := snapshotstore.ValidateKey(key); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "get "+key)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapError(err, "get "+key)
	}
	return obj, nil
}

// List returns every object under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]snapshotstore.ObjectInfo, error) {
	out := []snapshotstore.ObjectInfo{}

	for obj := range s.client.ListObjects(ctx, s.bucket, miniogo.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "list "+prefix)
		}
		out = append(out, snapshotstore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := snapshotstore.ValidateKey(key); err != nil {
		return err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, miniogo.StatObjectOptions{}); err != nil {
		return mapError(err, "delete "+key)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "delete "+key)
	}
	return nil
}

// mapError folds S3 "not found" responses into snapshotstore.ErrNotFound.
func mapError(err error, msg string) error {
	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		switch {
		case resp.StatusCode == http.StatusNotFound,
			resp.Code == "NoSuchKey", resp.Code == "NoSuchBucket":
			return fmt.Errorf("%s: %w", msg, snapshotstore.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
