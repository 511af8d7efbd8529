package minio

import (
	"context"
	"errors"
	"net/http"
	"testing"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/JonMunkholm/fincore/internal/snapshotstore"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantNotFound bool
	}{
		{"404", miniogo.ErrorResponse{StatusCode: http.StatusNotFound}, true},
		{"no such key", miniogo.ErrorResponse{StatusCode: http.StatusOK, Code: "NoSuchKey"}, true},
		{"no such bucket", miniogo.ErrorResponse{Code: "NoSuchBucket"}, true},
		{"access denied", miniogo.ErrorResponse{StatusCode: http.StatusForbidden, Code: "AccessDenied"}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err, "get snapshots/a.json")
			if got := errors.Is(err, snapshotstore.ErrNotFound); got != tt.wantNotFound {
				t.Errorf("errors.Is(ErrNotFound) = %v, want %v (err %v)", got, tt.wantNotFound, err)
			}
			if tt.wantNotFound {
				return
			}
			var resp miniogo.ErrorResponse
			if !errors.As(err, &resp) && !errors.Is(err, tt.err) {
				t.Errorf("original error not wrapped: %v", err)
			}
		})
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{Endpoint: "localhost:9000"}); err == nil {
		t.Error("New() without bucket should fail")
	}
}

func TestStore_RejectsInvalidKeys(t *testing.T) {
	// Key validation happens before any request, so no server is needed.
	s := &Store{bucket: "b"}
	ctx := context.Background()

	if _, err := s.Get(ctx, "../x.json"); !errors.Is(err, snapshotstore.ErrInvalidKey) {
		t.Errorf("Get() error = %v, want ErrInvalidKey", err)
	}
	if err := s.Delete(ctx, "/abs.json"); !errors.Is(err, snapshotstore.ErrInvalidKey) {
		t.Errorf("Delete() error = %v, want ErrInvalidKey", err)
	}
	if _, err := s.Put(ctx, "a b.json", nil, 0); !errors.Is(err, snapshotstore.ErrInvalidKey) {
		t.Errorf("Put() error = %v, want ErrInvalidKey", err)
	}
}
