package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/fincore/internal/snapshotstore"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "snapshots"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestNew_RequiresDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New(\"\") should fail")
	}
}

func TestStore_PutGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	body := `{"data":{"tables":{}}}`

	info, err := s.Put(ctx, "snapshots/a.json", strings.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Key != "snapshots/a.json" || info.Size != int64(len(body)) {
		t.Errorf("Put() info = %+v", info)
	}
	if info.LastModified.IsZero() {
		t.Error("LastModified should be set")
	}

	rc, err := s.Get(ctx, "snapshots/a.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != body {
		t.Errorf("Get() = %q, want %q", got, body)
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "k.json", strings.NewReader("first"), -1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put(ctx, "k.json", strings.NewReader("second"), -1); err != nil {
		t.Fatal(err)
	}

	rc, err := s.Get(ctx, "k.json")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "second" {
		t.Errorf("Get() = %q, want second", got)
	}
}

func TestStore_PutLeavesNoTempFiles(t *testing.T) {
	s := newStore(t)
	if _, err := s.Put(context.Background(), "x/y.json", strings.NewReader("{}"), 2); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Join(s.root, "x"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "y.json" {
		t.Errorf("directory contents = %v, want only y.json", entries)
	}
}

func TestStore_Missing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "nope.json"); !errors.Is(err, snapshotstore.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "nope.json"); !errors.Is(err, snapshotstore.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStore_InvalidKey(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "../escape.json", strings.NewReader("{}"), 2); !errors.Is(err, snapshotstore.ErrInvalidKey) {
		t.Errorf("Put() error = %v, want ErrInvalidKey", err)
	}
	if _, err := s.Get(ctx, "/etc/passwd"); !errors.Is(err, snapshotstore.ErrInvalidKey) {
		t.Errorf("Get() error = %v, want ErrInvalidKey", err)
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, k := range []string{"snapshots/b.json", "snapshots/a.json", "other/c.json"} {
		if _, err := s.Put(ctx, k, strings.NewReader("{}"), 2); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.List(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].Key != "snapshots/a.json" || list[1].Key != "snapshots/b.json" {
		t.Fatalf("List() = %+v, want a then b", list)
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("List(\"\") returned %d objects, want 3", len(all))
	}

	if err := s.Delete(ctx, "snapshots/a.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	list, _ = s.List(ctx, "snapshots/")
	if len(list) != 1 {
		t.Errorf("after Delete, List() = %+v", list)
	}
}

func TestStore_ListCancelled(t *testing.T) {
	s := newStore(t)
	if _, err := s.Put(context.Background(), "a.json", strings.NewReader("{}"), 2); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.List(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("List() error = %v, want context.Canceled", err)
	}
}

var _ snapshotstore.Store = (*Store)(nil)
