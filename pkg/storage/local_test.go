package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func newTestLocal(t *testing.T) (*Local, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "archive")
	s, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return s, dir
}

func TestLocalPutGet(t *testing.T) {
	s, dir := newTestLocal(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "audio/rust/item_1.msgpack"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Get missing = %v, want os.ErrNotExist", err)
	}
	if err := s.Put(ctx, "audio/rust/item_1.msgpack", []byte("first take")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "audio/rust/item_1.msgpack", []byte("pcm")); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	got, err := s.Get(ctx, "audio/rust/item_1.msgpack")
	if err != nil || string(got) != "pcm" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "audio", "rust"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("left temporary files behind: %v", entries)
	}
}

func TestLocalDeleteIsIdempotent(t *testing.T) {
	s, _ := newTestLocal(t)
	ctx := context.Background()
	if err := s.Put(ctx, "tmp", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for range 2 {
		if err := s.Delete(ctx, "tmp"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}
	if _, err := s.Get(ctx, "tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Get after Delete = %v", err)
	}
}

func TestLocalList(t *testing.T) {
	s, dir := newTestLocal(t)
	ctx := context.Background()
	for _, p := range []string{"audio/rust/b", "audio/rust/a", "audio/go/c", "other"} {
		if err := s.Put(ctx, p, []byte("x")); err != nil {
			t.Fatalf("Put %s: %v", p, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "audio", "rust", ".a.123"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := s.List(ctx, "audio/rust/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := []string{"audio/rust/a", "audio/rust/b"}; !slices.Equal(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
	if all, _ := s.List(ctx, ""); len(all) != 4 {
		t.Fatalf("List all = %v", all)
	}
}
