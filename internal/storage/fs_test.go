package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFSStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	key, err := s.Put(ctx, "packs/p1.json", strings.NewReader(`{"schema":"x"}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != `{"schema":"x"}` {
		t.Fatalf("got %q", b)
	}
}

func TestFSStoreStaysInBase(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.Put(context.Background(), "../../escape.json", strings.NewReader("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.json")); !os.IsNotExist(err) {
		t.Fatalf("key escaped base dir")
	}
	if _, err := os.Stat(filepath.Join(dir, "blobs", "escape.json")); err != nil {
		t.Fatalf("blob not under base: %v", err)
	}
}
