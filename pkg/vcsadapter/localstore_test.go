package vcsadapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xrefdb/elixir/pkg/xhash"
)

// writeObject writes raw bytes into the fan-out object layout and returns
// its hash.
func writeObject(t *testing.T, root string, data []byte) xhash.Hash {
	t.Helper()
	h := xhash.Sum(data)
	hex := h.String()
	dir := filepath.Join(root, "objects", hex[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, hex[2:]), data, 0o644); err != nil {
		t.Fatalf("write object: %v", err)
	}
	return h
}

func writeTag(t *testing.T, root, tag string, manifest xhash.Hash) {
	t.Helper()
	dir := filepath.Join(root, "refs", "tags")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir refs/tags: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, tag), []byte(manifest.String()+"\n"), 0o644); err != nil {
		t.Fatalf("write tag ref: %v", err)
	}
}

func TestLocalStoreTagTreeAndBlobBytes(t *testing.T) {
	root := t.TempDir()
	aHash := writeObject(t, root, []byte("int x; int f(){return x;}"))
	manifest := []byte(aHash.String() + " a.c\n")
	manifestHash := writeObject(t, root, manifest)
	writeTag(t, root, "v0.1", manifestHash)

	store := NewLocalStore(root)
	ctx := context.Background()

	tags, err := store.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "v0.1" {
		t.Fatalf("ListTags = %v, want [v0.1]", tags)
	}

	entries, err := store.TagTree(ctx, "v0.1")
	if err != nil {
		t.Fatalf("TagTree: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "a.c" || entries[0].Hash != aHash {
		t.Fatalf("TagTree = %+v, want single a.c entry", entries)
	}

	data, err := store.BlobBytes(ctx, aHash)
	if err != nil {
		t.Fatalf("BlobBytes: %v", err)
	}
	if string(data) != "int x; int f(){return x;}" {
		t.Fatalf("BlobBytes = %q", data)
	}
}

func TestLocalStoreBlobMissing(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)
	_, err := store.BlobBytes(context.Background(), xhash.Sum([]byte("nowhere")))
	if err == nil {
		t.Fatal("expected error for missing blob")
	}
}

func TestLocalStoreFiltersVCSDirs(t *testing.T) {
	root := t.TempDir()
	aHash := writeObject(t, root, []byte("content"))
	manifest := []byte(
		aHash.String() + " a.c\n" +
			aHash.String() + " .git/HEAD\n",
	)
	manifestHash := writeObject(t, root, manifest)
	writeTag(t, root, "v1", manifestHash)

	store := NewLocalStore(root)
	entries, err := store.TagTree(context.Background(), "v1")
	if err != nil {
		t.Fatalf("TagTree: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "a.c" {
		t.Fatalf("TagTree = %+v, want only a.c", entries)
	}
}

func TestLocalStoreLatest(t *testing.T) {
	root := t.TempDir()
	aHash := writeObject(t, root, []byte("x"))
	manifestHash := writeObject(t, root, []byte(aHash.String()+" a.c\n"))
	writeTag(t, root, "v1", manifestHash)
	writeTag(t, root, "v2", manifestHash)

	store := NewLocalStore(root)
	latest, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest != "v2" {
		t.Fatalf("Latest = %q, want v2", latest)
	}
}
