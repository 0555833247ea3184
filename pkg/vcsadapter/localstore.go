package vcsadapter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xrefdb/elixir/pkg/xhash"
)

// LocalStore reads a content-addressed object store laid out on local
// disk: a two-character fan-out directory of blob objects
// (objects/ab/cdef...) plus a refs/tags/<name> file per tag pointing at a
// tree manifest, the read-only subset the Repo Adapter needs. No write
// path.
//
// Tree manifests are flat, newline-separated "<hash> <path>" listings; a
// real deployment's adapter would instead walk the version-control
// tool's own tree objects directly, shelling out or linking a native
// library. LocalStore is the fixture-friendly implementation used by
// tests and by small non-git stores.
type LocalStore struct {
	root string
}

// NewLocalStore opens a LocalStore rooted at dir. dir must contain an
// "objects/" directory and a "refs/tags/" directory.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

func (s *LocalStore) objectPath(h xhash.Hash) string {
	hex := h.String()
	return filepath.Join(s.root, "objects", hex[:2], hex[2:])
}

// BlobBytes implements Adapter.
func (s *LocalStore) BlobBytes(_ context.Context, h xhash.Hash) ([]byte, error) {
	data, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wrapMissing(h, err)
		}
		return nil, fmt.Errorf("vcsadapter: read blob %s: %w", h, err)
	}
	if got := xhash.Sum(data); got != h {
		return nil, fmt.Errorf("vcsadapter: blob %s failed integrity check (got %s)", h, got)
	}
	return data, nil
}

// ListTags implements Adapter. Tags are returned in reverse-lexicographic
// order as a stand-in project policy; the project descriptor is not
// consulted.
func (s *LocalStore) ListTags(_ context.Context) ([]string, error) {
	dir := filepath.Join(s.root, "refs", "tags")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list tags: %w", ErrRepoUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Latest implements Adapter: the first entry of ListTags' order.
func (s *LocalStore) Latest(ctx context.Context) (string, error) {
	tags, err := s.ListTags(ctx)
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", fmt.Errorf("vcsadapter: no tags")
	}
	return tags[0], nil
}

// TagTree implements Adapter. It reads refs/tags/<tag>, the manifest hash
// it names, and returns every (path, hash) entry, skipping VCS metadata
// directories (.git, .got, .hg, .svn) the way the real adapter's path
// filter would.
func (s *LocalStore) TagTree(ctx context.Context, tag string) ([]FileEntry, error) {
	manifestHash, err := s.resolveTag(tag)
	if err != nil {
		return nil, err
	}
	data, err := s.BlobBytes(ctx, manifestHash)
	if err != nil {
		return nil, fmt.Errorf("vcsadapter: read tree manifest for tag %q: %w", tag, err)
	}
	return parseManifest(data)
}

func (s *LocalStore) resolveTag(tag string) (xhash.Hash, error) {
	refPath := filepath.Join(s.root, "refs", "tags", tag)
	data, err := os.ReadFile(refPath)
	if err != nil {
		return xhash.Hash{}, fmt.Errorf("%w: resolve tag %q: %w", ErrRepoUnavailable, tag, err)
	}
	return xhash.FromHex(strings.TrimSpace(string(data)))
}

func parseManifest(data []byte) ([]FileEntry, error) {
	var entries []FileEntry
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		parts := bytes.SplitN(line, []byte(" "), 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("vcsadapter: malformed manifest line %q", line)
		}
		h, err := xhash.FromHex(string(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("vcsadapter: malformed manifest hash: %w", err)
		}
		p := path.Clean(string(parts[1]))
		if isFiltered(p) {
			continue
		}
		entries = append(entries, FileEntry{Path: p, Hash: h})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// isFiltered reports whether path should never reach the indexing
// engine: VCS metadata directories are skipped here so upper layers see
// only indexable files.
func isFiltered(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case ".git", ".got", ".hg", ".svn":
			return true
		}
	}
	return false
}
