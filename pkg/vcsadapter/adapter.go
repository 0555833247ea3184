// Package vcsadapter implements the Repo Adapter: the only component
// that reads the external, content-addressed version-control store. It
// is stateless with respect to Elixir's own database and must be safe to
// call concurrently from the Update Coordinator's worker pool.
package vcsadapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/xrefdb/elixir/pkg/xhash"
)

// ErrBlobMissing is returned by BlobBytes when a blob hash is reachable
// from a tag tree but its content can no longer be retrieved from the
// store.
var ErrBlobMissing = errors.New("vcsadapter: blob missing")

// ErrRepoUnavailable is returned when the adapter cannot reach the
// underlying store at all. Fatal.
var ErrRepoUnavailable = errors.New("vcsadapter: repo unavailable")

// FileEntry is one file in a tag's tree: a path and the external hash of
// its content.
type FileEntry struct {
	Path string
	Hash xhash.Hash
}

// Adapter is the Repo Adapter contract. Implementations must tolerate
// concurrent calls from many workers; path filtering (e.g. skipping VCS
// metadata directories) happens here so upper layers only ever see
// indexable files.
type Adapter interface {
	// ListTags returns every tag name, newest-first by project policy.
	ListTags(ctx context.Context) ([]string, error)

	// TagTree returns every regular file in tag's tree, in a stable order.
	TagTree(ctx context.Context, tag string) ([]FileEntry, error)

	// BlobBytes returns the raw content addressed by h.
	BlobBytes(ctx context.Context, h xhash.Hash) ([]byte, error)

	// Latest returns the tag considered "current".
	Latest(ctx context.Context) (string, error)
}

// wrapMissing turns a not-found style error from a concrete adapter into
// ErrBlobMissing so the Update Coordinator can recognize it uniformly
// regardless of backend.
func wrapMissing(h xhash.Hash, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBlobMissing, h, err)
}
