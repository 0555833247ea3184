// Package query implements the Query Interface: the read-only surface
// the HTML and REST front-ends consume.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/xrefdb/elixir/pkg/blobstore"
	"github.com/xrefdb/elixir/pkg/family"
	"github.com/xrefdb/elixir/pkg/vcsadapter"
	"github.com/xrefdb/elixir/pkg/xrefcore"
)

// ErrTagNotIndexed is returned by every query operation for a tag whose
// indexed flag is not set: an in-progress tag is invisible to queries.
var ErrTagNotIndexed = fmt.Errorf("query: tag not indexed")

// Interface answers read-only queries against a fully-indexed tag.
type Interface struct {
	DB      xrefcore.Database
	Adapter vcsadapter.Adapter
	Blobs   *blobstore.Store
}

// New constructs a query Interface.
func New(db xrefcore.Database, adapter vcsadapter.Adapter, blobs *blobstore.Store) *Interface {
	return &Interface{DB: db, Adapter: adapter, Blobs: blobs}
}

// Annotation is one (line, identifier, kind) span overlaying a file's
// source, as returned by File.
type Annotation struct {
	Line  int
	Ident string
	Kind  string
}

// FileResult is the answer to a File query.
type FileResult struct {
	Blob        uint32
	Bytes       []byte
	Annotations []Annotation
}

// File resolves path within tag's tree to its blob, fetches the blob's
// bytes, and overlays it with every definition and reference recorded
// for that blob, the per-line hyperlink targets a browsing layer would
// render. Reference annotations carry an empty Kind; only definitions
// have one.
func (q *Interface) File(ctx context.Context, tag, path string) (FileResult, error) {
	tree, err := q.loadTree(ctx, tag)
	if err != nil {
		return FileResult{}, err
	}

	var blob uint32
	found := false
	for _, e := range tree {
		if e.Path == path {
			blob = e.Blob
			found = true
			break
		}
	}
	if !found {
		return FileResult{}, fmt.Errorf("query: %s not found in tag %s", path, tag)
	}

	hash, ok, err := q.Blobs.Resolve(ctx, blob)
	if err != nil {
		return FileResult{}, err
	}
	if !ok {
		return FileResult{}, fmt.Errorf("%w: blob %d has no recorded hash", xrefcore.ErrDatabaseCorrupt, blob)
	}
	bytes, err := q.Adapter.BlobBytes(ctx, hash)
	if err != nil {
		return FileResult{}, err
	}

	var annotations []Annotation
	err = q.DB.IterPrefix(ctx, xrefcore.MapDefs, nil, func(key, value []byte) bool {
		defs, decErr := xrefcore.DecodeDefList(value)
		if decErr != nil {
			return true
		}
		for _, d := range defs {
			if d.Blob == blob {
				annotations = append(annotations, Annotation{Line: d.Line, Ident: string(key), Kind: d.Kind})
			}
		}
		return true
	})
	if err != nil {
		return FileResult{}, err
	}

	err = q.DB.IterPrefix(ctx, xrefcore.MapRefs, nil, func(key, value []byte) bool {
		refs, decErr := xrefcore.DecodeRefList(value)
		if decErr != nil {
			return true
		}
		for _, r := range refs {
			if r.Blob != blob {
				continue
			}
			for _, line := range r.Lines {
				annotations = append(annotations, Annotation{Line: line, Ident: string(key)})
			}
		}
		return true
	})
	if err != nil {
		return FileResult{}, err
	}
	sort.Slice(annotations, func(i, j int) bool { return annotations[i].Line < annotations[j].Line })

	return FileResult{Blob: blob, Bytes: bytes, Annotations: annotations}, nil
}

// DefHit is one definition site returned by Ident.
type DefHit struct {
	Path string
	Line int
	Kind string
}

// RefHit is one blob's reference lines returned by Ident.
type RefHit struct {
	Path  string
	Lines []int
}

// IdentResult is the answer to an Ident query.
type IdentResult struct {
	Defs []DefHit
	Refs []RefHit
}

// Ident returns every definition and reference of ident tagged with
// family, filtered to blobs actually present in tag's tree.
func (q *Interface) Ident(ctx context.Context, tag, ident string, fam family.Family) (IdentResult, error) {
	tree, err := q.loadTree(ctx, tag)
	if err != nil {
		return IdentResult{}, err
	}
	pathByBlob := map[uint32]string{}
	for _, e := range tree {
		pathByBlob[e.Blob] = e.Path
	}

	var result IdentResult

	defRaw, ok, err := q.DB.Get(ctx, xrefcore.MapDefs, []byte(ident))
	if err != nil {
		return IdentResult{}, err
	}
	if ok {
		defs, err := xrefcore.DecodeDefList(defRaw)
		if err != nil {
			return IdentResult{}, err
		}
		for _, d := range defs {
			if d.Family != fam {
				continue
			}
			path, present := pathByBlob[d.Blob]
			if !present {
				continue
			}
			result.Defs = append(result.Defs, DefHit{Path: path, Line: d.Line, Kind: d.Kind})
		}
	}

	refRaw, ok, err := q.DB.Get(ctx, xrefcore.MapRefs, []byte(ident))
	if err != nil {
		return IdentResult{}, err
	}
	if ok {
		refs, err := xrefcore.DecodeRefList(refRaw)
		if err != nil {
			return IdentResult{}, err
		}
		for _, r := range refs {
			if r.Family != fam {
				continue
			}
			path, present := pathByBlob[r.Blob]
			if !present {
				continue
			}
			result.Refs = append(result.Refs, RefHit{Path: path, Lines: r.Lines})
		}
	}

	sort.Slice(result.Defs, func(i, j int) bool { return result.Defs[i].Path < result.Defs[j].Path })
	sort.Slice(result.Refs, func(i, j int) bool { return result.Refs[i].Path < result.Refs[j].Path })
	return result, nil
}

// Search returns every identifier in the defs map with the given prefix.
func (q *Interface) Search(ctx context.Context, tag, prefix string) ([]string, error) {
	if _, err := q.loadTree(ctx, tag); err != nil {
		return nil, err
	}

	var idents []string
	err := q.DB.IterPrefix(ctx, xrefcore.MapDefs, []byte(prefix), func(key, _ []byte) bool {
		idents = append(idents, string(key))
		return true
	})
	if err != nil {
		return nil, err
	}
	return idents, nil
}

func (q *Interface) loadTree(ctx context.Context, tag string) ([]xrefcore.TreeEntryRecord, error) {
	indexed, err := xrefcore.IsTagIndexed(ctx, q.DB, tag)
	if err != nil {
		return nil, err
	}
	if !indexed {
		return nil, fmt.Errorf("%w: %s", ErrTagNotIndexed, tag)
	}

	raw, ok, err := q.DB.Get(ctx, xrefcore.MapTagTree, []byte(tag))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTagNotIndexed, tag)
	}
	return xrefcore.DecodeTagTree(raw)
}
