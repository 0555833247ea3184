// Package xrefcore implements the Cross-Reference Database: a persistent
// ordered key/value store holding the logical maps that make up one
// project's index, with append/merge discipline and crash-safe commits.
package xrefcore

import "context"

// MapName identifies one of the database's logical maps. Storage keys
// within a map are caller-defined byte strings; the database itself is
// opaque to their meaning.
type MapName string

// The seven logical maps. Names are semantic, not storage keys.
const (
	MapHashToNum MapName = "blob_hash_to_num"
	MapNumToHash MapName = "blob_num_to_hash"
	MapNumToPaths MapName = "blob_num_to_paths"
	MapTagTree   MapName = "tag_tree"
	MapDefs      MapName = "defs"
	MapRefs      MapName = "refs"
	MapDocs      MapName = "docs"
	// MapMeta holds small scalars: schema version, next_B, per-tag
	// indexed markers.
	MapMeta MapName = "meta"
)

// AllMaps lists every logical map, used by schema initialization.
var AllMaps = []MapName{
	MapHashToNum, MapNumToHash, MapNumToPaths, MapTagTree, MapDefs, MapRefs, MapDocs, MapMeta,
}

// Database is the persistent ordered key/value store contract used by
// every other core component. A Database is safe for concurrent
// Get/IterPrefix; writes go through Batch so a crash mid-tag leaves no
// partially-applied batch visible.
type Database interface {
	// Get looks up key in the named map. ok is false if key is absent.
	Get(ctx context.Context, m MapName, key []byte) (value []byte, ok bool, err error)

	// IterPrefix calls fn for every (key, value) pair in m whose key has
	// the given prefix, in ascending byte order. Iteration stops early if
	// fn returns false.
	IterPrefix(ctx context.Context, m MapName, prefix []byte, fn func(key, value []byte) bool) error

	// WithBatch runs fn against a fresh Batch. If fn returns nil, the
	// batch is committed atomically; otherwise it is rolled back and the
	// error is returned (wrapped in ErrDatabaseBusy if the underlying
	// store reports transient contention).
	WithBatch(ctx context.Context, fn func(b *Batch) error) error

	// Close releases underlying resources.
	Close() error
}

// Batch brackets one durable unit of work: a commit/abort pair bracketing
// a set of writes. Put overwrites; Append performs a guarded
// read-modify-write so concurrent appends to the same key never
// interleave mid-write.
type Batch struct {
	impl batchImpl
}

type batchImpl interface {
	put(ctx context.Context, m MapName, key, value []byte) error
	appendValue(ctx context.Context, m MapName, key, suffix []byte) error
	get(ctx context.Context, m MapName, key []byte) ([]byte, bool, error)
}

// Put overwrites key's value in map m.
func (b *Batch) Put(ctx context.Context, m MapName, key, value []byte) error {
	return b.impl.put(ctx, m, key, value)
}

// Append performs a guarded read-modify-write: the stored value becomes
// old || suffix (old treated as empty if key is absent).
func (b *Batch) Append(ctx context.Context, m MapName, key, suffix []byte) error {
	return b.impl.appendValue(ctx, m, key, suffix)
}

// Get reads key's current value within the batch's transaction, observing
// any writes already made earlier in the same batch.
func (b *Batch) Get(ctx context.Context, m MapName, key []byte) ([]byte, bool, error) {
	return b.impl.get(ctx, m, key)
}
