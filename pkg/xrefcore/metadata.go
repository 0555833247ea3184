package xrefcore

import (
	"context"
	"fmt"
	"strconv"
)

// SchemaVersion is bumped whenever a wire encoding in encode.go changes
// incompatibly, so a build refuses to operate against a database written
// by an older version.
const SchemaVersion = 1

const (
	metaKeySchemaVersion = "schema_version"
	metaKeyNextBlob      = "next_b"
	metaKeyTagIndexedPfx = "tag_indexed:"
)

// ReadSchemaVersion returns the schema version recorded in the database,
// or 0 if the database has never been initialized.
func ReadSchemaVersion(ctx context.Context, db Database) (int, error) {
	raw, ok, err := db.Get(ctx, MapMeta, []byte(metaKeySchemaVersion))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return strconv.Atoi(string(raw))
}

// InitSchema stamps a fresh database with the current schema version. It
// is a no-op, other than the version check, if the database already
// carries a version stamp.
func InitSchema(ctx context.Context, db Database) error {
	version, err := ReadSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if version != 0 {
		if version != SchemaVersion {
			return fmt.Errorf("%w: database schema version %d, build expects %d", ErrDatabaseCorrupt, version, SchemaVersion)
		}
		return nil
	}
	return db.WithBatch(ctx, func(b *Batch) error {
		return b.Put(ctx, MapMeta, []byte(metaKeySchemaVersion), []byte(strconv.Itoa(SchemaVersion)))
	})
}

// ReadNextBlobNum returns the next blob number to allocate, or 0 if none
// has ever been allocated. Persisted so a restart resumes numbering
// without collision.
func ReadNextBlobNum(ctx context.Context, db Database) (uint32, error) {
	raw, ok, err := db.Get(ctx, MapMeta, []byte(metaKeyNextBlob))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed next_b record: %w", ErrDatabaseCorrupt, err)
	}
	return uint32(n), nil
}

// WriteNextBlobNum persists next as the next blob number to allocate. It
// must be called within the same batch as the allocation it backs, so a
// crash between allocating B and writing B+1 is impossible to observe.
func WriteNextBlobNum(ctx context.Context, b *Batch, next uint32) error {
	return b.Put(ctx, MapMeta, []byte(metaKeyNextBlob), []byte(strconv.FormatUint(uint64(next), 10)))
}

// tagIndexedKey builds the MapMeta key carrying a tag's indexed flag: the
// coordinator sets it only after every downstream map for that tag has
// committed.
func tagIndexedKey(tag string) []byte {
	return []byte(metaKeyTagIndexedPfx + tag)
}

// IsTagIndexed reports whether tag has been fully indexed.
func IsTagIndexed(ctx context.Context, db Database, tag string) (bool, error) {
	raw, ok, err := db.Get(ctx, MapMeta, tagIndexedKey(tag))
	if err != nil {
		return false, err
	}
	return ok && string(raw) == "1", nil
}

// MarkTagIndexed records tag as fully indexed. Must be the last write in
// the batch that commits that tag's data.
func MarkTagIndexed(ctx context.Context, b *Batch, tag string) error {
	return b.Put(ctx, MapMeta, tagIndexedKey(tag), []byte("1"))
}
