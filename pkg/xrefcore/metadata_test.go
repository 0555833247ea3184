package xrefcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSchemaStampsVersion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, InitSchema(ctx, db))

	version, err := ReadSchemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	// Idempotent: re-running against a stamped database is a no-op.
	require.NoError(t, InitSchema(ctx, db))
}

func TestInitSchemaRejectsVersionMismatch(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithBatch(ctx, func(b *Batch) error {
		return b.Put(ctx, MapMeta, []byte("schema_version"), []byte("999"))
	})
	require.NoError(t, err)

	err = InitSchema(ctx, db)
	assert.ErrorIs(t, err, ErrDatabaseCorrupt)
}

func TestNextBlobNumRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	n, err := ReadNextBlobNum(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), n)

	err = db.WithBatch(ctx, func(b *Batch) error {
		return WriteNextBlobNum(ctx, b, 42)
	})
	require.NoError(t, err)

	n, err = ReadNextBlobNum(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), n)
}

func TestTagIndexedFlag(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	indexed, err := IsTagIndexed(ctx, db, "v1.0")
	require.NoError(t, err)
	assert.False(t, indexed)

	err = db.WithBatch(ctx, func(b *Batch) error {
		return MarkTagIndexed(ctx, b, "v1.0")
	})
	require.NoError(t, err)

	indexed, err = IsTagIndexed(ctx, db, "v1.0")
	require.NoError(t, err)
	assert.True(t, indexed)
}
