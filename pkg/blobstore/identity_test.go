package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xrefdb/elixir/pkg/xhash"
	"github.com/xrefdb/elixir/pkg/xrefcore"
)

func openStore(t *testing.T) (*Store, xrefcore.Database) {
	t.Helper()
	db, err := xrefcore.OpenSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := Open(context.Background(), db)
	require.NoError(t, err)
	return s, db
}

func TestInternAllocatesOncePerHash(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	h := xhash.Sum([]byte("int x;"))

	b1, isNew1, err := store.Intern(ctx, h, "a.c")
	require.NoError(t, err)
	assert.True(t, isNew1)

	b2, isNew2, err := store.Intern(ctx, h, "b.c")
	require.NoError(t, err)
	assert.False(t, isNew2)
	assert.Equal(t, b1, b2)

	paths, err := store.Paths(ctx, b1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.c", "b.c"}, paths)
}

func TestInternAssignsDenseIncreasingNumbers(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	seen := map[uint32]bool{}
	for i := 0; i < 5; i++ {
		h := xhash.Sum([]byte{byte(i)})
		b, isNew, err := store.Intern(ctx, h, "")
		require.NoError(t, err)
		assert.True(t, isNew)
		assert.False(t, seen[b], "blob number %d reused", b)
		seen[b] = true
	}
	assert.Len(t, seen, 5)
}

func TestResolveRoundTrip(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	h := xhash.Sum([]byte("payload"))

	b, _, err := store.Intern(ctx, h, "f.c")
	require.NoError(t, err)

	resolved, ok, err := store.Resolve(ctx, b)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h, resolved)
}

func TestResolveUnknownBlobNumber(t *testing.T) {
	store, _ := openStore(t)
	_, ok, err := store.Resolve(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenReconcilesNextBAfterRestart(t *testing.T) {
	store, db := openStore(t)
	ctx := context.Background()

	h := xhash.Sum([]byte("x"))
	b, _, err := store.Intern(ctx, h, "")
	require.NoError(t, err)

	// Simulate a restart with a stale (zeroed) next_B record: reopening
	// must reconcile against the highest allocated blob number, not trust
	// a stale persisted counter.
	err = db.WithBatch(ctx, func(batch *xrefcore.Batch) error {
		return xrefcore.WriteNextBlobNum(ctx, batch, 0)
	})
	require.NoError(t, err)

	reopened, err := Open(ctx, db)
	require.NoError(t, err)

	h2 := xhash.Sum([]byte("y"))
	b2, isNew, err := reopened.Intern(ctx, h2, "")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Greater(t, b2, b)
}
