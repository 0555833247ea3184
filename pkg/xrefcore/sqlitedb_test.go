package xrefcore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := OpenSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteDBPutGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithBatch(ctx, func(b *Batch) error {
		return b.Put(ctx, MapDefs, []byte("main"), []byte("1f1C,"))
	})
	require.NoError(t, err)

	value, ok, err := db.Get(ctx, MapDefs, []byte("main"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1f1C,", string(value))
}

func TestSQLiteDBGetMissing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, ok, err := db.Get(ctx, MapDefs, []byte("nope"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteDBBatchRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := db.WithBatch(ctx, func(b *Batch) error {
		if putErr := b.Put(ctx, MapDefs, []byte("k"), []byte("v")); putErr != nil {
			return putErr
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, ok, err := db.Get(ctx, MapDefs, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteDBAppend(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithBatch(ctx, func(b *Batch) error {
		if err := b.Append(ctx, MapRefs, []byte("x"), []byte("1:1:C\n")); err != nil {
			return err
		}
		return b.Append(ctx, MapRefs, []byte("x"), []byte("2:2:C\n"))
	})
	require.NoError(t, err)

	value, ok, err := db.Get(ctx, MapRefs, []byte("x"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1:1:C\n2:2:C\n", string(value))
}

func TestSQLiteDBAppendSerializesConcurrentWriters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.WithBatch(ctx, func(b *Batch) error {
				return b.Append(ctx, MapRefs, []byte("shared"), []byte("x"))
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	value, ok, err := db.Get(ctx, MapRefs, []byte("shared"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, value, 20)
}

func TestSQLiteDBIterPrefix(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithBatch(ctx, func(b *Batch) error {
		for _, k := range []string{"a/1", "a/2", "b/1"} {
			if err := b.Put(ctx, MapTagTree, []byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var keys []string
	err = db.IterPrefix(ctx, MapTagTree, []byte("a/"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1", "a/2"}, keys)
}

func TestSQLiteDBIterPrefixStopsEarly(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithBatch(ctx, func(b *Batch) error {
		for _, k := range []string{"a/1", "a/2", "a/3"} {
			if err := b.Put(ctx, MapTagTree, []byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	count := 0
	err = db.IterPrefix(ctx, MapTagTree, []byte("a/"), func(key, value []byte) bool {
		count++
		return count < 1
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Nil(t, prefixUpperBound(nil))
	assert.Equal(t, []byte{0x01, 0x01}, prefixUpperBound([]byte{0x01, 0x00}))
	assert.Nil(t, prefixUpperBound([]byte{0xff, 0xff}))
}
