package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xrefdb/elixir/pkg/blobstore"
	"github.com/xrefdb/elixir/pkg/coordinator"
	"github.com/xrefdb/elixir/pkg/family"
	"github.com/xrefdb/elixir/pkg/vcsadapter"
	"github.com/xrefdb/elixir/pkg/xhash"
	"github.com/xrefdb/elixir/pkg/xrefcore"
)

type fakeAdapter struct {
	trees   map[string][]vcsadapter.FileEntry
	content map[xhash.Hash][]byte
}

func (f *fakeAdapter) addFile(tag, path string, content []byte) {
	h := xhash.Sum(content)
	f.content[h] = content
	f.trees[tag] = append(f.trees[tag], vcsadapter.FileEntry{Path: path, Hash: h})
}

func (f *fakeAdapter) ListTags(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeAdapter) TagTree(ctx context.Context, tag string) ([]vcsadapter.FileEntry, error) {
	return f.trees[tag], nil
}
func (f *fakeAdapter) BlobBytes(ctx context.Context, h xhash.Hash) ([]byte, error) {
	return f.content[h], nil
}
func (f *fakeAdapter) Latest(ctx context.Context) (string, error) { return "", nil }

func setupIndexed(t *testing.T) (*Interface, *fakeAdapter) {
	t.Helper()
	adapter := &fakeAdapter{trees: map[string][]vcsadapter.FileEntry{}, content: map[xhash.Hash][]byte{}}
	adapter.addFile("v0.1", "a.c", []byte("int x;\nint f(){return x;}\n"))

	db, err := xrefcore.OpenSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := blobstore.Open(context.Background(), db)
	require.NoError(t, err)

	c := coordinator.New(adapter, db, store, family.DefaultTable(), coordinator.DefaultWorkers)
	_, err = c.RunTag(context.Background(), "v0.1")
	require.NoError(t, err)

	return New(db, adapter, store), adapter
}

func TestFileReturnsBytesAndAnnotations(t *testing.T) {
	q, _ := setupIndexed(t)

	result, err := q.File(context.Background(), "v0.1", "a.c")
	require.NoError(t, err)
	assert.Equal(t, "int x;\nint f(){return x;}\n", string(result.Bytes))
	require.NotEmpty(t, result.Annotations)

	idents := map[string]bool{}
	for _, a := range result.Annotations {
		idents[a.Ident] = true
	}
	assert.True(t, idents["x"])
	assert.True(t, idents["f"])
}

func TestFileAnnotatesReferencesAsWellAsDefinitions(t *testing.T) {
	q, _ := setupIndexed(t)

	result, err := q.File(context.Background(), "v0.1", "a.c")
	require.NoError(t, err)

	var defLine, refLine int
	for _, a := range result.Annotations {
		if a.Ident != "x" {
			continue
		}
		if a.Kind != "" {
			defLine = a.Line
		} else {
			refLine = a.Line
		}
	}
	assert.Equal(t, 1, defLine, "x is defined on line 1")
	assert.Equal(t, 2, refLine, "x is referenced on line 2 inside f()")
}

func TestFileUnknownPath(t *testing.T) {
	q, _ := setupIndexed(t)
	_, err := q.File(context.Background(), "v0.1", "missing.c")
	assert.Error(t, err)
}

func TestIdentReturnsDefsFilteredByFamily(t *testing.T) {
	q, _ := setupIndexed(t)

	result, err := q.Ident(context.Background(), "v0.1", "x", family.C)
	require.NoError(t, err)
	require.Len(t, result.Defs, 1)
	assert.Equal(t, "a.c", result.Defs[0].Path)
	assert.Equal(t, "variable", result.Defs[0].Kind)

	empty, err := q.Ident(context.Background(), "v0.1", "x", family.Kconfig)
	require.NoError(t, err)
	assert.Empty(t, empty.Defs)
}

func TestSearchPrefixScan(t *testing.T) {
	q, _ := setupIndexed(t)

	idents, err := q.Search(context.Background(), "v0.1", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x", "f"}, idents)

	idents, err = q.Search(context.Background(), "v0.1", "f")
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, idents)
}

func TestQueryAgainstUnindexedTagFails(t *testing.T) {
	q, _ := setupIndexed(t)
	_, err := q.File(context.Background(), "v9.9", "a.c")
	assert.ErrorIs(t, err, ErrTagNotIndexed)
}
