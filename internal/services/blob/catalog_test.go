package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asad/blobreader/internal/blobstore"
	"github.com/asad/blobreader/internal/blobstore/storetest"
)

func TestValidStoreName(t *testing.T) {
	for _, name := range []string{"catalog", "2024-backup", "a.b", "with space"} {
		assert.True(t, ValidStoreName(name), name)
	}
	for _, name := range []string{"", "..", "../etc", "a/b", `a\b`, "x..y", "nul\x00"} {
		assert.False(t, ValidStoreName(name), name)
	}
}

func TestFileCatalog_Resolve(t *testing.T) {
	dir := t.TempDir()
	storetest.Build(t, dir, "main", storetest.Blob{Name: "a", Data: []byte("1")})
	ctx := context.Background()

	catalog, err := NewFileCatalog(dir, "main", false)
	require.NoError(t, err)

	s, err := catalog.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "main", s.ID)
	assert.Equal(t, filepath.Join(dir, "main.blob"), s.Path)
	require.NoError(t, s.Close())

	_, err = catalog.Resolve(ctx, "other")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	_, err = catalog.Resolve(ctx, "../main")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	noDefault, err := NewFileCatalog(dir, "", false)
	require.NoError(t, err)
	_, err = noDefault.Resolve(ctx, "")
	assert.ErrorIs(t, err, blobstore.ErrBadRequest)
}

func TestFileCatalog_ListDefaultOnly(t *testing.T) {
	dir := t.TempDir()
	storetest.Build(t, dir, "main")
	storetest.Build(t, dir, "other")

	catalog, err := NewFileCatalog(dir, "main", false)
	require.NoError(t, err)
	stores, err := catalog.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "main", stores[0].ID)
	assert.Equal(t, int64(blobstore.HeaderLength), stores[0].Size)
	assert.Equal(t, "32 B", stores[0].SizeHuman)

	missing, err := NewFileCatalog(dir, "gone", false)
	require.NoError(t, err)
	stores, err = missing.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stores)
}

func TestFileCatalog_ListAutoIndex(t *testing.T) {
	dir := t.TempDir()
	storetest.Build(t, dir, "zulu")
	storetest.Build(t, dir, "alpha")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.blob"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.blob.bak"), nil, 0644))

	catalog, err := NewFileCatalog(dir, "", true)
	require.NoError(t, err)
	stores, err := catalog.List(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, s := range stores {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"alpha", "zulu"}, ids)
}

func TestNewFileCatalogRejectsBadInput(t *testing.T) {
	_, err := NewFileCatalog(filepath.Join(t.TempDir(), "missing"), "", false)
	assert.Error(t, err)

	_, err = NewFileCatalog(t.TempDir(), "../x", false)
	assert.Error(t, err)
}
