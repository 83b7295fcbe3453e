package vindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// byteSumEmbedder maps an image to a 4-dim vector whose first component is
// the byte sum, so distances between distinct fixtures are predictable.
type byteSumEmbedder struct{ fail bool }

func (e *byteSumEmbedder) Dimension() int { return 4 }

func (e *byteSumEmbedder) Embed(_ context.Context, image []byte) ([]float32, error) {
	if e.fail {
		return nil, assert.AnError
	}
	var sum float32
	for _, b := range image {
		sum += float32(b)
	}
	return []float32{sum, 0, 0, 0}, nil
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	coversDir := filepath.Join(root, "covers")
	require.NoError(t, os.MkdirAll(coversDir, 0o755))
	return NewStore(filepath.Join(root, "data"), coversDir, &byteSumEmbedder{}), coversDir
}

func writeCover(t *testing.T, coversDir, isbn10 string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(coversDir, isbn10+".jpg"), content, 0o644))
}

func TestAppendKeepsArtifactsAligned(t *testing.T) {
	store, coversDir := newTestStore(t)
	ctx := context.Background()

	writeCover(t, coversDir, "1111111111", []byte{1})
	writeCover(t, coversDir, "2222222222", []byte{10})
	writeCover(t, coversDir, "3333333333", []byte{100})

	require.NoError(t, store.Append(ctx, "1111111111"))
	require.NoError(t, store.Append(ctx, "2222222222"))
	require.NoError(t, store.Append(ctx, "3333333333"))

	names, err := store.Manifest()
	require.NoError(t, err)
	assert.Equal(t, []string{"1111111111.jpg", "2222222222.jpg", "3333333333.jpg"}, names)

	count, err := store.IndexCount()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Query near the second cover's vector: its position and name must line up.
	hits, err := store.Search(ctx, []float32{10, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Position)
	assert.Equal(t, "2222222222.jpg", hits[0].Name)
}

func TestAppendMissingCoverLeavesStoreUntouched(t *testing.T) {
	store, coversDir := newTestStore(t)
	ctx := context.Background()

	writeCover(t, coversDir, "1111111111", []byte{1})
	require.NoError(t, store.Append(ctx, "1111111111"))

	err := store.Append(ctx, "9999999999")
	require.ErrorIs(t, err, ErrCoverMissing)

	names, err := store.Manifest()
	require.NoError(t, err)
	assert.Equal(t, []string{"1111111111.jpg"}, names)

	count, err := store.IndexCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAppendEmbedFailureLeavesStoreUntouched(t *testing.T) {
	root := t.TempDir()
	coversDir := filepath.Join(root, "covers")
	require.NoError(t, os.MkdirAll(coversDir, 0o755))
	embedder := &byteSumEmbedder{}
	store := NewStore(filepath.Join(root, "data"), coversDir, embedder)
	ctx := context.Background()

	writeCover(t, coversDir, "1111111111", []byte{1})
	require.NoError(t, store.Append(ctx, "1111111111"))

	writeCover(t, coversDir, "2222222222", []byte{2})
	embedder.fail = true
	require.Error(t, store.Append(ctx, "2222222222"))
	embedder.fail = false

	names, err := store.Manifest()
	require.NoError(t, err)
	assert.Equal(t, []string{"1111111111.jpg"}, names)
}

func TestSearchEmptyStore(t *testing.T) {
	store, _ := newTestStore(t)
	hits, err := store.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchSkipsEntriesBeyondManifest(t *testing.T) {
	store, coversDir := newTestStore(t)
	ctx := context.Background()

	writeCover(t, coversDir, "1111111111", []byte{1})
	writeCover(t, coversDir, "2222222222", []byte{200})
	require.NoError(t, store.Append(ctx, "1111111111"))
	require.NoError(t, store.Append(ctx, "2222222222"))

	// Truncate the manifest so the index holds one more vector than the
	// manifest names. The orphaned position must not surface as a hit.
	require.NoError(t, store.WriteManifest([]string{"1111111111.jpg"}))

	hits, err := store.Search(ctx, []float32{200, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1111111111.jpg", hits[0].Name)
}

func TestCorruptManifestIsUnavailable(t *testing.T) {
	store, coversDir := newTestStore(t)
	ctx := context.Background()

	writeCover(t, coversDir, "1111111111", []byte{1})
	require.NoError(t, store.Append(ctx, "1111111111"))

	require.NoError(t, os.WriteFile(filepath.Join(store.dataDir, namesFile), []byte("{not json"), 0o644))

	_, err := store.Search(ctx, []float32{1, 0, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestRebuildSkipsUnreadableCovers(t *testing.T) {
	store, coversDir := newTestStore(t)
	ctx := context.Background()

	writeCover(t, coversDir, "1111111111", []byte{1})
	writeCover(t, coversDir, "3333333333", []byte{3})

	n, err := store.Rebuild(ctx, []string{"1111111111", "2222222222", "3333333333"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, err := store.Manifest()
	require.NoError(t, err)
	assert.Equal(t, []string{"1111111111.jpg", "3333333333.jpg"}, names)
}
