package ann

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndSearch(t *testing.T) {
	idx := New(4)

	vectors := [][]float32{
		{0, 0, 0, 1},
		{0, 0, 1, 0},
		{0, 1, 0, 0},
		{1, 0, 0, 0},
	}
	for _, v := range vectors {
		require.NoError(t, idx.Add(v))
	}
	assert.Equal(t, 4, idx.Len())

	hits, err := idx.Search([]float32{0, 0, 0.9, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, 1, hits[0].Position)
	assert.Less(t, hits[0].Distance, hits[1].Distance)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := New(4)
	hits, err := idx.Search([]float32{0, 0, 0, 1}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDimensionMismatch(t *testing.T) {
	idx := New(4)
	assert.Error(t, idx.Add([]float32{1, 2}))
	_, err := idx.Search([]float32{1, 2}, 1)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.gob")

	idx := New(3)
	require.NoError(t, idx.Add([]float32{1, 0, 0}))
	require.NoError(t, idx.Add([]float32{0, 1, 0}))
	require.NoError(t, idx.Add([]float32{0, 0, 1}))
	require.NoError(t, idx.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
	assert.Equal(t, 3, loaded.Dimension())

	hits, err := loaded.Search([]float32{0, 0.9, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Position)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.gob"))
	assert.Error(t, err)
}
