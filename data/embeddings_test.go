package data

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadAndLookup(t *testing.T) {
	path := writeFile(t, "emb.json", `{
		"PEPTIDEA": [0.1, 0.2, 0.3],
		"PEPTIDEB": [1.0, -1.0, 0.5]
	}`)

	store, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Dim())
	assert.Equal(t, 2, store.Len())

	vec, err := store.Lookup("PEPTIDEB")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, -1.0, 0.5}, vec)

	_, err = store.Lookup("UNKNOWN")
	assert.ErrorContains(t, err, "UNKNOWN")
}

func TestStoreDimensionMismatch(t *testing.T) {
	path := writeFile(t, "emb.json", `{"A": [1, 2], "B": [1, 2, 3]}`)

	_, err := NewStore(path)
	assert.ErrorContains(t, err, "dimension")
}

func TestStoreInvalidInputs(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewStore(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeFile(t, "emb.json", "{broken")
		_, err := NewStore(path)
		assert.Error(t, err)
	})

	t.Run("empty table", func(t *testing.T) {
		path := writeFile(t, "emb.json", "{}")
		_, err := NewStore(path)
		assert.ErrorContains(t, err, "no vectors")
	})
}
