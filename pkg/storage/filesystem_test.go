package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveUniqueNeverOverwrites(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	first, err := store.SaveUnique("feedbacks.pdf", []byte("one"))
	require.NoError(t, err)
	second, err := store.SaveUnique("feedbacks.pdf", []byte("two"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(store.Dir(), "feedbacks.pdf"), first)
	assert.Equal(t, filepath.Join(store.Dir(), "feedbacks (1).pdf"), second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestSaveKeepsNamesInsideBaseDir(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	path, err := store.SaveUnique("../../etc/report.csv", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "report.csv"), path)

	_, err = store.SaveUnique("", []byte("x"))
	require.Error(t, err)
}
