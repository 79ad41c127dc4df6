package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutThenGet(t *testing.T) {
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Put(context.Background(), "telegram_token", "abc123"))

	value, err := store.Get(context.Background(), "telegram_token")
	require.NoError(t, err)
	assert.Equal(t, "abc123", value)
}

func TestFileStore_GetMissingKeyErrors(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestFileStore_DeleteRemovesSecret(t *testing.T) {
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Put(context.Background(), "k", "v"))
	require.NoError(t, store.Delete(context.Background(), "k"))

	_, err := store.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestFileStore_DeleteMissingKeyIsNotAnError(t *testing.T) {
	store := NewFileStore(t.TempDir())
	assert.NoError(t, store.Delete(context.Background(), "never-existed"))
}

func TestFileStore_RejectsPathEscape(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.Get(context.Background(), "../../etc/passwd")
	assert.Error(t, err)

	err = store.Put(context.Background(), "../escape", "v")
	assert.Error(t, err)
}

func TestFileStore_RejectsEmptyKey(t *testing.T) {
	store := NewFileStore(t.TempDir())
	_, err := store.Get(context.Background(), "  ")
	assert.Error(t, err)
}
