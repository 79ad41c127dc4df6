package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvStore_GetReadsPrefixedUppercasedName(t *testing.T) {
	t.Setenv("COMPANIONBOT_SECRET_TELEGRAM_TOKEN", "abc123")
	store := NewEnvStore("COMPANIONBOT_SECRET_")

	value, err := store.Get(context.Background(), "telegram_token")
	require.NoError(t, err)
	assert.Equal(t, "abc123", value)
}

func TestEnvStore_GetMissingVarErrors(t *testing.T) {
	store := NewEnvStore("COMPANIONBOT_SECRET_")
	_, err := store.Get(context.Background(), "does_not_exist")
	assert.Error(t, err)
}

func TestEnvStore_PutThenGet(t *testing.T) {
	store := NewEnvStore("COMPANIONBOT_SECRET_")
	require.NoError(t, store.Put(context.Background(), "some_key", "value"))

	value, err := store.Get(context.Background(), "some_key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)
}
