package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	getValue string
	getErr   error
	putErr   error
	deleteErr error
	gets      []string
	puts      []string
	deletes   []string
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	f.gets = append(f.gets, key)
	return f.getValue, f.getErr
}

func (f *fakeStore) Put(ctx context.Context, key, value string) error {
	f.puts = append(f.puts, key)
	return f.putErr
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	return f.deleteErr
}

func TestChainStore_GetUsesPrimaryWhenItSucceeds(t *testing.T) {
	primary := &fakeStore{getValue: "from-primary"}
	fallback := &fakeStore{}
	store, err := NewChainStore(primary, fallback)
	require.NoError(t, err)

	value, err := store.Get(context.Background(), "api_key")
	require.NoError(t, err)
	assert.Equal(t, "from-primary", value)
	assert.Empty(t, fallback.gets)
}

func TestChainStore_GetFallsBackWhenPrimaryFails(t *testing.T) {
	primary := &fakeStore{getErr: errors.New("primary unavailable")}
	fallback := &fakeStore{getValue: "from-fallback"}
	store, err := NewChainStore(primary, fallback)
	require.NoError(t, err)

	value, err := store.Get(context.Background(), "api_key")
	require.NoError(t, err)
	assert.Equal(t, "from-fallback", value)
}

func TestChainStore_GetReturnsCombinedErrorWhenBothFail(t *testing.T) {
	primary := &fakeStore{getErr: errors.New("primary failed")}
	fallback := &fakeStore{getErr: errors.New("fallback failed")}
	store, err := NewChainStore(primary, fallback)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "api_key")
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary lookup failed")
	assert.ErrorContains(t, err, "fallback lookup failed")
}

func TestChainStore_GetDoesNotFallBackOnCanceledContext(t *testing.T) {
	primary := &fakeStore{getErr: context.Canceled}
	fallback := &fakeStore{getValue: "should-not-be-used"}
	store, err := NewChainStore(primary, fallback)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "api_key")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fallback.gets)
}

func TestChainStore_PutFallsBackWhenPrimaryFails(t *testing.T) {
	primary := &fakeStore{putErr: errors.New("primary failed")}
	fallback := &fakeStore{}
	store, err := NewChainStore(primary, fallback)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "api_key", "value"))
	assert.Equal(t, []string{"api_key"}, fallback.puts)
}

func TestChainStore_DeleteFallsBackWhenPrimaryFails(t *testing.T) {
	primary := &fakeStore{deleteErr: errors.New("primary failed")}
	fallback := &fakeStore{}
	store, err := NewChainStore(primary, fallback)
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "api_key"))
	assert.Equal(t, []string{"api_key"}, fallback.deletes)
}

func TestNewChainStore_RejectsNilBackends(t *testing.T) {
	_, err := NewChainStore(nil, &fakeStore{})
	assert.ErrorIs(t, err, errNilPrimary)

	_, err = NewChainStore(&fakeStore{}, nil)
	assert.ErrorIs(t, err, errNilFallback)
}
