package session

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go/mock"
	"go.uber.org/mock/gomock"
)

func testKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "a", "1"))
	require.NoError(t, kv.Set(ctx, "b", "2"))
	require.NoError(t, kv.Set(ctx, "a", "3"))

	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	require.NoError(t, kv.Delete(ctx, "a", "never-set"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err = kv.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestMemoryKV(t *testing.T) {
	testKV(t, NewMemoryKV())
}

func TestFileKV(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	testKV(t, kv)

	info, err := os.Stat(kv.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileKV_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileKV(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, KeyFlag, "1"))

	second, err := NewFileKV(dir)
	require.NoError(t, err)
	v, err := second.Get(ctx, KeyFlag)
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestFileKV_CorruptFile(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(kv.Path(), []byte("{not json"), 0600))

	_, err = kv.Get(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode session file")
}

func TestValkeyKV_KeyPrefix(t *testing.T) {
	kv := &ValkeyKV{prefix: "quoteflow:"}
	assert.Equal(t, "quoteflow:access_token", kv.key(KeyAccessToken))
}

func newMockValkeyKV(t *testing.T) (*ValkeyKV, *mock.Client) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	return NewValkeyKVWithClient(client, "quoteflow:"), client
}

func TestValkeyKV_Get(t *testing.T) {
	ctx := context.Background()
	kv, client := newMockValkeyKV(t)

	client.EXPECT().Do(ctx, mock.Match("GET", "quoteflow:access_token")).
		Return(mock.Result(mock.ValkeyString("token-1")))
	v, err := kv.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "token-1", v)

	client.EXPECT().Do(ctx, mock.Match("GET", "quoteflow:refresh_token")).
		Return(mock.Result(mock.ValkeyNil()))
	_, err = kv.Get(ctx, KeyRefreshToken)
	assert.ErrorIs(t, err, ErrNotFound)

	client.EXPECT().Do(ctx, mock.Match("GET", "quoteflow:session")).
		Return(mock.ErrorResult(errors.New("connection reset")))
	_, err = kv.Get(ctx, KeySession)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "failed to get session")
}

func TestValkeyKV_Set(t *testing.T) {
	ctx := context.Background()
	kv, client := newMockValkeyKV(t)

	client.EXPECT().Do(ctx, mock.Match("SET", "quoteflow:flag", "1")).
		Return(mock.Result(mock.ValkeyString("OK")))
	require.NoError(t, kv.Set(ctx, KeyFlag, "1"))

	client.EXPECT().Do(ctx, mock.Match("SET", "quoteflow:flag", "2")).
		Return(mock.ErrorResult(errors.New("READONLY")))
	err := kv.Set(ctx, KeyFlag, "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set flag")
}

func TestValkeyKV_Delete(t *testing.T) {
	ctx := context.Background()
	kv, client := newMockValkeyKV(t)

	require.NoError(t, kv.Delete(ctx))

	client.EXPECT().Do(ctx, mock.Match("DEL", "quoteflow:session", "quoteflow:access_token")).
		Return(mock.Result(mock.ValkeyInt64(2)))
	require.NoError(t, kv.Delete(ctx, KeySession, KeyAccessToken))
}

func TestStore_OnValkey(t *testing.T) {
	ctx := context.Background()
	kv, client := newMockValkeyKV(t)
	store := NewStore(kv)

	client.EXPECT().Do(ctx, mock.Match("GET", "quoteflow:flag")).
		Return(mock.Result(mock.ValkeyNil()))
	flag, err := store.Flag(ctx)
	require.NoError(t, err)
	assert.Equal(t, FlagNew, flag)
}
