package token

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap key derivation for tests
var testKDF = WithArgon2Params(1, 64, 1)

func newTestFileStore(t *testing.T, passphrase string) *FileStore {
	path := filepath.Join(t.TempDir(), "nested", "tokens.bin")
	store, err := NewFileStore(path, passphrase, testKDF)
	require.NoError(t, err)
	return store
}

func TestFileStoreContract(t *testing.T) {
	runStoreContract(t, newTestFileStore(t, "correct horse"))
}

func TestFileStore_EncryptedAtRest(t *testing.T) {
	store := newTestFileStore(t, "correct horse")
	ctx := context.Background()
	require.NoError(t, store.SetTokens(ctx, Pair{Access: "access-secret", Refresh: "refresh-secret"}))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "access-secret"))
	assert.False(t, strings.Contains(string(raw), "refresh-secret"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	first := newTestFileStore(t, "pass")
	ctx := context.Background()
	require.NoError(t, first.SetTokens(ctx, Pair{Access: "a", Refresh: "r"}))

	second, err := NewFileStore(first.Path(), "pass", testKDF)
	require.NoError(t, err)
	got, ok := second.Tokens(ctx)
	require.True(t, ok)
	assert.Equal(t, Pair{Access: "a", Refresh: "r"}, got)
}

func TestFileStore_WrongPassphraseReadsAsAbsent(t *testing.T) {
	first := newTestFileStore(t, "pass")
	ctx := context.Background()
	require.NoError(t, first.SetTokens(ctx, Pair{Access: "a", Refresh: "r"}))

	other, err := NewFileStore(first.Path(), "not-the-pass", testKDF)
	require.NoError(t, err)
	_, ok := other.Tokens(ctx)
	assert.False(t, ok)
}

func TestFileStore_CorruptFileReadsAsAbsent(t *testing.T) {
	store := newTestFileStore(t, "pass")
	ctx := context.Background()

	require.NoError(t, os.WriteFile(store.Path(), []byte("garbage"), 0o600))
	assert.Equal(t, "", store.AccessToken(ctx))

	require.NoError(t, store.SetTokens(ctx, Pair{Access: "a", Refresh: "r"}))
	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(store.Path(), raw, 0o600))
	assert.Equal(t, "", store.AccessToken(ctx))
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	store := newTestFileStore(t, "pass")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SetTokens(ctx, Pair{Access: "a", Refresh: "r"}))
	}

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	_, err := NewFileStore("", "pass")
	assert.Error(t, err)
}
