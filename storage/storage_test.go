package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/tee-secure-signer/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// exerciseStore runs the KVStore contract against a backend.
func exerciseStore(t *testing.T, store interfaces.KVStore) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	require.NoError(t, store.Put(ctx, DeviceIDKey, "first"))
	value, err := store.Get(ctx, DeviceIDKey)
	require.NoError(t, err)
	assert.Equal(t, "first", value)

	require.NoError(t, store.Put(ctx, DeviceIDKey, "second"), "Put must overwrite")
	value, err = store.Get(ctx, DeviceIDKey)
	require.NoError(t, err)
	assert.Equal(t, "second", value)

	require.NoError(t, store.Delete(ctx, DeviceIDKey))
	_, err = store.Get(ctx, DeviceIDKey)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, DeviceIDKey), "deleting an absent key is a no-op")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil, testLogger())
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestFileStore_Sealed(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir, []byte("passphrase"), testLogger())
	require.NoError(t, err)
	exerciseStore(t, store)

	key, err := DeviceShareKey("signer-a")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, key, "c2hhcmU="))

	raw, err := os.ReadFile(store.getFilePath(key))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "c2hhcmU=", "value must be sealed at rest")

	// Reopening with the same passphrase reuses the persisted salt
	reopened, err := NewFileStore(dir, []byte("passphrase"), testLogger())
	require.NoError(t, err)
	value, err := reopened.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "c2hhcmU=", value)

	wrong, err := NewFileStore(dir, []byte("other"), testLogger())
	require.NoError(t, err)
	_, err = wrong.Get(ctx, key)
	assert.Error(t, err)
}

func TestFileStore_KeysStayInBaseDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil, testLogger())
	require.NoError(t, err)

	p := store.getFilePath("../../etc/passwd")
	assert.Equal(t, dir, filepath.Dir(p))
}

func TestDeviceShareKey(t *testing.T) {
	key, err := DeviceShareKey("abc")
	require.NoError(t, err)
	assert.Equal(t, "device-share-abc", key)

	for _, bad := range []string{"", "a/b", "..", `a\b`} {
		_, err := DeviceShareKey(bad)
		assert.ErrorIs(t, err, ErrInvalidSignerID, "signer id %q", bad)
	}
}

func TestStoreFactory(t *testing.T) {
	sf := NewStoreFactory(testLogger())

	store, err := sf.StoreFor("memory://")
	require.NoError(t, err)
	assert.Equal(t, "memory", store.Name())

	dir := t.TempDir()
	store, err = sf.StoreFor("file://" + dir)
	require.NoError(t, err)
	exerciseStore(t, store)

	t.Setenv("TEST_STORE_PASSPHRASE", "secret")
	store, err = sf.StoreFor("file://" + dir + "?passphrase_env=TEST_STORE_PASSPHRASE")
	require.NoError(t, err)
	assert.NotNil(t, store.(*FileStore).sealer)

	_, err = sf.StoreFor("file://" + dir + "?passphrase_env=TEST_STORE_UNSET_VARIABLE")
	assert.Error(t, err)

	_, err = sf.StoreFor("ipfs://localhost")
	assert.ErrorIs(t, err, ErrInvalidLocationURI)

	_, err = sf.StoreFor("vault://127.0.0.1:8200")
	assert.ErrorIs(t, err, ErrInvalidLocationURI)

	store, err = sf.StoreFor("vault://127.0.0.1:8200/secret/signer?tls=false")
	require.NoError(t, err)
	assert.Equal(t, "vault-secret-signer", store.Name())

	store, err = sf.StoreFor("s3://bucket/prefix?region=eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "s3-bucket", store.Name())
	assert.Equal(t, "prefix/device-id", store.(*S3Store).objectKey(DeviceIDKey))
}

func TestStoreFactory_Multi(t *testing.T) {
	sf := NewStoreFactory(testLogger())

	store, err := sf.StoreFor("memory://, file://" + t.TempDir())
	require.NoError(t, err)
	require.IsType(t, &MultiStore{}, store)
	assert.Contains(t, store.Name(), "multi:[memory,file-")
	exerciseStore(t, store)

	_, err = sf.StoreFor("memory://,ftp://host")
	assert.ErrorIs(t, err, ErrInvalidLocationURI)

	_, err = sf.StoreFor(",")
	assert.ErrorIs(t, err, ErrInvalidLocationURI)
}
