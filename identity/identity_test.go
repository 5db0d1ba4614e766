package identity

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/ruteri/tee-secure-signer/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceID(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	first, err := svc.DeviceID(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	assert.NoError(t, err, "device id must be a uuid")

	second, err := svc.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second, "device id must be stable")

	stored, err := store.Get(ctx, storage.DeviceIDKey)
	require.NoError(t, err)
	assert.Equal(t, first, stored)

	require.NoError(t, svc.Reset(ctx))
	require.NoError(t, svc.Reset(ctx), "reset of an absent id is a no-op")

	third, err := svc.DeviceID(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, third, "a reset device must get a new id")
}
