// Package identity manages the stable local device identifier used to request
// auth shares from the remote trust service.
//
// The identifier is device-global: all signers on the device share it. It is
// destroyed when tampering is detected, so the next access yields a new one.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ruteri/tee-secure-signer/interfaces"
	"github.com/ruteri/tee-secure-signer/storage"
)

// Service loads or creates the device identifier.
type Service struct {
	mu    sync.Mutex
	store interfaces.KVStore
	log   *slog.Logger
}

func NewService(store interfaces.KVStore, log *slog.Logger) *Service {
	return &Service{store: store, log: log}
}

// DeviceID returns the persisted identifier, creating one on first use.
func (s *Service) DeviceID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.store.Get(ctx, storage.DeviceIDKey)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return "", fmt.Errorf("could not load device id: %w", err)
	}

	newID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("could not generate device id: %w", err)
	}
	if err := s.store.Put(ctx, storage.DeviceIDKey, newID.String()); err != nil {
		return "", fmt.Errorf("could not persist device id: %w", err)
	}

	s.log.Info("Generated new device id")
	return newID.String(), nil
}

// Reset deletes the identifier. Resetting an absent identifier is a no-op.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, storage.DeviceIDKey); err != nil {
		return fmt.Errorf("could not delete device id: %w", err)
	}
	return nil
}
