package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/tee-secure-signer/interfaces"
)

// MultiStore mirrors a key-value store over several backends.
//
// Put and Delete are applied to every backend and fail if any backend fails,
// so that a deleted device share cannot survive on a replica. Get returns the
// answer of the first backend that responds; ErrNotFound from a responding
// backend is authoritative and is not retried on the next one.
type MultiStore struct {
	backends []interfaces.KVStore
	log      *slog.Logger
}

func NewMultiStore(backends []interfaces.KVStore, logger *slog.Logger) *MultiStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiStore{
		backends: backends,
		log:      logger,
	}
}

func (m *MultiStore) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var errs []error

	for _, backend := range m.backends {
		value, err := backend.Get(ctx, key)
		if err == nil || errors.Is(err, interfaces.ErrNotFound) {
			if len(errs) > 0 {
				m.log.Info("Served from fallback backend",
					slog.String("backend_name", backend.Name()),
					slog.Int("failed_backends", len(errs)),
					slog.Duration("duration", time.Since(start)))
			}
			return value, err
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to read from backend",
			slog.String("backend_name", backend.Name()),
			"err", err)
	}

	m.log.Error("All backends failed to read",
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))
	return "", fmt.Errorf("all backends failed to read: %w", errors.Join(errs...))
}

// Put writes value to all backends.
func (m *MultiStore) Put(ctx context.Context, key string, value string) error {
	return m.each(ctx, "write", func(backend interfaces.KVStore) error {
		return backend.Put(ctx, key, value)
	})
}

// Delete removes key from all backends. Every backend is attempted.
func (m *MultiStore) Delete(ctx context.Context, key string) error {
	return m.each(ctx, "delete", func(backend interfaces.KVStore) error {
		return backend.Delete(ctx, key)
	})
}

func (m *MultiStore) each(ctx context.Context, op string, fn func(interfaces.KVStore) error) error {
	var errs []error
	for _, backend := range m.backends {
		if err := fn(backend); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Backend operation failed",
				slog.String("op", op),
				slog.String("backend_name", backend.Name()),
				"err", err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to %s on %d of %d backends: %w", op, len(errs), len(m.backends), errors.Join(errs...))
	}
	return nil
}

// Name returns the combined name of the backends.
func (m *MultiStore) Name() string {
	names := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		names = append(names, backend.Name())
	}
	return "multi:[" + strings.Join(names, ",") + "]"
}
