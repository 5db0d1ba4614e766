package sharding

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/vault/shamir"
	"github.com/ruteri/tee-secure-signer/identity"
	"github.com/ruteri/tee-secure-signer/interfaces"
	"github.com/ruteri/tee-secure-signer/metrics"
	"github.com/ruteri/tee-secure-signer/storage"
)

// Status of a signer on this device.
type Status string

const (
	StatusReady     Status = "ready"
	StatusNewDevice Status = "new-device"
)

// ErrCombine wraps failures of the share combination on matching hashes.
var ErrCombine = errors.New("failed to combine shares")

// Service owns the 2-of-2 reconstruction of signer master secrets.
type Service struct {
	store    interfaces.KVStore
	trust    interfaces.TrustService
	identity *identity.Service
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewService(store interfaces.KVStore, trust interfaces.TrustService, identity *identity.Service, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		trust:    trust,
		identity: identity,
		log:      log,
		metrics:  m,
	}
}

// FetchAuthShare resolves the signer identity for auth. A nil share means the
// signer is not onboarded with the trust service.
func (s *Service) FetchAuthShare(ctx context.Context, auth interfaces.AuthData) (*interfaces.AuthShare, error) {
	deviceID, err := s.identity.DeviceID(ctx)
	if err != nil {
		return nil, err
	}

	authShare, err := s.trust.GetAuthShare(ctx, deviceID, auth)
	if err != nil {
		return nil, fmt.Errorf("could not fetch auth share: %w", err)
	}
	if authShare == nil {
		return nil, nil
	}
	if err := storage.ValidateSignerID(authShare.SignerID); err != nil {
		return nil, fmt.Errorf("trust service returned invalid signer id: %w", err)
	}
	return authShare, nil
}

// Reconstruct produces the master secret for the signer identified by auth.
func (s *Service) Reconstruct(ctx context.Context, auth interfaces.AuthData) (Reconstruction, error) {
	authShare, err := s.FetchAuthShare(ctx, auth)
	if err != nil {
		return Reconstruction{}, err
	}
	if authShare == nil {
		s.metrics.CountReconstruction(OutcomeNotOnboarded.String())
		return Reconstruction{Outcome: OutcomeNotOnboarded}, nil
	}

	signerID := authShare.SignerID

	deviceShare, err := s.loadDeviceShare(ctx, signerID)
	if errors.Is(err, interfaces.ErrNotFound) {
		s.log.Debug("No device share for signer", slog.String("signerId", signerID))
		s.metrics.CountReconstruction(OutcomeNotOnboarded.String())
		return Reconstruction{Outcome: OutcomeNotOnboarded, SignerID: signerID}, nil
	}
	if err != nil {
		return Reconstruction{}, err
	}

	observed := HashDeviceShare(deviceShare)
	if subtle.ConstantTimeCompare([]byte(observed), []byte(authShare.DeviceKeyShareHash)) != 1 {
		details := &TamperDetails{
			SignerID:     signerID,
			ObservedHash: observed,
			ExpectedHash: authShare.DeviceKeyShareHash,
		}
		s.log.Warn("Device share hash mismatch, destroying local signer state",
			slog.String("signerId", signerID),
			slog.String("observedHash", observed),
			slog.String("expectedHash", authShare.DeviceKeyShareHash))

		if err := s.destroy(ctx, signerID); err != nil {
			s.log.Error("Tamper cleanup incomplete", slog.String("signerId", signerID), "err", err)
		}
		s.metrics.CountTamper()
		s.metrics.CountReconstruction(OutcomeTampered.String())
		return Reconstruction{Outcome: OutcomeTampered, SignerID: signerID, Tamper: details}, nil
	}

	secret, err := combine(deviceShare, authShare.AuthKeyShare)
	if err != nil {
		s.metrics.CountReconstruction("error")
		return Reconstruction{}, err
	}

	s.metrics.CountReconstruction(OutcomeOK.String())
	return Reconstruction{Outcome: OutcomeOK, SignerID: signerID, Secret: secret}, nil
}

// StoreDeviceShare persists the device share of a freshly onboarded signer.
func (s *Service) StoreDeviceShare(ctx context.Context, signerID string, share string) error {
	key, err := storage.DeviceShareKey(signerID)
	if err != nil {
		return err
	}
	if _, err := decodeShare(share); err != nil {
		return fmt.Errorf("refusing to store device share: %w", err)
	}
	if err := s.store.Put(ctx, key, share); err != nil {
		return fmt.Errorf("could not store device share: %w", err)
	}
	return nil
}

// Status reports whether a device share exists for signerID.
func (s *Service) Status(ctx context.Context, signerID string) (Status, error) {
	key, err := storage.DeviceShareKey(signerID)
	if err != nil {
		return "", err
	}
	_, err = s.store.Get(ctx, key)
	switch {
	case err == nil:
		return StatusReady, nil
	case errors.Is(err, interfaces.ErrNotFound):
		return StatusNewDevice, nil
	default:
		return "", fmt.Errorf("could not read device share: %w", err)
	}
}

// Combine joins a device share and an auth share, both standard base64.
func (s *Service) Combine(deviceShare, authShare string) ([]byte, error) {
	return combine(deviceShare, authShare)
}

// destroy performs the tamper cleanup. Every step runs even if an earlier one fails.
func (s *Service) destroy(ctx context.Context, signerID string) error {
	var errs []error

	key, err := storage.DeviceShareKey(signerID)
	if err == nil {
		err = s.store.Delete(ctx, key)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("device share: %w", err))
	}

	if err := s.identity.Reset(ctx); err != nil {
		errs = append(errs, fmt.Errorf("device id: %w", err))
	}

	return errors.Join(errs...)
}

func (s *Service) loadDeviceShare(ctx context.Context, signerID string) (string, error) {
	key, err := storage.DeviceShareKey(signerID)
	if err != nil {
		return "", err
	}
	share, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("could not load device share: %w", err)
	}
	return share, nil
}

// HashDeviceShare returns base64(SHA-256(raw share bytes)). Shares that are not
// valid base64 are hashed as given so the mismatch is still reported as tampering.
func HashDeviceShare(share string) string {
	raw, err := decodeShare(share)
	if err != nil {
		raw = []byte(share)
	}
	digest := sha256.Sum256(raw)
	return base64.StdEncoding.EncodeToString(digest[:])
}

// Split splits secret into a device share and an auth share, base64 encoded.
func Split(secret []byte) (interfaces.Shares, error) {
	parts, err := shamir.Split(secret, 2, 2)
	if err != nil {
		return interfaces.Shares{}, fmt.Errorf("failed to split secret: %w", err)
	}
	return interfaces.Shares{
		Device: base64.StdEncoding.EncodeToString(parts[0]),
		Auth:   base64.StdEncoding.EncodeToString(parts[1]),
	}, nil
}

func combine(deviceShare, authShare string) ([]byte, error) {
	device, err := decodeShare(deviceShare)
	if err != nil {
		return nil, fmt.Errorf("%w: device share: %v", ErrCombine, err)
	}
	auth, err := decodeShare(authShare)
	if err != nil {
		return nil, fmt.Errorf("%w: auth share: %v", ErrCombine, err)
	}
	defer wipeBytes(device)
	defer wipeBytes(auth)

	secret, err := shamir.Combine([][]byte{device, auth})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCombine, err)
	}
	return secret, nil
}

func decodeShare(share string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(share)
	if err != nil {
		return nil, fmt.Errorf("share is not valid base64: %w", err)
	}
	if len(raw) < 2 {
		return nil, errors.New("share is too short")
	}
	return raw, nil
}

// Securely wipe data from memory
func wipeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
