package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/ruteri/tee-secure-signer/identity"
	"github.com/ruteri/tee-secure-signer/interfaces"
	"github.com/ruteri/tee-secure-signer/keys"
	"github.com/ruteri/tee-secure-signer/messenger"
	"github.com/ruteri/tee-secure-signer/metrics"
	"github.com/ruteri/tee-secure-signer/sharding"
)

// Registrar is the part of the messenger channel handlers are bound to.
type Registrar interface {
	Handle(event string, fn messenger.HandlerFunc)
}

// Handler serves the signer operations. It holds no per-signer state and is
// safe for concurrent use.
type Handler struct {
	sharding *sharding.Service
	identity *identity.Service
	trust    interfaces.TrustService
	keys     *keys.Service
	otp      interfaces.OTPDecrypter
	log      *slog.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
}

// NewHandler creates a handler with the specified dependencies. A nil
// decrypter falls back to PlaintextOTP.
func NewHandler(shards *sharding.Service, ident *identity.Service, trust interfaces.TrustService, keySvc *keys.Service, otp interfaces.OTPDecrypter, log *slog.Logger, m *metrics.Metrics) *Handler {
	if otp == nil {
		otp = PlaintextOTP{}
	}
	return &Handler{
		sharding: shards,
		identity: ident,
		trust:    trust,
		keys:     keySvc,
		otp:      otp,
		log:      log,
		metrics:  m,
		validate: validator.New(),
	}
}

// Register binds every operation to its request event.
func (h *Handler) Register(r Registrar) {
	r.Handle(messenger.RequestEvent(OpCreateSigner), h.bind(OpCreateSigner, serve(h, h.CreateSigner)))
	r.Handle(messenger.RequestEvent(OpSendOTP), h.bind(OpSendOTP, serve(h, h.SendOTP)))
	r.Handle(messenger.RequestEvent(OpGetPublicKey), h.bind(OpGetPublicKey, serve(h, h.GetPublicKey)))
	r.Handle(messenger.RequestEvent(OpSign), h.bind(OpSign, serve(h, h.Sign)))
}

func (h *Handler) bind(op string, fn messenger.HandlerFunc) messenger.HandlerFunc {
	return Timed(h.log, h.metrics, op, fn)
}

// serve decodes and checks the envelope, runs op and wraps its result.
func serve[T any, R any](h *Handler, op func(context.Context, interfaces.AuthData, T) (R, error)) messenger.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var header struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(payload, &header); err != nil {
			return nil, fmt.Errorf("malformed request envelope: %w", err)
		}
		if header.Version != Version {
			return nil, fmt.Errorf("Invalid event version. Expected %d, got %d", Version, header.Version)
		}

		var req Request[T]
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("malformed request: %w", err)
		}
		if req.AuthData == nil {
			return nil, errors.New("authData is required")
		}
		if err := h.validate.Struct(req.AuthData); err != nil {
			return nil, fmt.Errorf("invalid authData: %w", err)
		}
		if err := h.validate.Struct(req.Data); err != nil {
			return nil, fmt.Errorf("invalid request data: %w", err)
		}

		result, err := op(ctx, *req.AuthData, req.Data)
		if err != nil {
			resp, err := errorResponse(err)
			if err != nil {
				return nil, err
			}
			return resp, nil
		}
		return &Response{Status: StatusSuccess, Data: result}, nil
	}
}

// errorResponse answers caller-distinguishable conditions with a structured
// response and passes everything else through.
func errorResponse(err error) (*Response, error) {
	var coded *interfaces.CodedError
	switch {
	case errors.As(err, &coded):
		return &Response{Status: StatusError, Error: coded.Message, Code: coded.Code, Details: coded.Details}, nil
	case errors.Is(err, interfaces.ErrNotOnboarded):
		return &Response{Status: StatusError, Error: err.Error(), Code: interfaces.CodeNotOnboarded}, nil
	default:
		return nil, err
	}
}

// CreateSigner starts onboarding for params.AuthID unless the signer already
// has a device share on this device.
func (h *Handler) CreateSigner(ctx context.Context, auth interfaces.AuthData, params interfaces.CreateSignerParams) (*CreateSignerResult, error) {
	authShare, err := h.sharding.FetchAuthShare(ctx, auth)
	if err != nil {
		return nil, err
	}
	if authShare != nil {
		status, err := h.sharding.Status(ctx, authShare.SignerID)
		if err != nil {
			return nil, err
		}
		if status == sharding.StatusReady {
			h.log.Info("signer already onboarded on this device", slog.String("signerId", authShare.SignerID))
			return &CreateSignerResult{Status: SignerReady, SignerID: authShare.SignerID}, nil
		}
	}

	deviceID, err := h.identity.DeviceID(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.trust.CreateSigner(ctx, deviceID, auth, params); err != nil {
		return nil, fmt.Errorf("could not create signer: %w", err)
	}
	return &CreateSignerResult{Status: SignerOTPSent}, nil
}

// SendOTP completes onboarding: it exchanges the one-time code for a fresh
// split, persists the device share and returns the public key derived from
// the combined secret.
func (h *Handler) SendOTP(ctx context.Context, auth interfaces.AuthData, data SendOTPData) (*PublicKeyResult, error) {
	digits, err := h.otp.Decrypt(ctx, data.EncryptedOTP)
	if err != nil {
		return nil, fmt.Errorf("could not decrypt otp: %w", err)
	}
	code, err := digitsToCode(digits)
	if err != nil {
		return nil, err
	}

	deviceID, err := h.identity.DeviceID(ctx)
	if err != nil {
		return nil, err
	}
	result, err := h.trust.SendOTP(ctx, deviceID, auth, interfaces.OTPParams{OTP: code})
	if err != nil {
		return nil, fmt.Errorf("could not verify otp: %w", err)
	}

	// The device share is persisted only once the split is known to reconstruct.
	secret, err := h.sharding.Combine(result.Shares.Device, result.Shares.Auth)
	if err != nil {
		return nil, err
	}
	defer wipeBytes(secret)

	publicKey, err := h.publicKey(result.SignerID, data.KeyType, secret)
	if err != nil {
		return nil, err
	}

	if err := h.sharding.StoreDeviceShare(ctx, result.SignerID, result.Shares.Device); err != nil {
		return nil, err
	}
	return publicKey, nil
}

// GetPublicKey returns the public key of the signer for data.KeyType.
func (h *Handler) GetPublicKey(ctx context.Context, auth interfaces.AuthData, data GetPublicKeyData) (*PublicKeyResult, error) {
	rec, err := h.reconstruct(ctx, auth)
	if err != nil {
		return nil, err
	}
	defer rec.Wipe()

	return h.publicKey(rec.SignerID, data.KeyType, rec.Secret)
}

// Sign signs data.Payload with the signer's data.KeyType key.
func (h *Handler) Sign(ctx context.Context, auth interfaces.AuthData, data SignData) (*SignResult, error) {
	msg, err := decodePayload(data.Encoding, data.Payload)
	if err != nil {
		return nil, err
	}
	input, err := signingInput(data.KeyType, data.Hash, msg)
	if err != nil {
		return nil, err
	}

	rec, err := h.reconstruct(ctx, auth)
	if err != nil {
		return nil, err
	}
	defer rec.Wipe()

	result, err := h.keys.SignWithSeed(data.KeyType, rec.Secret, input)
	if err != nil {
		return nil, fmt.Errorf("could not sign: %w", err)
	}
	return result, nil
}

func (h *Handler) reconstruct(ctx context.Context, auth interfaces.AuthData) (sharding.Reconstruction, error) {
	rec, err := h.sharding.Reconstruct(ctx, auth)
	if err != nil {
		return sharding.Reconstruction{}, err
	}
	if err := rec.Err(); err != nil {
		return sharding.Reconstruction{}, err
	}
	return rec, nil
}

func (h *Handler) publicKey(signerID string, kt interfaces.KeyType, secret []byte) (*PublicKeyResult, error) {
	publicKey, err := h.keys.PublicKeyFromSeed(kt, secret)
	if err != nil {
		return nil, err
	}

	result := &PublicKeyResult{SignerID: signerID, PublicKey: publicKey}
	if kt == interfaces.KeyTypeSecp256k1 {
		raw, err := keys.DecodeWireKey(publicKey)
		if err != nil {
			return nil, err
		}
		if result.Address, err = keys.EthereumAddress(raw); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func wipeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
