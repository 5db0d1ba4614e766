package trustclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/tee-secure-signer/backoff"
	"github.com/ruteri/tee-secure-signer/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuth = interfaces.AuthData{JWT: "token", APIKey: "api-key"}

func testPolicy() backoff.Policy {
	p := backoff.DefaultPolicy()
	p.InitialDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	p.MaxAttempts = 3
	return p
}

func newTestClient(t *testing.T, r http.Handler) *Client {
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, testPolicy(), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestGetAuthShare(t *testing.T) {
	mux := chi.NewRouter()
	mux.Get("/v1/auth-share", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "api-key", r.Header.Get(APIKeyHeader))
		assert.Equal(t, "device-1", r.Header.Get(DeviceIDHeader))
		json.NewEncoder(w).Encode(interfaces.AuthShare{
			AuthKeyShare:       "YXV0aA==",
			DeviceKeyShareHash: "aGFzaA==",
			SignerID:           "signer-a",
		})
	})
	client := newTestClient(t, mux)

	share, err := client.GetAuthShare(context.Background(), "device-1", testAuth)
	require.NoError(t, err)
	require.NotNil(t, share)
	assert.Equal(t, "signer-a", share.SignerID)
}

func TestGetAuthShare_NotOnboarded(t *testing.T) {
	mux := chi.NewRouter()
	mux.Get("/v1/auth-share", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no signer", http.StatusNotFound)
	})
	client := newTestClient(t, mux)

	share, err := client.GetAuthShare(context.Background(), "device-1", testAuth)
	require.NoError(t, err)
	assert.Nil(t, share)
}

func TestRetryOnTransientStatus(t *testing.T) {
	var calls atomic.Int32
	mux := chi.NewRouter()
	mux.Post("/v1/signers", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var params interfaces.CreateSignerParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, interfaces.KeyTypeSecp256k1, params.KeyType)
		w.WriteHeader(http.StatusAccepted)
	})
	client := newTestClient(t, mux)

	err := client.CreateSigner(context.Background(), "device-1", testAuth, interfaces.CreateSignerParams{
		AuthID:  "user@example.com",
		KeyType: interfaces.KeyTypeSecp256k1,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load(), "request body must be replayed on every attempt")
}

func TestRetryExhausted(t *testing.T) {
	var calls atomic.Int32
	mux := chi.NewRouter()
	mux.Post("/v1/signers/otp", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	})
	client := newTestClient(t, mux)

	_, err := client.SendOTP(context.Background(), "device-1", testAuth, interfaces.OTPParams{OTP: "123456"})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load(), "attempts bounded by MaxAttempts")
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	mux := chi.NewRouter()
	mux.Post("/v1/signers/otp", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "wrong code", http.StatusUnauthorized)
	})
	client := newTestClient(t, mux)

	_, err := client.SendOTP(context.Background(), "device-1", testAuth, interfaces.OTPParams{OTP: "000000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong code")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendOTP(t *testing.T) {
	mux := chi.NewRouter()
	mux.Post("/v1/signers/otp", func(w http.ResponseWriter, r *http.Request) {
		var params interfaces.OTPParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "123456", params.OTP)
		json.NewEncoder(w).Encode(interfaces.OTPResult{
			SignerID: "signer-a",
			Shares:   interfaces.Shares{Device: "ZGV2", Auth: "YXV0"},
		})
	})
	client := newTestClient(t, mux)

	result, err := client.SendOTP(context.Background(), "device-1", testAuth, interfaces.OTPParams{OTP: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "signer-a", result.SignerID)
	assert.Equal(t, "ZGV2", result.Shares.Device)
}

func TestContextCancellation(t *testing.T) {
	mux := chi.NewRouter()
	mux.Get("/v1/auth-share", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	})
	client := newTestClient(t, mux)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetAuthShare(ctx, "device-1", testAuth)
	assert.ErrorIs(t, err, context.Canceled)
}
