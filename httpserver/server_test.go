package httpserver

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"github.com/ruteri/tee-secure-signer/handlers"
	"github.com/ruteri/tee-secure-signer/identity"
	"github.com/ruteri/tee-secure-signer/interfaces"
	"github.com/ruteri/tee-secure-signer/keys"
	"github.com/ruteri/tee-secure-signer/messenger"
	"github.com/ruteri/tee-secure-signer/metrics"
	"github.com/ruteri/tee-secure-signer/sharding"
	"github.com/ruteri/tee-secure-signer/storage"
	"github.com/ruteri/tee-secure-signer/trustclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testAuth = interfaces.AuthData{JWT: "jwt", APIKey: "api-key"}

type testEnv struct {
	server *Server
	http   *httptest.Server
	trust  *trustclient.MockTrustService
	shards *sharding.Service
	log    *slog.Logger
}

func setupTestEnvironment(t *testing.T, targetOrigin string) *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()
	trust := new(trustclient.MockTrustService)
	ids := identity.NewService(store, logger)
	m := metrics.New("httpserver_test")
	shards := sharding.NewService(store, trust, ids, logger, m)
	handler := handlers.NewHandler(shards, ids, trust, keys.DefaultService(), nil, logger, m)

	srv, err := New(&HTTPServerConfig{
		ListenAddr: "127.0.0.1:0",
		Log:        logger,
		Channel: messenger.Options{
			TargetOrigin:           targetOrigin,
			HandshakeTimeout:       2 * time.Second,
			HandshakeRetryInterval: 10 * time.Millisecond,
		},
		GracefulShutdownDuration: time.Second,
	}, handler, m)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.sessions.closeAll(context.Background())
		ts.Close()
	})

	return &testEnv{server: srv, http: ts, trust: trust, shards: shards, log: logger}
}

func (e *testEnv) dial(t *testing.T, origin string) (*messenger.Channel, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/frame"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, err
	}

	host := messenger.NewChannel(messenger.NewWebSocketPort(conn, "", e.log), messenger.Options{Origin: origin}, e.log)
	t.Cleanup(func() { host.Close() })
	if err := host.Accept(context.Background()); err != nil {
		return nil, err
	}
	return host, nil
}

func TestFrameSession(t *testing.T) {
	env := setupTestEnvironment(t, "https://wallet.example")

	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	shares, err := sharding.Split(secret)
	require.NoError(t, err)
	require.NoError(t, env.shards.StoreDeviceShare(context.Background(), "signer-a", shares.Device))
	env.trust.On("GetAuthShare", mock.Anything, mock.Anything, testAuth).Return(&interfaces.AuthShare{
		AuthKeyShare:       shares.Auth,
		DeviceKeyShareHash: sharding.HashDeviceShare(shares.Device),
		SignerID:           "signer-a",
	}, nil)

	host, err := env.dial(t, "https://wallet.example")
	require.NoError(t, err)

	auth := testAuth
	raw, err := host.Call(context.Background(), messenger.RequestEvent(handlers.OpGetPublicKey),
		handlers.Request[handlers.GetPublicKeyData]{
			Version:  handlers.Version,
			AuthData: &auth,
			Data:     handlers.GetPublicKeyData{KeyType: interfaces.KeyTypeEd25519},
		},
		messenger.CallOptions{RetryInterval: 50 * time.Millisecond})
	require.NoError(t, err)

	var resp struct {
		Status string                   `json:"status"`
		Data   handlers.PublicKeyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, handlers.StatusSuccess, resp.Status)

	expected := ed25519.NewKeyFromSeed(secret).Public().(ed25519.PublicKey)
	assert.Equal(t, base58.Encode(expected), resp.Data.PublicKey.Bytes)
	assert.Equal(t, 1, env.server.sessions.count())
}

func TestFrameRejectsForeignOrigin(t *testing.T) {
	env := setupTestEnvironment(t, "https://wallet.example")

	_, err := env.dial(t, "https://evil.example")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
}

func TestFrameRejectedWhileDraining(t *testing.T) {
	env := setupTestEnvironment(t, messenger.AnyOrigin)
	env.server.isReady.Store(false)

	_, err := env.dial(t, "")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
}

func TestHealthEndpoints(t *testing.T) {
	env := setupTestEnvironment(t, messenger.AnyOrigin)
	router := env.server.Handler()

	get := func(path string) (int, string) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		status, _ := body["status"].(string)
		return rr.Code, status
	}

	code, status := get("/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", status)

	code, status = get("/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", status)

	_, status = get("/drain")
	assert.Equal(t, "draining", status)
	_, status = get("/drain")
	assert.Equal(t, "already draining", status)

	code, status = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", status)

	_, status = get("/undrain")
	assert.Equal(t, "ready", status)
	_, status = get("/undrain")
	assert.Equal(t, "already ready", status)
}

func TestInfo(t *testing.T) {
	env := setupTestEnvironment(t, messenger.AnyOrigin)

	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/info", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var info map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, "dev", info["version"])
	assert.Equal(t, 0.0, info["sessions"])
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := New(&HTTPServerConfig{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}, nil, nil)
	assert.Error(t, err)
}
