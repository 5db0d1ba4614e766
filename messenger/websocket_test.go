package messenger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func websocketPair(t *testing.T) (*WebSocketPort, *WebSocketPort) {
	t.Helper()

	accepted := make(chan *WebSocketPort, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- NewWebSocketPort(conn, r.Header.Get("Origin"), testLogger())
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	client := NewWebSocketPort(conn, "", testLogger())
	t.Cleanup(func() { client.Close() })

	select {
	case server := <-accepted:
		t.Cleanup(func() { server.Close() })
		return server, client
	case <-time.After(time.Second):
		t.Fatal("websocket upgrade did not complete")
		return nil, nil
	}
}

func TestWebSocketPort_RoundTrip(t *testing.T) {
	server, client := websocketPair(t)

	require.NoError(t, client.Send(context.Background(), Message{Kind: KindSyn, ID: "1"}))
	msg, ok := receive(t, server, time.Second)
	require.True(t, ok)
	assert.Equal(t, KindSyn, msg.Kind)
	assert.Equal(t, "1", msg.ID)
}

func TestWebSocketPort_CloseReleasesFullReader(t *testing.T) {
	server, client := websocketPair(t)

	for i := 0; i < pipeBuffer+16; i++ {
		require.NoError(t, client.Send(context.Background(), Message{Kind: KindRequest, ID: "x"}))
	}
	// Let the reader fill the buffer and park on the next frame.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, server.Close())
	time.Sleep(50 * time.Millisecond)

	received := 0
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-server.Receive():
			if !ok {
				assert.LessOrEqual(t, received, pipeBuffer)
				return
			}
			received++
		case <-deadline:
			t.Fatal("receive channel not closed after Close")
		}
	}
}
