package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastOptions() Options {
	return Options{
		HandshakeTimeout:       time.Second,
		HandshakeRetryInterval: 5 * time.Millisecond,
		CallTimeout:            time.Second,
	}
}

// connectedPair returns a child (signer) and parent (host) channel that have
// completed the handshake.
func connectedPair(t *testing.T, childOpts, parentOpts Options) (*Channel, *Channel) {
	t.Helper()
	a, b := Pipe()
	child := NewChannel(a, childOpts, testLogger())
	parent := NewChannel(b, parentOpts, testLogger())
	t.Cleanup(func() {
		child.Close()
		parent.Close()
	})

	accepted := make(chan error, 1)
	go func() { accepted <- parent.Accept(context.Background()) }()

	require.NoError(t, child.Connect(context.Background()))
	require.NoError(t, <-accepted)
	return child, parent
}

func receive(t *testing.T, port Port, timeout time.Duration) (Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-port.Receive():
		return msg, ok
	case <-time.After(timeout):
		return Message{}, false
	}
}

func echo(_ context.Context, payload json.RawMessage) (any, error) {
	var v map[string]string
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func TestHandshake(t *testing.T) {
	child, parent := connectedPair(t, fastOptions(), fastOptions())
	assert.True(t, child.Connected())
	assert.True(t, parent.Connected())
}

func TestHandshakeTimeout(t *testing.T) {
	a, _ := Pipe()
	opts := fastOptions()
	opts.HandshakeTimeout = 40 * time.Millisecond
	child := NewChannel(a, opts, testLogger())
	defer child.Close()

	err := child.Connect(context.Background())
	require.ErrorIs(t, err, ErrHandshakeTimeout)
	assert.False(t, child.Connected())
}

func TestHandshakeRetriesSyn(t *testing.T) {
	a, b := Pipe()
	child := NewChannel(a, fastOptions(), testLogger())
	defer child.Close()

	connected := make(chan error, 1)
	go func() { connected <- child.Connect(context.Background()) }()

	// Ignore the first syn, acknowledge a later one.
	first, ok := receive(t, b, time.Second)
	require.True(t, ok)
	assert.Equal(t, KindSyn, first.Kind)

	second, ok := receive(t, b, time.Second)
	require.True(t, ok)
	assert.Equal(t, KindSyn, second.Kind)
	assert.NotEqual(t, first.ID, second.ID)

	require.NoError(t, b.Send(context.Background(), Message{Kind: KindAck, ID: second.ID}))
	require.NoError(t, <-connected)
}

func TestCall(t *testing.T) {
	child, parent := connectedPair(t, fastOptions(), fastOptions())
	child.Handle(RequestEvent("echo"), echo)

	resp, err := parent.Call(context.Background(), RequestEvent("echo"), map[string]string{"hello": "world"}, CallOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(resp))
}

func TestCallRemoteError(t *testing.T) {
	child, parent := connectedPair(t, fastOptions(), fastOptions())
	child.Handle(RequestEvent("fail"), func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := parent.Call(context.Background(), RequestEvent("fail"), struct{}{}, CallOptions{})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "boom", remote.Message)
}

func TestCallTimeout(t *testing.T) {
	child, parent := connectedPair(t, fastOptions(), fastOptions())
	release := make(chan struct{})
	defer close(release)
	child.Handle(RequestEvent("slow"), func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-release
		return "late", nil
	})

	_, err := parent.Call(context.Background(), RequestEvent("slow"), struct{}{}, CallOptions{Timeout: 30 * time.Millisecond})
	require.ErrorIs(t, err, ErrCallTimeout)
}

func TestCallRequiresHandshake(t *testing.T) {
	a, _ := Pipe()
	c := NewChannel(a, fastOptions(), testLogger())
	defer c.Close()

	_, err := c.Call(context.Background(), RequestEvent("echo"), struct{}{}, CallOptions{})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestRedeliveryReachesLateHandler(t *testing.T) {
	child, parent := connectedPair(t, fastOptions(), fastOptions())

	var calls atomic.Int32
	go func() {
		time.Sleep(40 * time.Millisecond)
		child.Handle(RequestEvent("late"), func(ctx context.Context, payload json.RawMessage) (any, error) {
			calls.Add(1)
			return "ok", nil
		})
	}()

	resp, err := parent.Call(context.Background(), RequestEvent("late"), struct{}{}, CallOptions{RetryInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.JSONEq(t, `"ok"`, string(resp))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRedeliveryDoesNotRerunHandler(t *testing.T) {
	child, parent := connectedPair(t, fastOptions(), fastOptions())

	var calls atomic.Int32
	child.Handle(RequestEvent("slow"), func(ctx context.Context, payload json.RawMessage) (any, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return "done", nil
	})

	_, err := parent.Call(context.Background(), RequestEvent("slow"), struct{}{}, CallOptions{RetryInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDuplicateRequestAnsweredFromCache(t *testing.T) {
	a, raw := Pipe()
	child := NewChannel(a, fastOptions(), testLogger())
	defer child.Close()

	var calls atomic.Int32
	child.Handle(RequestEvent("count"), func(context.Context, json.RawMessage) (any, error) {
		return calls.Add(1), nil
	})

	req := Message{Kind: KindRequest, ID: "req-1", Event: RequestEvent("count"), Payload: json.RawMessage(`{}`)}
	for range 2 {
		require.NoError(t, raw.Send(context.Background(), req))
		resp, ok := receive(t, raw, time.Second)
		require.True(t, ok)
		assert.Equal(t, KindResponse, resp.Kind)
		assert.Equal(t, "req-1", resp.ID)
		assert.Equal(t, ResponseEvent("count"), resp.Event)
		assert.JSONEq(t, `1`, string(resp.Payload))
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestOriginPinning(t *testing.T) {
	a, raw := Pipe()
	opts := fastOptions()
	opts.TargetOrigin = "https://wallet.example"
	child := NewChannel(a, opts, testLogger())
	defer child.Close()
	child.Handle(RequestEvent("echo"), echo)

	foreign := Message{Kind: KindRequest, ID: "1", Event: RequestEvent("echo"), Origin: "https://evil.example", Payload: json.RawMessage(`{}`)}
	require.NoError(t, raw.Send(context.Background(), foreign))
	_, ok := receive(t, raw, 50*time.Millisecond)
	assert.False(t, ok, "frames from other origins are dropped")

	pinned := Message{Kind: KindRequest, ID: "2", Event: RequestEvent("echo"), Origin: "https://wallet.example", Payload: json.RawMessage(`{"a":"b"}`)}
	require.NoError(t, raw.Send(context.Background(), pinned))
	resp, ok := receive(t, raw, time.Second)
	require.True(t, ok)
	assert.Equal(t, "2", resp.ID)
}

func TestOutgoingFramesCarryOrigin(t *testing.T) {
	a, raw := Pipe()
	opts := fastOptions()
	opts.Origin = "https://signer.example"
	child := NewChannel(a, opts, testLogger())
	defer child.Close()

	go child.Connect(context.Background())
	syn, ok := receive(t, raw, time.Second)
	require.True(t, ok)
	assert.Equal(t, "https://signer.example", syn.Origin)
}

func TestCloseUnblocksCall(t *testing.T) {
	child, parent := connectedPair(t, fastOptions(), fastOptions())
	_ = child

	errCh := make(chan error, 1)
	go func() {
		_, err := parent.Call(context.Background(), RequestEvent("missing"), struct{}{}, CallOptions{Timeout: 5 * time.Second})
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, parent.Close())
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("call did not return after close")
	}
}

func TestPeerCloseUnblocksCall(t *testing.T) {
	child, parent := connectedPair(t, fastOptions(), fastOptions())
	child.Handle(RequestEvent("slow"), func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := parent.Call(context.Background(), RequestEvent("slow"), struct{}{}, CallOptions{Timeout: 3 * time.Second})
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, child.Close())
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("call did not return after the peer closed")
	}
}

func TestEventsService(t *testing.T) {
	a, b := Pipe()
	svc := NewEventsService(a, fastOptions(), testLogger())
	defer svc.Close()

	_, err := svc.Messenger()
	require.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, StateUninitialized, svc.State())

	parent := NewChannel(b, fastOptions(), testLogger())
	defer parent.Close()
	accepted := make(chan error, 1)
	go func() { accepted <- parent.Accept(context.Background()) }()

	require.NoError(t, svc.Init(context.Background()))
	require.NoError(t, <-accepted)
	assert.Equal(t, StateConnected, svc.State())

	first, err := svc.Messenger()
	require.NoError(t, err)

	require.NoError(t, svc.Init(context.Background()), "init is idempotent once connected")
	second, err := svc.Messenger()
	require.NoError(t, err)
	assert.Same(t, first, second)

	first.Handle(RequestEvent("echo"), echo)
	resp, err := parent.Call(context.Background(), RequestEvent("echo"), map[string]string{"k": "v"}, CallOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(resp))
}

func TestEventsServiceHandshaking(t *testing.T) {
	a, _ := Pipe()
	opts := fastOptions()
	opts.HandshakeTimeout = 30 * time.Millisecond
	svc := NewEventsService(a, opts, testLogger())
	defer svc.Close()

	require.ErrorIs(t, svc.Init(context.Background()), ErrHandshakeTimeout)
	assert.Equal(t, StateHandshaking, svc.State())

	_, err := svc.Messenger()
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestResponseEventFor(t *testing.T) {
	assert.Equal(t, "response:sign", responseEventFor("request:sign"))
	assert.Equal(t, "custom", responseEventFor("custom"))
}
