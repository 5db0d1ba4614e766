package messenger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"
)

var (
	ErrHandshakeTimeout = errors.New("handshake timed out")
	ErrCallTimeout      = errors.New("call timed out")
	ErrChannelClosed    = errors.New("channel closed")
)

const (
	DefaultHandshakeTimeout       = 10 * time.Second
	DefaultHandshakeRetryInterval = 250 * time.Millisecond
	DefaultCallTimeout            = 10 * time.Second
	DefaultResponseCacheSize      = 256
)

// RemoteError is returned by Call when the peer's handler failed.
type RemoteError struct {
	Event   string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Event, e.Message)
}

// HandlerFunc serves one inbound request. The returned value is marshalled as
// the response payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Options configures a Channel. Zero durations fall back to the defaults.
type Options struct {
	// Origin is stamped on every outgoing frame.
	Origin string
	// TargetOrigin pins the accepted peer origin. Empty or AnyOrigin accepts any.
	TargetOrigin string

	HandshakeTimeout       time.Duration
	HandshakeRetryInterval time.Duration
	CallTimeout            time.Duration
	ResponseCacheSize      int
}

func (o Options) withDefaults() Options {
	if o.TargetOrigin == "" {
		o.TargetOrigin = AnyOrigin
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.HandshakeRetryInterval <= 0 {
		o.HandshakeRetryInterval = DefaultHandshakeRetryInterval
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.ResponseCacheSize <= 0 {
		o.ResponseCacheSize = DefaultResponseCacheSize
	}
	return o
}

// CallOptions tunes a single Call. A zero Timeout uses Options.CallTimeout; a
// zero RetryInterval sends the request once.
type CallOptions struct {
	Timeout       time.Duration
	RetryInterval time.Duration
}

// Channel correlates requests and responses over a Port.
type Channel struct {
	port Port
	opts Options
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	connected *atomic.Bool
	syns      chan struct{}
	acks      chan struct{}

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	pending  map[string]chan Message
	inflight map[string]struct{}

	responses *lru.Cache[string, Message]

	wg        sync.WaitGroup
	closed    chan struct{}
	closeOnce sync.Once
}

// NewChannel starts reading from port. The channel takes ownership of the
// port and closes it on Close.
func NewChannel(port Port, opts Options, log *slog.Logger) *Channel {
	opts = opts.withDefaults()
	responses, err := lru.New[string, Message](opts.ResponseCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which withDefaults rules out.
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		port:      port,
		opts:      opts,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		connected: atomic.NewBool(false),
		syns:      make(chan struct{}, 1),
		acks:      make(chan struct{}, 1),
		handlers:  make(map[string]HandlerFunc),
		pending:   make(map[string]chan Message),
		inflight:  make(map[string]struct{}),
		responses: responses,
		closed:    make(chan struct{}),
	}

	c.wg.Add(1)
	go c.readLoop()
	return c
}

// Connect performs the child side of the handshake.
func (c *Channel) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()

	ticker := time.NewTicker(c.opts.HandshakeRetryInterval)
	defer ticker.Stop()

	for {
		if err := c.send(ctx, Message{Kind: KindSyn, ID: uuid.NewString()}); err != nil && ctx.Err() == nil {
			c.log.Debug("could not send syn", "err", err)
		}

		select {
		case <-c.acks:
			c.connected.Store(true)
			return nil
		case <-ticker.C:
		case <-c.closed:
			return ErrChannelClosed
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrHandshakeTimeout, ctx.Err())
		}
	}
}

// Accept performs the parent side of the handshake: it waits for the first
// syn, which the read loop has already acknowledged.
func (c *Channel) Accept(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.HandshakeTimeout)
	defer cancel()

	select {
	case <-c.syns:
		c.connected.Store(true)
		return nil
	case <-c.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrHandshakeTimeout, ctx.Err())
	}
}

// Connected reports whether the handshake has completed.
func (c *Channel) Connected() bool {
	return c.connected.Load()
}

// Handle registers fn for inbound requests named event, replacing any
// previous handler.
func (c *Channel) Handle(event string, fn HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = fn
}

// Call sends a request and waits for its response payload.
func (c *Channel) Call(ctx context.Context, event string, payload any, opts CallOptions) (json.RawMessage, error) {
	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not encode %s payload: %w", event, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.opts.CallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := Message{Kind: KindRequest, ID: uuid.NewString(), Event: event, Payload: encoded}
	respCh := make(chan Message, 1)

	c.mu.Lock()
	c.pending[req.ID] = respCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.send(ctx, req); err != nil {
		return nil, fmt.Errorf("could not send %s: %w", event, err)
	}

	var retry <-chan time.Time
	if opts.RetryInterval > 0 {
		ticker := time.NewTicker(opts.RetryInterval)
		defer ticker.Stop()
		retry = ticker.C
	}

	for {
		select {
		case resp := <-respCh:
			if resp.Error != "" {
				return nil, &RemoteError{Event: event, Message: resp.Error}
			}
			return resp.Payload, nil
		case <-retry:
			c.log.Debug("redelivering request", "event", event, "id", req.ID)
			if err := c.send(ctx, req); err != nil && ctx.Err() == nil {
				c.log.Debug("could not redeliver request", "event", event, "err", err)
			}
		case <-c.closed:
			return nil, ErrChannelClosed
		case <-c.ctx.Done():
			// Port went away, no response can arrive.
			return nil, ErrChannelClosed
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s after %s", ErrCallTimeout, event, timeout)
			}
			return nil, ctx.Err()
		}
	}
}

// Close stops dispatching, closes the port and waits for running handlers.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancel()
		err = c.port.Close()
		c.wg.Wait()
	})
	return err
}

// Done is closed once the channel is closed or its port went away.
func (c *Channel) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Channel) send(ctx context.Context, msg Message) error {
	msg.Origin = c.opts.Origin
	return c.port.Send(ctx, msg)
}

func (c *Channel) acceptsOrigin(msg Message) bool {
	if c.opts.TargetOrigin == AnyOrigin {
		return true
	}
	origin := c.port.Origin()
	if origin == "" {
		origin = msg.Origin
	}
	return origin == c.opts.TargetOrigin
}

func (c *Channel) readLoop() {
	defer c.wg.Done()
	defer c.cancel()

	for {
		select {
		case <-c.closed:
			return
		case msg, ok := <-c.port.Receive():
			if !ok {
				c.connected.Store(false)
				return
			}
			if !c.acceptsOrigin(msg) {
				c.log.Warn("dropping message from unexpected origin",
					slog.String("origin", msg.Origin),
					slog.String("kind", string(msg.Kind)))
				continue
			}
			c.dispatch(msg)
		}
	}
}

func (c *Channel) dispatch(msg Message) {
	switch msg.Kind {
	case KindSyn:
		if err := c.send(c.ctx, Message{Kind: KindAck, ID: msg.ID}); err != nil {
			c.log.Debug("could not send ack", "err", err)
			return
		}
		signal(c.syns)
	case KindAck:
		signal(c.acks)
	case KindRequest:
		c.serve(msg)
	case KindResponse:
		c.mu.Lock()
		respCh, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()
		if !ok {
			c.log.Debug("dropping uncorrelated response", "id", msg.ID, "event", msg.Event)
			return
		}
		respCh <- msg
	default:
		c.log.Debug("dropping unknown message kind", "kind", msg.Kind)
	}
}

func (c *Channel) serve(req Message) {
	if cached, ok := c.responses.Get(req.ID); ok {
		if err := c.send(c.ctx, cached); err != nil {
			c.log.Debug("could not resend cached response", "id", req.ID, "err", err)
		}
		return
	}

	c.mu.Lock()
	fn, ok := c.handlers[req.Event]
	_, running := c.inflight[req.ID]
	if ok && !running {
		c.inflight[req.ID] = struct{}{}
	}
	c.mu.Unlock()

	if !ok {
		c.log.Debug("no handler registered", "event", req.Event)
		return
	}
	if running {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		resp := Message{Kind: KindResponse, ID: req.ID, Event: responseEventFor(req.Event)}
		result, err := fn(c.ctx, req.Payload)
		if err == nil {
			resp.Payload, err = json.Marshal(result)
		}
		if err != nil {
			resp.Payload = nil
			resp.Error = err.Error()
		}

		c.responses.Add(req.ID, resp)
		c.mu.Lock()
		delete(c.inflight, req.ID)
		c.mu.Unlock()

		if err := c.send(c.ctx, resp); err != nil {
			c.log.Debug("could not send response", "event", resp.Event, "err", err)
		}
	}()
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
