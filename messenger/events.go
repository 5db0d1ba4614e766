package messenger

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.uber.org/atomic"
)

var (
	ErrNotInitialized = errors.New("messenger not initialized")
	ErrNotConnected   = errors.New("messenger not connected")
)

// State of an EventsService.
type State int32

const (
	StateUninitialized State = iota
	StateHandshaking
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// EventsService owns the signer side of a Channel.
type EventsService struct {
	port Port
	opts Options
	log  *slog.Logger

	initMu sync.Mutex
	state  *atomic.Int32

	mu      sync.Mutex
	channel *Channel
	closed  bool
}

func NewEventsService(port Port, opts Options, log *slog.Logger) *EventsService {
	return &EventsService{
		port:  port,
		opts:  opts,
		log:   log,
		state: atomic.NewInt32(int32(StateUninitialized)),
	}
}

// Init creates the channel and performs the handshake. Calling it again once
// connected is a no-op. A failed handshake leaves the service handshaking so
// that Init can be retried over the same channel.
func (s *EventsService) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.State() == StateConnected {
		s.log.Info("messenger already connected")
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrChannelClosed
	}
	if s.channel == nil {
		s.channel = NewChannel(s.port, s.opts, s.log)
	}
	ch := s.channel
	s.mu.Unlock()

	s.state.Store(int32(StateHandshaking))
	if err := ch.Connect(ctx); err != nil {
		return err
	}

	s.state.Store(int32(StateConnected))
	s.log.Info("messenger connected", "targetOrigin", ch.opts.TargetOrigin)
	return nil
}

func (s *EventsService) State() State {
	return State(s.state.Load())
}

// Messenger returns the connected channel.
func (s *EventsService) Messenger() (*Channel, error) {
	switch s.State() {
	case StateUninitialized:
		return nil, ErrNotInitialized
	case StateConnected:
		ch := s.current()
		if ch == nil || !ch.Connected() {
			return nil, ErrNotConnected
		}
		return ch, nil
	default:
		return nil, ErrNotConnected
	}
}

// Done is closed when the underlying channel stops. It is nil before Init has
// created the channel.
func (s *EventsService) Done() <-chan struct{} {
	if ch := s.current(); ch != nil {
		return ch.Done()
	}
	return nil
}

// Close closes the channel and its port, aborting a handshake in progress.
// The service cannot be reused.
func (s *EventsService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ch := s.channel
	s.mu.Unlock()

	s.state.Store(int32(StateUninitialized))
	if ch == nil {
		return s.port.Close()
	}
	return ch.Close()
}

func (s *EventsService) current() *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}
