package messenger

import (
	"context"
	"errors"
	"sync"
)

var ErrPortClosed = errors.New("port closed")

// Port is a bidirectional stream of frames. Receive returns a channel that is
// closed once the port is closed from either side.
type Port interface {
	Send(ctx context.Context, msg Message) error
	Receive() <-chan Message
	Close() error
	// Origin returns the peer's origin as established by the transport, or ""
	// when the transport cannot vouch for it.
	Origin() string
}

const pipeBuffer = 64

type pipeEnd struct {
	in   chan Message
	out  chan Message
	peer *pipeEnd

	done      chan struct{}
	closeOnce *sync.Once
}

// Pipe returns two connected in-memory ports. Closing either end closes both.
func Pipe() (Port, Port) {
	done := make(chan struct{})
	once := &sync.Once{}

	a := &pipeEnd{in: make(chan Message, pipeBuffer), out: make(chan Message), done: done, closeOnce: once}
	b := &pipeEnd{in: make(chan Message, pipeBuffer), out: make(chan Message), done: done, closeOnce: once}
	a.peer, b.peer = b, a

	go a.forward()
	go b.forward()
	return a, b
}

func (p *pipeEnd) forward() {
	defer close(p.out)
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.in:
			select {
			case p.out <- msg:
			case <-p.done:
				return
			}
		}
	}
}

func (p *pipeEnd) Send(ctx context.Context, msg Message) error {
	select {
	case <-p.done:
		return ErrPortClosed
	default:
	}

	select {
	case p.peer.in <- msg:
		return nil
	case <-p.done:
		return ErrPortClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive() <-chan Message {
	return p.out
}

func (p *pipeEnd) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

func (p *pipeEnd) Origin() string {
	return ""
}
