package messenger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketPort carries frames as JSON text messages over a websocket.
type WebSocketPort struct {
	conn   *websocket.Conn
	origin string
	log    *slog.Logger

	writeMu   sync.Mutex
	out       chan Message
	done      chan struct{}
	closeOnce sync.Once
}

var _ Port = (*WebSocketPort)(nil)

// NewWebSocketPort wraps an established connection and starts reading from
// it. origin is the peer origin vouched for by the upgrade (the Origin request
// header on the server side); pass "" on the dialing side.
func NewWebSocketPort(conn *websocket.Conn, origin string, log *slog.Logger) *WebSocketPort {
	p := &WebSocketPort{
		conn:   conn,
		origin: origin,
		log:    log,
		out:    make(chan Message, pipeBuffer),
		done:   make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *WebSocketPort) readLoop() {
	defer close(p.out)
	for {
		var msg Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, websocket.ErrCloseSent) {
				p.log.Debug("websocket read ended", "err", err)
			}
			return
		}
		select {
		case p.out <- msg:
		case <-p.done:
			return
		}
	}
}

func (p *WebSocketPort) Send(ctx context.Context, msg Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := p.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := p.conn.WriteJSON(msg); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrPortClosed
		}
		return err
	}
	return nil
}

func (p *WebSocketPort) Receive() <-chan Message {
	return p.out
}

func (p *WebSocketPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		p.writeMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		p.writeMu.Unlock()
		err = p.conn.Close()
	})
	return err
}

func (p *WebSocketPort) Origin() string {
	return p.origin
}
