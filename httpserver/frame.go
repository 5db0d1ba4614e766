package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ruteri/tee-secure-signer/messenger"
)

func (srv *Server) checkOrigin(r *http.Request) bool {
	target := srv.cfg.Channel.TargetOrigin
	if target == "" || target == messenger.AnyOrigin {
		return true
	}
	return r.Header.Get("Origin") == target
}

// handleFrame upgrades to a websocket and serves one messenger session.
func (srv *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		http.Error(w, "server is draining", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     srv.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Warn("Websocket upgrade failed", "origin", r.Header.Get("Origin"), "err", err)
		return
	}

	origin := r.Header.Get("Origin")
	log := srv.log.With(slog.String("session", uuid.NewString()), slog.String("origin", origin))

	events := messenger.NewEventsService(messenger.NewWebSocketPort(conn, origin, log), srv.cfg.Channel, log)
	srv.sessions.add(events)
	defer srv.sessions.remove(events)
	defer events.Close()

	log.Info("Session opened", "remoteAddr", r.RemoteAddr)
	srv.serveSession(r.Context(), events, log)
	log.Info("Session closed")
}

func (srv *Server) serveSession(ctx context.Context, events *messenger.EventsService, log *slog.Logger) {
	if err := events.Init(ctx); err != nil {
		log.Warn("Handshake failed", "err", err)
		return
	}

	ch, err := events.Messenger()
	if err != nil {
		log.Error("Messenger unavailable after handshake", "err", err)
		return
	}
	srv.handler.Register(ch)

	select {
	case <-events.Done():
	case <-ctx.Done():
	}
}

// sessions tracks open messenger sessions so they can be closed on shutdown.
type sessions struct {
	mu     sync.Mutex
	active map[*messenger.EventsService]struct{}
	wg     sync.WaitGroup
}

func newSessions() *sessions {
	return &sessions{active: make(map[*messenger.EventsService]struct{})}
}

func (s *sessions) add(e *messenger.EventsService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[e] = struct{}{}
	s.wg.Add(1)
}

func (s *sessions) remove(e *messenger.EventsService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.active[e]; found {
		delete(s.active, e)
		s.wg.Done()
	}
}

func (s *sessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// closeAll closes every session and waits for their handlers to return or ctx to expire.
func (s *sessions) closeAll(ctx context.Context) {
	s.mu.Lock()
	open := make([]*messenger.EventsService, 0, len(s.active))
	for e := range s.active {
		open = append(open, e)
	}
	s.mu.Unlock()

	for _, e := range open {
		e.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
