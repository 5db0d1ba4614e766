package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ruteri/tee-secure-signer/common"
	"github.com/ruteri/tee-secure-signer/handlers"
	"github.com/ruteri/tee-secure-signer/messenger"
	"github.com/ruteri/tee-secure-signer/metrics"
	"go.uber.org/atomic"
)

// HTTPServerConfig contains all configuration parameters for the HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address and port the HTTP server will listen on.
	ListenAddr string

	// MetricsAddr is the address and port for the metrics server.
	// If empty, metrics server will not be started.
	MetricsAddr string

	// EnablePprof enables the pprof debugging API when true.
	EnablePprof bool

	// Log is the structured logger for server operations.
	Log *slog.Logger

	// Channel configures every messenger session.
	Channel messenger.Options

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

type Server struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	srv        *http.Server
	metricsSrv *metrics.MetricsServer
	handler    *handlers.Handler
	sessions   *sessions
}

func New(cfg *HTTPServerConfig, handler *handlers.Handler, m *metrics.Metrics) (srv *Server, err error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	srv = &Server{
		cfg:        cfg,
		log:        cfg.Log,
		metricsSrv: metrics.NewMetricsServer(cfg.MetricsAddr, m),
		handler:    handler,
		sessions:   newSessions(),
	}
	srv.isReady.Store(true)

	// WriteTimeout is not applied: it would cut long-lived websocket sessions.
	srv.srv = &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     srv.getRouter(),
		ReadTimeout: cfg.ReadTimeout,
	}

	return srv, nil
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()

	// The access log middleware does not support hijacking, sessions log on their own.
	mux.Get("/frame", srv.handleFrame)

	// Health and diagnostic endpoints
	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)
	mux.With(srv.httpLogger).Get("/info", srv.handleInfo)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, "alive")
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		writeStatus(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		writeStatus(w, http.StatusOK, "already draining")
		return
	}

	srv.log.Info("Server marked as not ready")
	writeStatus(w, http.StatusOK, "draining")
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		writeStatus(w, http.StatusOK, "already ready")
		return
	}

	srv.log.Info("Server marked as ready")
	writeStatus(w, http.StatusOK, "ready")
}

func (srv *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"version":  common.Version,
		"sessions": srv.sessions.count(),
		"ready":    srv.isReady.Load(),
	})
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// Handler returns the router, for tests and embedding.
func (srv *Server) Handler() http.Handler {
	return srv.srv.Handler
}

func (srv *Server) RunInBackground() {
	// metrics
	if srv.cfg.MetricsAddr != "" {
		go func() {
			srv.log.With("metricsAddress", srv.cfg.MetricsAddr).Info("Starting metrics server")
			err := srv.metricsSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error("HTTP server failed", "err", err)
			}
		}()
	}

	// api
	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown drains, stops accepting connections and closes open sessions.
func (srv *Server) Shutdown() {
	if srv.isReady.Swap(false) && srv.cfg.DrainDuration > 0 {
		srv.log.Info("Draining before shutdown", "duration", srv.cfg.DrainDuration)
		time.Sleep(srv.cfg.DrainDuration)
	}

	// api
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}

	// sessions are hijacked connections and not covered by http.Server.Shutdown
	srv.sessions.closeAll(ctx)

	// metrics
	if len(srv.cfg.MetricsAddr) != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
		defer cancel()

		if err := srv.metricsSrv.Shutdown(ctx); err != nil {
			srv.log.Error("Graceful metrics server shutdown failed", "err", err)
		} else {
			srv.log.Info("Metrics server gracefully stopped")
		}
	}
}
