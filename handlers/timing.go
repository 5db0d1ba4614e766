package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ruteri/tee-secure-signer/messenger"
	"github.com/ruteri/tee-secure-signer/metrics"
)

// Timed wraps fn with elapsed-time logging and the handler duration metric.
func Timed(log *slog.Logger, m *metrics.Metrics, event string, fn messenger.HandlerFunc) messenger.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		start := time.Now()
		result, err := fn(ctx, payload)
		elapsed := time.Since(start)

		status := StatusSuccess
		if resp, ok := result.(*Response); err != nil || (ok && resp.Status == StatusError) {
			status = StatusError
		}
		m.ObserveHandler(event, status, elapsed)

		attrs := []any{
			slog.String("event", event),
			slog.String("status", status),
			slog.Duration("elapsed", elapsed),
		}
		if err != nil {
			log.Warn("handler failed", append(attrs, "err", err)...)
		} else {
			log.Debug("handler completed", attrs...)
		}
		return result, err
	}
}
