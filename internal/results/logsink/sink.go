// Package logsink emits structured logs for each result record.
package logsink

import (
	"context"

	"go.uber.org/zap"

	"github.com/crawlkit/fetchd/internal/fetch"
)

// Sink logs every delivered record. Useful in development or audits where a
// durable downstream is unavailable.
type Sink struct {
	logger *zap.Logger
}

// New wires a zap logger to the sink interface.
func New(logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{logger: logger}
}

// Deliver logs the record using structured fields.
func (s *Sink) Deliver(_ context.Context, rec fetch.ResultRecord) error {
	fields := []zap.Field{
		zap.String("request_id", rec.State.RequestID),
		zap.String("domain", rec.State.DomainKey),
		zap.String("url", rec.State.URL),
		zap.String("status", string(rec.State.Status)),
		zap.Time("timestamp", rec.State.Timestamp),
	}
	if !rec.State.RetryAt.IsZero() {
		fields = append(fields, zap.Time("retry_at", rec.State.RetryAt))
	}
	if rec.Payload != nil {
		fields = append(fields, zap.Int("bytes", len(rec.Payload.Body)))
	}
	if rec.PayloadURI != "" {
		fields = append(fields, zap.String("payload_uri", rec.PayloadURI))
	}
	s.logger.Info("fetch result", fields...)
	return nil
}
