package main

import (
	"context"

	"github.com/MrEthical07/shopauth"
	"go.uber.org/zap"
)

// zapAuditSink writes audit events as structured log lines.
type zapAuditSink struct {
	logger *zap.Logger
}

func newZapAuditSink(logger *zap.Logger) *zapAuditSink {
	return &zapAuditSink{logger: logger.Named("audit")}
}

func (s *zapAuditSink) Emit(_ context.Context, event shopauth.AuditEvent) {
	fields := make([]zap.Field, 0, 6+len(event.Metadata))
	fields = append(fields,
		zap.String("event", event.EventType),
		zap.Bool("success", event.Success),
		zap.Time("at", event.Timestamp),
	)
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Metadata {
		fields = append(fields, zap.String("meta."+k, v))
	}

	if event.Success {
		s.logger.Info("audit event", fields...)
		return
	}
	s.logger.Warn("audit event", fields...)
}
