package audit

import (
	"context"

	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/pkg/logger"
)

// LoggerSink writes audit events to the structured log. It is used when no broker is configured.
type LoggerSink struct {
	logger logger.Logger
}

var _ service.AuditSink = (*LoggerSink)(nil)

func NewLoggerSink(log logger.Logger) *LoggerSink {
	return &LoggerSink{logger: log.WithComponent("audit")}
}

func (s *LoggerSink) Publish(ctx context.Context, event *models.AuditEvent) error {
	s.logger.Info(ctx, "audit event",
		logger.String("event_id", event.EventID.String()),
		logger.String("event_type", string(event.EventType)),
		logger.String("username", event.Username),
		logger.String("decision", string(event.Decision)),
		logger.String("reason", event.Reason),
	)
	return nil
}
