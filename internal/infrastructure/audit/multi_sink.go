package audit

import (
	"context"
	"fmt"

	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/service"
)

// MultiSink fans an event out to several sinks. Every sink is attempted; the first error is returned.
type MultiSink struct {
	sinks []service.AuditSink
}

var _ service.AuditSink = (*MultiSink)(nil)

func NewMultiSink(sinks ...service.AuditSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Publish(ctx context.Context, event *models.AuditEvent) error {
	var first error
	for i, s := range m.sinks {
		if err := s.Publish(ctx, event); err != nil && first == nil {
			first = fmt.Errorf("audit sink %d: %w", i, err)
		}
	}
	return first
}
