package audit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/turtacn/mfagate/internal/domain/models"
	"github.com/turtacn/mfagate/internal/domain/service"
)

// auditRecord is the persisted row of an audit event.
type auditRecord struct {
	EventID   string    `gorm:"primaryKey;size:36"`
	EventType string    `gorm:"size:64;index"`
	Username  string    `gorm:"size:255;index"`
	Decision  string    `gorm:"size:32"`
	Reason    string    `gorm:"size:255"`
	RequestID string    `gorm:"size:64"`
	TraceID   string    `gorm:"size:64"`
	Metadata  string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"index"`
}

func (auditRecord) TableName() string {
	return "mfa_audit_events"
}

// GormSink stores audit events in a relational database.
type GormSink struct {
	db *gorm.DB
}

var _ service.AuditSink = (*GormSink)(nil)

// NewGormSink creates a GORM-backed AuditSink.
func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

// AutoMigrate creates the audit table.
func (s *GormSink) AutoMigrate() error {
	return s.db.AutoMigrate(&auditRecord{})
}

// Publish saves an AuditEvent to the database.
func (s *GormSink) Publish(ctx context.Context, event *models.AuditEvent) error {
	rec := &auditRecord{
		EventID:   event.EventID.String(),
		EventType: string(event.EventType),
		Username:  event.Username,
		Decision:  string(event.Decision),
		Reason:    event.Reason,
		RequestID: event.RequestID,
		TraceID:   event.TraceID,
		Metadata:  string(event.Metadata),
		Timestamp: event.Timestamp,
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// CountByUsername returns the number of stored events for username.
func (s *GormSink) CountByUsername(ctx context.Context, username string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&auditRecord{}).Where("username = ?", username).Count(&n).Error
	return n, err
}
