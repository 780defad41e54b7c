package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/turtacn/mfagate/pkg/constants"
)

// Decision is the outcome of a single verification attempt.
type Decision string

const (
	DecisionAccept        Decision = "accept"
	DecisionReject        Decision = "reject"
	DecisionNeedMoreInput Decision = "need-more-input"
)

// AuditEvent represents a single audit trail event for a verification attempt or an admin action.
type AuditEvent struct {
	EventID   uuid.UUID                `json:"event_id"`
	EventType constants.AuditEventType `json:"event_type"`
	Username  string                   `json:"username"`
	Decision  Decision                 `json:"decision,omitempty"`
	Reason    string                   `json:"reason,omitempty"`
	RequestID string                   `json:"request_id,omitempty"`
	TraceID   string                   `json:"trace_id,omitempty"`
	Metadata  json.RawMessage          `json:"metadata,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// NewAuditEvent creates a new audit event.
func NewAuditEvent(eventType constants.AuditEventType, username string, decision Decision, reason string) *AuditEvent {
	return &AuditEvent{
		EventID:   uuid.New(),
		EventType: eventType,
		Username:  username,
		Decision:  decision,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// WithContextInfo sets request correlation ids.
func (a *AuditEvent) WithContextInfo(requestID, traceID string) *AuditEvent {
	a.RequestID = requestID
	a.TraceID = traceID
	return a
}

// WithMetadata sets JSON metadata for the event.
func (a *AuditEvent) WithMetadata(data interface{}) *AuditEvent {
	jsonData, err := json.Marshal(data)
	if err == nil {
		a.Metadata = jsonData
	}
	return a
}

//Personal.AI order the ending
