package db

import (
	"time"

	"github.com/google/uuid"
)

// Audit event type constants
const (
	EventStageStarted       = "stage_started"
	EventStageCompleted     = "stage_completed"
	EventStageFailed        = "stage_failed"
	EventStageRetried       = "stage_retried"
	EventRunCancelled       = "run_cancelled"
	EventNotificationFailed = "notification_failed"
)

// Audit event status constants
const (
	EventStatusOK        = "ok"
	EventStatusTransient = "transient_failure"
	EventStatusFatal     = "fatal_failure"
)

// AuditEvent is one append-only audit trail entry for a processing run.
// The pipeline only ever inserts these; nothing mutates or deletes them.
type AuditEvent struct {
	ID           uuid.UUID `json:"id"`
	ProcessingID uuid.UUID `json:"processing_id"`
	EventType    string    `json:"event_type"`
	EventStatus  string    `json:"event_status"`
	StepName     string    `json:"step_name"`
	Detail       string    `json:"detail,omitempty"`
	RetryCount   int       `json:"retry_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditEventInput represents input for appending an audit event.
type AuditEventInput struct {
	ProcessingID uuid.UUID
	EventType    string
	EventStatus  string
	StepName     string
	Detail       string
	RetryCount   int
}
