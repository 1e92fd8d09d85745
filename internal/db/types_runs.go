package db

import (
	"time"

	"github.com/google/uuid"
)

// Run status constants. A run moves forward through the processing statuses
// in order and never regresses; completed and failed are terminal.
const (
	StatusPending          = "pending"
	StatusExtracting       = "extracting"
	StatusStoring          = "storing"
	StatusSummarizing      = "summarizing"
	StatusGeneratingReport = "generating_report"
	StatusSendingEmail     = "sending_email"
	StatusCompleted        = "completed"
	StatusFailed           = "failed"
)

// StatusOrder lists the non-failed statuses in the order a run passes
// through them. Used to verify monotonic progression.
var StatusOrder = []string{
	StatusPending,
	StatusExtracting,
	StatusStoring,
	StatusSummarizing,
	StatusGeneratingReport,
	StatusSendingEmail,
	StatusCompleted,
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Run represents one processing attempt for a conversation. Rows are
// append-only across attempts: re-submitting a conversation creates a new
// row with a new processing ID, and reads reduce to the latest row per
// conversation.
type Run struct {
	ProcessingID   uuid.UUID `json:"processing_id"`
	ConversationID string    `json:"conversation_id"`
	AccountID      string    `json:"account_id"`
	EmailID        string    `json:"email_id"`

	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	CurrentStep  string  `json:"current_step"`
	ErrorMessage *string `json:"error_message,omitempty"`

	CreatedAt             time.Time  `json:"created_at"`
	ProcessingStartedAt   *time.Time `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `json:"processing_completed_at,omitempty"`

	TranscriptURL *string `json:"transcript_url,omitempty"`
	AudioURL      *string `json:"audio_url,omitempty"`
	ReportURL     *string `json:"report_url,omitempty"`

	SummaryTopic       *string  `json:"summary_topic,omitempty"`
	SummarySentiment   *string  `json:"summary_sentiment,omitempty"`
	SummaryKeyPoints   []string `json:"summary_key_points,omitempty"`
	SummaryActionItems []string `json:"summary_action_items,omitempty"`
	SummaryNarrative   *string  `json:"summary_narrative,omitempty"`
}

// RunInput represents input for creating a new run row.
type RunInput struct {
	ConversationID string
	AccountID      string
	EmailID        string
}
