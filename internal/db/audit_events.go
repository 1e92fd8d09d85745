package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// AppendAuditEvent inserts one audit trail entry for a run.
func (db *DB) AppendAuditEvent(ctx context.Context, input AuditEventInput) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO audit_events (processing_id, event_type, event_status, step_name, detail, retry_count)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		input.ProcessingID, input.EventType, input.EventStatus, input.StepName, input.Detail, input.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// ListAuditEvents retrieves the audit trail for a run in insertion order.
func (db *DB) ListAuditEvents(ctx context.Context, processingID uuid.UUID) ([]AuditEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, processing_id, event_type, event_status, step_name, detail, retry_count, created_at
		 FROM audit_events
		 WHERE processing_id = $1
		 ORDER BY created_at, id`,
		processingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var event AuditEvent
		if err := rows.Scan(&event.ID, &event.ProcessingID, &event.EventType, &event.EventStatus,
			&event.StepName, &event.Detail, &event.RetryCount, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
