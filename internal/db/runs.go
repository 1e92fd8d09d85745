package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// runColumns is the column list shared by every run query.
const runColumns = `processing_id, conversation_id, account_id, email_id,
	status, progress, current_step, error_message,
	created_at, processing_started_at, processing_completed_at,
	transcript_url, audio_url, report_url,
	summary_topic, summary_sentiment, summary_key_points, summary_action_items, summary_narrative`

// latestRunsCTE reduces the append-only runs table to one row per
// conversation: the row with the greatest created_at, tie-broken by the
// lexicographically greater processing_id so the result is deterministic.
const latestRunsCTE = `SELECT DISTINCT ON (conversation_id) ` + runColumns + `
	FROM runs
	ORDER BY conversation_id, created_at DESC, processing_id::text DESC`

// scanRun scans one runs row, decoding the JSONB summary list columns.
func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	var keyPointsJSON, actionItemsJSON []byte

	err := row.Scan(&run.ProcessingID, &run.ConversationID, &run.AccountID, &run.EmailID,
		&run.Status, &run.Progress, &run.CurrentStep, &run.ErrorMessage,
		&run.CreatedAt, &run.ProcessingStartedAt, &run.ProcessingCompletedAt,
		&run.TranscriptURL, &run.AudioURL, &run.ReportURL,
		&run.SummaryTopic, &run.SummarySentiment, &keyPointsJSON, &actionItemsJSON, &run.SummaryNarrative)
	if err != nil {
		return nil, err
	}

	if keyPointsJSON != nil {
		_ = json.Unmarshal(keyPointsJSON, &run.SummaryKeyPoints)
	}
	if actionItemsJSON != nil {
		_ = json.Unmarshal(actionItemsJSON, &run.SummaryActionItems)
	}

	return &run, nil
}

// RecordRun appends a new run row in status pending and returns it.
// It never updates an existing row: repeated submissions for the same
// conversation each get their own row and processing ID.
func (db *DB) RecordRun(ctx context.Context, input RunInput) (*Run, error) {
	row := db.pool.QueryRow(ctx,
		`INSERT INTO runs (conversation_id, account_id, email_id, status, progress, current_step)
		 VALUES ($1, $2, $3, $4, 0, '')
		 RETURNING `+runColumns,
		input.ConversationID, input.AccountID, input.EmailID, StatusPending,
	)

	run, err := scanRun(row)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by processing ID. Returns nil when no such run exists.
func (db *DB) GetRun(ctx context.Context, processingID uuid.UUID) (*Run, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE processing_id = $1`,
		processingID,
	)

	run, err := scanRun(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// UpdateRunProgress advances a run to a new status, progress value, and
// current step. The WHERE clause refuses to touch terminal rows, so a
// completed or failed run stays immutable.
func (db *DB) UpdateRunProgress(ctx context.Context, processingID uuid.UUID, status string, progress int, currentStep string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = $1, progress = $2, current_step = $3,
		     processing_started_at = COALESCE(processing_started_at, NOW())
		 WHERE processing_id = $4 AND status NOT IN ($5, $6)`,
		status, progress, currentStep, processingID, StatusCompleted, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to update run progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found or already terminal: %s", processingID)
	}
	return nil
}

// UpdateRunArtifacts records artifact locators on a run as they become
// available. Nil arguments leave the existing value in place.
func (db *DB) UpdateRunArtifacts(ctx context.Context, processingID uuid.UUID, transcriptURL, audioURL, reportURL *string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET transcript_url = COALESCE($1, transcript_url),
		     audio_url = COALESCE($2, audio_url),
		     report_url = COALESCE($3, report_url)
		 WHERE processing_id = $4 AND status NOT IN ($5, $6)`,
		transcriptURL, audioURL, reportURL, processingID, StatusCompleted, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to update run artifacts: %w", err)
	}
	return nil
}

// UpdateRunSummary records the structured summary fields on a run.
func (db *DB) UpdateRunSummary(ctx context.Context, processingID uuid.UUID, topic, sentiment string, keyPoints, actionItems []string, narrative string) error {
	keyPointsJSON, err := json.Marshal(keyPoints)
	if err != nil {
		return fmt.Errorf("failed to marshal key points: %w", err)
	}
	actionItemsJSON, err := json.Marshal(actionItems)
	if err != nil {
		return fmt.Errorf("failed to marshal action items: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`UPDATE runs
		 SET summary_topic = $1, summary_sentiment = $2, summary_key_points = $3,
		     summary_action_items = $4, summary_narrative = $5
		 WHERE processing_id = $6 AND status NOT IN ($7, $8)`,
		topic, sentiment, keyPointsJSON, actionItemsJSON, narrative,
		processingID, StatusCompleted, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to update run summary: %w", err)
	}
	return nil
}

// CompleteRun moves a run to the completed terminal state.
func (db *DB) CompleteRun(ctx context.Context, processingID uuid.UUID) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = $1, progress = 100, processing_completed_at = NOW()
		 WHERE processing_id = $2 AND status NOT IN ($1, $3)`,
		StatusCompleted, processingID, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found or already terminal: %s", processingID)
	}
	return nil
}

// MarkRunFailed moves a run to the failed terminal state, recording the
// failing step and the last error message.
func (db *DB) MarkRunFailed(ctx context.Context, processingID uuid.UUID, step, errorMessage string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = $1, current_step = $2, error_message = $3, processing_completed_at = NOW()
		 WHERE processing_id = $4 AND status NOT IN ($1, $5)`,
		StatusFailed, step, errorMessage, processingID, StatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found or already terminal: %s", processingID)
	}
	return nil
}

// GetLatestByConversationID retrieves the latest-wins run for one
// conversation. Returns nil when the conversation has never been processed.
func (db *DB) GetLatestByConversationID(ctx context.Context, conversationID string) (*Run, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC, processing_id::text DESC
		 LIMIT 1`,
		conversationID,
	)

	run, err := scanRun(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListLatestByAccount returns one run per distinct conversation for an
// account: the latest-wins row, newest conversations first.
func (db *DB) ListLatestByAccount(ctx context.Context, accountID string) ([]Run, error) {
	rows, err := db.pool.Query(ctx,
		`WITH latest AS (`+latestRunsCTE+`)
		 SELECT `+runColumns+` FROM latest
		 WHERE account_id = $1
		 ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs by account: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// ListLatestByDate returns the latest-wins run per conversation created on
// the given calendar day, grouped by account.
func (db *DB) ListLatestByDate(ctx context.Context, day time.Time) ([]Run, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := db.pool.Query(ctx,
		`WITH latest AS (`+latestRunsCTE+`)
		 SELECT `+runColumns+` FROM latest
		 WHERE created_at >= $1 AND created_at < $2
		 ORDER BY account_id, created_at DESC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs by date: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// collectRuns drains a runs result set.
func collectRuns(rows pgx.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
