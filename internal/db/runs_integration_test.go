//go:build integration
// +build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	run, err := db.RecordRun(ctx, RunInput{
		ConversationID: "conv_abc",
		AccountID:      "acc1",
		EmailID:        "u@x.com",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, run.Status)
	assert.Equal(t, 0, run.Progress)
	assert.Equal(t, "conv_abc", run.ConversationID)
	assert.NotZero(t, run.ProcessingID)
	assert.Nil(t, run.ProcessingCompletedAt)
}

func TestRecordRun_AppendsNewRowPerSubmission_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	input := RunInput{ConversationID: "conv_abc", AccountID: "acc1", EmailID: "u@x.com"}

	first, err := db.RecordRun(ctx, input)
	require.NoError(t, err)
	second, err := db.RecordRun(ctx, input)
	require.NoError(t, err)

	assert.NotEqual(t, first.ProcessingID, second.ProcessingID)

	fetched, err := db.GetRun(ctx, first.ProcessingID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, first.ProcessingID, fetched.ProcessingID)
}

func TestLatestWins_Dedup_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	// Two runs for the same conversation, one for another
	_, err := db.RecordRun(ctx, RunInput{ConversationID: "conv_abc", AccountID: "acc1", EmailID: "u@x.com"})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := db.RecordRun(ctx, RunInput{ConversationID: "conv_abc", AccountID: "acc1", EmailID: "u@x.com"})
	require.NoError(t, err)
	_, err = db.RecordRun(ctx, RunInput{ConversationID: "conv_def", AccountID: "acc1", EmailID: "u@x.com"})
	require.NoError(t, err)

	latest, err := db.GetLatestByConversationID(ctx, "conv_abc")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ProcessingID, latest.ProcessingID)

	byAccount, err := db.ListLatestByAccount(ctx, "acc1")
	require.NoError(t, err)
	assert.Len(t, byAccount, 2) // one row per conversation

	seen := map[string]int{}
	for _, run := range byAccount {
		seen[run.ConversationID]++
	}
	assert.Equal(t, 1, seen["conv_abc"])
	assert.Equal(t, 1, seen["conv_def"])

	byDate, err := db.ListLatestByDate(ctx, time.Now())
	require.NoError(t, err)
	assert.Len(t, byDate, 2)
}

func TestLatestWins_TieBreakOnProcessingID_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	// Force identical created_at values so only the tie-break decides.
	sharedTime := time.Now().UTC().Truncate(time.Second)
	var maxID string
	for _, id := range []string{"11111111-1111-1111-1111-111111111111", "ffffffff-ffff-ffff-ffff-ffffffffffff"} {
		_, err := db.pool.Exec(ctx,
			`INSERT INTO runs (processing_id, conversation_id, account_id, email_id, status, progress, current_step, created_at)
			 VALUES ($1, 'conv_tie', 'acc1', 'u@x.com', 'completed', 100, '', $2)`,
			id, sharedTime)
		require.NoError(t, err)
		if id > maxID {
			maxID = id
		}
	}

	latest, err := db.GetLatestByConversationID(ctx, "conv_tie")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, maxID, latest.ProcessingID.String())
}

func TestRunTerminalImmutability_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	run, err := db.RecordRun(ctx, RunInput{ConversationID: "conv_abc", AccountID: "acc1", EmailID: "u@x.com"})
	require.NoError(t, err)
	require.NoError(t, db.CompleteRun(ctx, run.ProcessingID))

	// Completed runs refuse further progress or failure updates.
	assert.Error(t, db.UpdateRunProgress(ctx, run.ProcessingID, StatusExtracting, 20, "extracting"))
	assert.Error(t, db.MarkRunFailed(ctx, run.ProcessingID, "extracting", "boom"))
	assert.Error(t, db.CompleteRun(ctx, run.ProcessingID))

	fetched, err := db.GetRun(ctx, run.ProcessingID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, fetched.Status)
	assert.Equal(t, 100, fetched.Progress)
}

func TestUpdateRunSummaryAndArtifacts_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	run, err := db.RecordRun(ctx, RunInput{ConversationID: "conv_abc", AccountID: "acc1", EmailID: "u@x.com"})
	require.NoError(t, err)

	transcriptURL := "acc1/transcripts/conv_abc.txt"
	require.NoError(t, db.UpdateRunArtifacts(ctx, run.ProcessingID, &transcriptURL, nil, nil))
	require.NoError(t, db.UpdateRunSummary(ctx, run.ProcessingID, "Billing", "positive",
		[]string{"refund requested"}, []string{"issue refund"}, "The caller asked for a refund."))

	fetched, err := db.GetRun(ctx, run.ProcessingID)
	require.NoError(t, err)
	require.NotNil(t, fetched.TranscriptURL)
	assert.Equal(t, transcriptURL, *fetched.TranscriptURL)
	assert.Nil(t, fetched.AudioURL)
	assert.Equal(t, []string{"refund requested"}, fetched.SummaryKeyPoints)
	assert.Equal(t, "Billing", *fetched.SummaryTopic)
}
