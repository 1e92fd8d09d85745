//go:build integration
// +build integration

package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/convo-recap/internal/types"
)

func TestUpsertArtifact_OverwritesCurrentRow_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	input := ArtifactInput{
		ConversationID: "conv_abc",
		AccountID:      "acc1",
		FileType:       types.FileTypeTranscript,
		StoragePath:    "acc1/transcripts/conv_abc.txt",
		SizeBytes:      120,
		Checksum:       "aaa",
	}

	first, err := db.UpsertArtifact(ctx, input)
	require.NoError(t, err)

	input.SizeBytes = 240
	input.Checksum = "bbb"
	second, err := db.UpsertArtifact(ctx, input)
	require.NoError(t, err)

	// Same row, new content: no history accumulates.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(240), second.SizeBytes)
	assert.Equal(t, "bbb", second.Checksum)

	all, err := db.ListArtifacts(ctx, "conv_abc")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetArtifact_Missing_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db := setupTestDB(t)
	defer db.Close()

	artifact, err := db.GetArtifact(context.Background(), "conv_unknown", types.FileTypeReport)
	require.NoError(t, err)
	assert.Nil(t, artifact)
}
