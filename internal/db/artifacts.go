package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/convo-recap/internal/types"
)

const artifactColumns = `id, conversation_id, account_id, file_type, storage_path, size_bytes, checksum, created_at, updated_at`

// UpsertArtifact records a stored file, overwriting any existing row for the
// same (conversation_id, file_type). This keeps exactly one current artifact
// per conversation and type regardless of how many runs have written it.
func (db *DB) UpsertArtifact(ctx context.Context, input ArtifactInput) (*Artifact, error) {
	var artifact Artifact
	err := db.pool.QueryRow(ctx,
		`INSERT INTO artifacts (conversation_id, account_id, file_type, storage_path, size_bytes, checksum)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (conversation_id, file_type) DO UPDATE
		 SET account_id = $2, storage_path = $4, size_bytes = $5, checksum = $6, updated_at = NOW()
		 RETURNING `+artifactColumns,
		input.ConversationID, input.AccountID, input.FileType, input.StoragePath, input.SizeBytes, input.Checksum,
	).Scan(&artifact.ID, &artifact.ConversationID, &artifact.AccountID, &artifact.FileType,
		&artifact.StoragePath, &artifact.SizeBytes, &artifact.Checksum, &artifact.CreatedAt, &artifact.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert artifact %s: %w", input.FileType, err)
	}
	return &artifact, nil
}

// GetArtifact retrieves the current artifact for a conversation and file
// type. Returns nil when no artifact has been stored.
func (db *DB) GetArtifact(ctx context.Context, conversationID string, fileType types.FileType) (*Artifact, error) {
	var artifact Artifact
	err := db.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM artifacts
		 WHERE conversation_id = $1 AND file_type = $2`,
		conversationID, fileType,
	).Scan(&artifact.ID, &artifact.ConversationID, &artifact.AccountID, &artifact.FileType,
		&artifact.StoragePath, &artifact.SizeBytes, &artifact.Checksum, &artifact.CreatedAt, &artifact.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return &artifact, nil
}

// ListArtifacts retrieves all current artifacts for a conversation.
func (db *DB) ListArtifacts(ctx context.Context, conversationID string) ([]Artifact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+artifactColumns+` FROM artifacts
		 WHERE conversation_id = $1
		 ORDER BY file_type`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var artifact Artifact
		if err := rows.Scan(&artifact.ID, &artifact.ConversationID, &artifact.AccountID, &artifact.FileType,
			&artifact.StoragePath, &artifact.SizeBytes, &artifact.Checksum, &artifact.CreatedAt, &artifact.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, rows.Err()
}
