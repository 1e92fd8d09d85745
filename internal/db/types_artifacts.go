package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/convo-recap/internal/types"
)

// Artifact is the metadata row for one stored file. At most one row exists
// per (conversation_id, file_type); a later successful run overwrites the
// row's path and checksum rather than adding history.
type Artifact struct {
	ID             uuid.UUID      `json:"id"`
	ConversationID string         `json:"conversation_id"`
	AccountID      string         `json:"account_id"`
	FileType       types.FileType `json:"file_type"`
	StoragePath    string         `json:"storage_path"`
	SizeBytes      int64          `json:"size_bytes"`
	Checksum       string         `json:"checksum"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ArtifactInput represents input for recording a stored file.
type ArtifactInput struct {
	ConversationID string
	AccountID      string
	FileType       types.FileType
	StoragePath    string
	SizeBytes      int64
	Checksum       string
}
