package db

import (
	"time"

	"github.com/jonathan/convo-recap/internal/types"
)

// DownloadToken is one single-use download credential. Token state lives in
// this table precisely so every process serving redemption requests sees the
// same view; per-process caches of token state are a correctness bug here,
// not an optimization.
type DownloadToken struct {
	Token          string         `json:"token"`
	ConversationID string         `json:"conversation_id"`
	AccountID      string         `json:"account_id"`
	FileType       types.FileType `json:"file_type"`
	IssuedAt       time.Time      `json:"issued_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	Redeemed       bool           `json:"redeemed"`
}
