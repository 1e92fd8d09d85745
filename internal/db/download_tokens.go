package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/convo-recap/internal/types"
)

// InsertDownloadToken stores a freshly issued token.
func (db *DB) InsertDownloadToken(ctx context.Context, token, conversationID, accountID string, fileType types.FileType, expiresAt time.Time) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO download_tokens (token, conversation_id, account_id, file_type, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		token, conversationID, accountID, fileType, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert download token: %w", err)
	}
	return nil
}

// RedeemDownloadToken atomically checks and consumes a token. The single
// UPDATE performs existence, expiry, and unredeemed checks together with the
// redeemed mark, so two concurrent redemptions of the same token can never
// both succeed, regardless of which process instance serves each request.
// Returns nil when the token is unknown, expired, or already redeemed; the
// caller must not distinguish those cases.
func (db *DB) RedeemDownloadToken(ctx context.Context, token string) (*DownloadToken, error) {
	var dt DownloadToken
	err := db.pool.QueryRow(ctx,
		`UPDATE download_tokens
		 SET redeemed = TRUE
		 WHERE token = $1 AND NOT redeemed AND expires_at > NOW()
		 RETURNING token, conversation_id, account_id, file_type, issued_at, expires_at, redeemed`,
		token,
	).Scan(&dt.Token, &dt.ConversationID, &dt.AccountID, &dt.FileType, &dt.IssuedAt, &dt.ExpiresAt, &dt.Redeemed)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to redeem download token: %w", err)
	}
	return &dt, nil
}

// DeleteExpiredTokens removes tokens past their expiry. Redeemed rows are
// kept until expiry so a replayed token stays invalid rather than unknown.
func (db *DB) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	result, err := db.pool.Exec(ctx, `DELETE FROM download_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
