// Package tokens issues and redeems single-use, time-limited download tokens.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/convo-recap/internal/db"
	"github.com/jonathan/convo-recap/internal/types"
)

// DefaultTTL is the default token lifetime.
const DefaultTTL = 24 * time.Hour

// ErrInvalidOrExpired is returned for every failed redemption. Unknown,
// already-redeemed, and expired tokens are deliberately indistinguishable
// so a caller probing tokens learns nothing about which ones ever existed.
var ErrInvalidOrExpired = errors.New("invalid or expired download link")

// Store is the persistence surface the token service needs. *db.DB
// satisfies it.
type Store interface {
	InsertDownloadToken(ctx context.Context, token, conversationID, accountID string, fileType types.FileType, expiresAt time.Time) error
	RedeemDownloadToken(ctx context.Context, token string) (*db.DownloadToken, error)
	GetArtifact(ctx context.Context, conversationID string, fileType types.FileType) (*db.Artifact, error)
}

// Grant is the result of a successful redemption: which stored artifact the
// bearer may download, exactly once.
type Grant struct {
	ConversationID string
	AccountID      string
	FileType       types.FileType
	StoragePath    string
}

// Service issues and redeems download tokens backed by shared storage, so
// every server process agrees on a token's state.
type Service struct {
	store Store
	ttl   time.Duration
}

// NewService creates a token service. A non-positive ttl falls back to
// DefaultTTL.
func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, ttl: ttl}
}

// Issue mints a fresh token for one artifact of one conversation.
func (s *Service) Issue(ctx context.Context, conversationID, accountID string, fileType types.FileType) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(s.ttl)
	if err := s.store.InsertDownloadToken(ctx, token, conversationID, accountID, fileType, expiresAt); err != nil {
		return "", fmt.Errorf("failed to persist download token: %w", err)
	}
	return token, nil
}

// Redeem consumes a token and returns the grant it carried. The token is
// marked redeemed atomically in the store; of N concurrent redemptions of
// the same token, exactly one succeeds.
func (s *Service) Redeem(ctx context.Context, token string) (*Grant, error) {
	redeemed, err := s.store.RedeemDownloadToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem download token: %w", err)
	}
	if redeemed == nil {
		return nil, ErrInvalidOrExpired
	}

	artifact, err := s.store.GetArtifact(ctx, redeemed.ConversationID, redeemed.FileType)
	if err != nil {
		return nil, fmt.Errorf("failed to look up artifact for token: %w", err)
	}
	if artifact == nil {
		// The token outlived its artifact; treat it like any other dead token.
		return nil, ErrInvalidOrExpired
	}

	return &Grant{
		ConversationID: redeemed.ConversationID,
		AccountID:      redeemed.AccountID,
		FileType:       redeemed.FileType,
		StoragePath:    artifact.StoragePath,
	}, nil
}

// generateToken returns 32 bytes of cryptographic randomness, URL-safe
// encoded.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
