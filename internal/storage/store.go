// Package storage provides the namespaced artifact store for transcript,
// audio, and report files.
package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/convo-recap/internal/types"
)

// Locator identifies a stored artifact. Path is the store-relative key, not
// a browsable URL; clients reach bytes only through redeemed download tokens.
type Locator struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// Store is a disk-backed object store with deterministic keys of the form
// {account_id}/{file_type plural}/{conversation_id}.{ext}. The deterministic
// layout is what lets a later run overwrite the same path safely.
type Store struct {
	root   string
	secret []byte
}

// NewStore creates a store rooted at the given directory.
func NewStore(root string, signingSecret string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{root: root, secret: []byte(signingSecret)}, nil
}

// Key returns the deterministic storage key for an artifact.
func Key(accountID, conversationID string, fileType types.FileType) string {
	return fmt.Sprintf("%s/%s/%s.%s", accountID, fileType.Plural(), conversationID, fileType.Ext())
}

// Put writes an artifact, overwriting any previous bytes at the same key.
// The write goes through a temp file and rename so concurrent writers and
// readers never observe a partial file; the last writer's bytes win.
func (s *Store) Put(accountID, conversationID string, fileType types.FileType, data []byte) (Locator, error) {
	if accountID == "" || conversationID == "" {
		return Locator{}, fmt.Errorf("account_id and conversation_id are required")
	}
	if !fileType.Valid() {
		return Locator{}, fmt.Errorf("unknown file type: %s", fileType)
	}

	key := Key(accountID, conversationID, fileType)
	fullPath := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return Locator{}, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return Locator{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Locator{}, fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Locator{}, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return Locator{}, fmt.Errorf("failed to finalize artifact: %w", err)
	}

	sum := sha256.Sum256(data)
	return Locator{
		Path:      key,
		SizeBytes: int64(len(data)),
		Checksum:  hex.EncodeToString(sum[:]),
	}, nil
}

// Get reads the bytes for a store-relative key.
func (s *Store) Get(key string) ([]byte, error) {
	cleaned, err := s.cleanKey(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(cleaned)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Key: key}
		}
		return nil, fmt.Errorf("failed to read artifact %s: %w", key, err)
	}
	return data, nil
}

// cleanKey rejects keys that would escape the store root.
func (s *Store) cleanKey(key string) (string, error) {
	cleaned := filepath.ToSlash(filepath.Clean("/" + key))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid artifact key: %s", key)
	}
	return cleaned, nil
}

// PresignedLink returns a URL path with an expiry and HMAC signature over
// the key. The link proves the server issued it without any server-side
// state; single-use enforcement lives with download tokens, not here.
func (s *Store) PresignedLink(key string, ttl time.Duration) (string, error) {
	cleaned, err := s.cleanKey(key)
	if err != nil {
		return "", err
	}

	expires := time.Now().Add(ttl).Unix()
	sig := s.sign(cleaned, expires)
	return fmt.Sprintf("/artifacts/%s?expires=%d&sig=%s", cleaned, expires, sig), nil
}

// VerifyLink checks a presigned link's signature and expiry and returns the
// artifact key it grants.
func (s *Store) VerifyLink(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("malformed link: %w", err)
	}

	key := strings.TrimPrefix(parsed.Path, "/artifacts/")
	cleaned, err := s.cleanKey(key)
	if err != nil {
		return "", err
	}

	expires, err := strconv.ParseInt(parsed.Query().Get("expires"), 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed link expiry")
	}
	if time.Now().Unix() > expires {
		return "", fmt.Errorf("link expired")
	}

	expected := s.sign(cleaned, expires)
	if !hmac.Equal([]byte(expected), []byte(parsed.Query().Get("sig"))) {
		return "", fmt.Errorf("invalid link signature")
	}
	return cleaned, nil
}

func (s *Store) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// NotFoundError indicates no artifact exists at a key.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact not found: %s", e.Key)
}
