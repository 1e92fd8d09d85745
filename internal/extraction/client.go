// Package extraction retrieves conversation transcripts and audio from the
// conversational AI provider's HTTP API.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonathan/convo-recap/internal/types"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// ErrNotFound indicates the provider has no conversation with the given ID.
// This is a permanent condition; retrying the same ID will not help.
var ErrNotFound = errors.New("conversation not found")

// Error represents a transient provider failure.
type Error struct {
	ConversationID string
	Message        string
	Cause          error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction error for %s: %s: %v", e.ConversationID, e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction error for %s: %s", e.ConversationID, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Client fetches conversation data from the provider API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a provider client. The API key is sent on every request
// via the xi-api-key header.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// conversationResponse mirrors the provider's conversation detail payload.
type conversationResponse struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
	Transcript     []struct {
		Role           string  `json:"role"`
		Message        string  `json:"message"`
		TimeInCallSecs float64 `json:"time_in_call_secs"`
	} `json:"transcript"`
}

// FetchTranscript retrieves the transcript for a conversation.
func (c *Client) FetchTranscript(ctx context.Context, conversationID string) (*types.Transcript, error) {
	body, err := c.get(ctx, conversationID, fmt.Sprintf("%s/v1/convai/conversations/%s", c.baseURL, conversationID))
	if err != nil {
		return nil, err
	}

	var payload conversationResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{
			ConversationID: conversationID,
			Message:        "failed to decode conversation response",
			Cause:          err,
		}
	}

	transcript := &types.Transcript{ConversationID: conversationID}
	for _, entry := range payload.Transcript {
		transcript.Turns = append(transcript.Turns, types.Turn{
			Speaker:   entry.Role,
			Text:      entry.Message,
			Timestamp: entry.TimeInCallSecs,
		})
	}
	return transcript, nil
}

// FetchAudio retrieves the conversation's audio recording. A conversation
// may legitimately have no audio; that surfaces as ErrNotFound and callers
// treat it as an absent artifact rather than a failure.
func (c *Client) FetchAudio(ctx context.Context, conversationID string) ([]byte, error) {
	return c.get(ctx, conversationID, fmt.Sprintf("%s/v1/convai/conversations/%s/audio", c.baseURL, conversationID))
}

func (c *Client) get(ctx context.Context, conversationID, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, &Error{
			ConversationID: conversationID,
			Message:        "failed to create request",
			Cause:          err,
		}
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{
			ConversationID: conversationID,
			Message:        "HTTP request failed",
			Cause:          err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, conversationID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			ConversationID: conversationID,
			Message:        fmt.Sprintf("provider returned HTTP %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{
			ConversationID: conversationID,
			Message:        "failed to read response body",
			Cause:          err,
		}
	}
	return body, nil
}
