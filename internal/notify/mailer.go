// Package notify delivers completion emails with single-use download links.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout is the default timeout for a mail send request.
const DefaultTimeout = 30 * time.Second

// defaultBaseURL is the SendGrid v3 API endpoint.
const defaultBaseURL = "https://api.sendgrid.com"

// Mailer sends a single email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound email.
type Message struct {
	ToEmail  string
	Subject  string
	TextBody string
	HTMLBody string
}

// SendError represents a failed mail delivery attempt.
type SendError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *SendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mail send failed: %s: %v", e.Message, e.Cause)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("mail send failed: %s (HTTP %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("mail send failed: %s", e.Message)
}

func (e *SendError) Unwrap() error {
	return e.Cause
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	apiKey     string
	baseURL    string
	fromEmail  string
	fromName   string
	httpClient *http.Client
}

// NewSendGridMailer creates a mailer. baseURL is overridable for tests;
// empty means the real SendGrid endpoint.
func NewSendGridMailer(apiKey, baseURL, fromEmail, fromName string) (*SendGridMailer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("sendgrid API key is required")
	}
	if strings.TrimSpace(fromEmail) == "" {
		return nil, fmt.Errorf("from email is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &SendGridMailer{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		fromEmail:  fromEmail,
		fromName:   fromName,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// SendGrid v3 mail send wire types.
type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

// Send delivers one message via POST /v3/mail/send.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return &SendError{Message: "recipient email is required"}
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return &SendError{Message: "subject is required"}
	}

	contents := []mailContent{}
	if t := strings.TrimSpace(msg.TextBody); t != "" {
		contents = append(contents, mailContent{Type: "text/plain", Value: t})
	}
	if h := strings.TrimSpace(msg.HTMLBody); h != "" {
		contents = append(contents, mailContent{Type: "text/html", Value: h})
	}
	if len(contents) == 0 {
		return &SendError{Message: "message body is required"}
	}

	wire := mailSendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: msg.ToEmail}}}},
		From:             emailAddress{Email: m.fromEmail, Name: m.fromName},
		Subject:          msg.Subject,
		Content:          contents,
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return &SendError{Message: "failed to encode mail request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return &SendError{Message: "failed to create mail request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return &SendError{Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &SendError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(detail)),
		}
	}
	return nil
}
