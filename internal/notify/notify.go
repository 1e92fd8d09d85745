package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/convo-recap/internal/types"
)

// Notifier composes and sends the completion email for a processed
// conversation. Each artifact gets its own single-use link; links expire,
// and the email says so.
type Notifier struct {
	mailer      Mailer
	linkBaseURL string
	maxRetries  int
	retryDelay  time.Duration
	linkTTL     time.Duration
}

// NewNotifier creates a Notifier. linkBaseURL is the public base for
// download links, e.g. "https://recap.example.com".
func NewNotifier(mailer Mailer, linkBaseURL string, linkTTL time.Duration) *Notifier {
	return &Notifier{
		mailer:      mailer,
		linkBaseURL: strings.TrimRight(linkBaseURL, "/"),
		maxRetries:  3,
		retryDelay:  2 * time.Second,
		linkTTL:     linkTTL,
	}
}

var fileTypeLabels = map[types.FileType]string{
	types.FileTypeTranscript: "Transcript",
	types.FileTypeAudio:      "Audio recording",
	types.FileTypeReport:     "PDF report",
}

// linkOrder fixes the presentation order in the email.
var linkOrder = []types.FileType{types.FileTypeReport, types.FileTypeTranscript, types.FileTypeAudio}

// Notify sends the completion email. tokensByType maps each available
// artifact to its download token; absent artifacts (commonly audio) are
// simply omitted from the email. Delivery is retried a bounded number of
// times before the error is returned.
func (n *Notifier) Notify(ctx context.Context, emailID, conversationID string, tokensByType map[types.FileType]string) error {
	if len(tokensByType) == 0 {
		return fmt.Errorf("no download tokens to send for %s", conversationID)
	}

	msg := Message{
		ToEmail:  emailID,
		Subject:  fmt.Sprintf("Your conversation report is ready (%s)", conversationID),
		TextBody: n.buildTextBody(conversationID, tokensByType),
		HTMLBody: n.buildHTMLBody(conversationID, tokensByType),
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(n.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = n.mailer.Send(ctx, msg); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("notification failed after %d attempts: %w", n.maxRetries+1, lastErr)
}

// DownloadURL builds the public URL for a token.
func (n *Notifier) DownloadURL(token string) string {
	return fmt.Sprintf("%s/download/%s", n.linkBaseURL, token)
}

func (n *Notifier) buildTextBody(conversationID string, tokensByType map[types.FileType]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Processing for conversation %s has finished.\n\n", conversationID)
	sb.WriteString("Your files are ready to download:\n\n")
	for _, ft := range linkOrder {
		token, ok := tokensByType[ft]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "  %s: %s\n", fileTypeLabels[ft], n.DownloadURL(token))
	}
	fmt.Fprintf(&sb, "\nEach link works once and expires after %s.\n", formatTTL(n.linkTTL))
	return sb.String()
}

func (n *Notifier) buildHTMLBody(conversationID string, tokensByType map[types.FileType]string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	fmt.Fprintf(&sb, "<p>Processing for conversation <strong>%s</strong> has finished.</p>", conversationID)
	sb.WriteString("<p>Your files are ready to download:</p><ul>")
	for _, ft := range linkOrder {
		token, ok := tokensByType[ft]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, `<li><a href="%s">%s</a></li>`, n.DownloadURL(token), fileTypeLabels[ft])
	}
	sb.WriteString("</ul>")
	fmt.Fprintf(&sb, "<p>Each link works once and expires after %s.</p>", formatTTL(n.linkTTL))
	sb.WriteString("</body></html>")
	return sb.String()
}

func formatTTL(ttl time.Duration) string {
	if hours := int(ttl.Hours()); hours >= 1 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return ttl.String()
}
