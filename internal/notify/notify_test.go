package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/convo-recap/internal/types"
)

// fakeMailer records sends and fails the first failCount attempts.
type fakeMailer struct {
	failCount int
	sent      []Message
}

func (f *fakeMailer) Send(ctx context.Context, msg Message) error {
	if f.failCount > 0 {
		f.failCount--
		return &SendError{StatusCode: 503, Message: "upstream busy"}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestNotifier(mailer Mailer) *Notifier {
	n := NewNotifier(mailer, "https://recap.example.com/", 24*time.Hour)
	n.retryDelay = time.Millisecond
	return n
}

func TestNotify(t *testing.T) {
	mailer := &fakeMailer{}
	n := newTestNotifier(mailer)

	err := n.Notify(context.Background(), "u@x.com", "conv_abc", map[types.FileType]string{
		types.FileTypeTranscript: "tok-t",
		types.FileTypeAudio:      "tok-a",
		types.FileTypeReport:     "tok-r",
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)

	msg := mailer.sent[0]
	assert.Equal(t, "u@x.com", msg.ToEmail)
	assert.Contains(t, msg.Subject, "conv_abc")
	assert.Contains(t, msg.TextBody, "https://recap.example.com/download/tok-t")
	assert.Contains(t, msg.TextBody, "https://recap.example.com/download/tok-a")
	assert.Contains(t, msg.TextBody, "https://recap.example.com/download/tok-r")
	assert.Contains(t, msg.TextBody, "expires after 24 hours")
	assert.Contains(t, msg.HTMLBody, `<a href="https://recap.example.com/download/tok-r">PDF report</a>`)
}

func TestNotify_OmitsMissingAudio(t *testing.T) {
	mailer := &fakeMailer{}
	n := newTestNotifier(mailer)

	err := n.Notify(context.Background(), "u@x.com", "conv_abc", map[types.FileType]string{
		types.FileTypeTranscript: "tok-t",
		types.FileTypeReport:     "tok-r",
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)

	assert.NotContains(t, mailer.sent[0].TextBody, "Audio recording")
	assert.NotContains(t, mailer.sent[0].HTMLBody, "Audio recording")
}

func TestNotify_RetriesThenSucceeds(t *testing.T) {
	mailer := &fakeMailer{failCount: 2}
	n := newTestNotifier(mailer)

	err := n.Notify(context.Background(), "u@x.com", "conv_abc", map[types.FileType]string{
		types.FileTypeReport: "tok-r",
	})
	require.NoError(t, err)
	assert.Len(t, mailer.sent, 1)
}

func TestNotify_ExhaustsRetries(t *testing.T) {
	mailer := &fakeMailer{failCount: 100}
	n := newTestNotifier(mailer)

	err := n.Notify(context.Background(), "u@x.com", "conv_abc", map[types.FileType]string{
		types.FileTypeReport: "tok-r",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notification failed after 4 attempts")
	assert.Empty(t, mailer.sent)
}

func TestNotify_NoTokens(t *testing.T) {
	mailer := &fakeMailer{}
	n := newTestNotifier(mailer)

	err := n.Notify(context.Background(), "u@x.com", "conv_abc", nil)
	assert.Error(t, err)
}
