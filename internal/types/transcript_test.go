package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileTypeValid(t *testing.T) {
	assert.True(t, FileTypeTranscript.Valid())
	assert.True(t, FileTypeAudio.Valid())
	assert.True(t, FileTypeReport.Valid())
	assert.False(t, FileType("video").Valid())
	assert.False(t, FileType("").Valid())
}

func TestFileTypeExt(t *testing.T) {
	assert.Equal(t, "txt", FileTypeTranscript.Ext())
	assert.Equal(t, "mp3", FileTypeAudio.Ext())
	assert.Equal(t, "pdf", FileTypeReport.Ext())
}

func TestFileTypePlural(t *testing.T) {
	assert.Equal(t, "transcripts", FileTypeTranscript.Plural())
	assert.Equal(t, "audios", FileTypeAudio.Plural())
	assert.Equal(t, "reports", FileTypeReport.Plural())
}

func TestTranscriptEmpty(t *testing.T) {
	var nilTranscript *Transcript
	assert.True(t, nilTranscript.Empty())

	assert.True(t, (&Transcript{}).Empty())

	whitespaceOnly := &Transcript{Turns: []Turn{{Speaker: "agent", Text: "   "}}}
	assert.True(t, whitespaceOnly.Empty())

	withText := &Transcript{Turns: []Turn{{Speaker: "agent", Text: "Hello"}}}
	assert.False(t, withText.Empty())
}

func TestTranscriptPlainText(t *testing.T) {
	tr := &Transcript{
		ConversationID: "conv_abc",
		Turns: []Turn{
			{Speaker: "agent", Text: "Hello, how can I help?", Timestamp: 0},
			{Speaker: "user", Text: "I need a refund.", Timestamp: 65.4},
			{Speaker: "agent", Text: "", Timestamp: 70},
		},
	}

	text := tr.PlainText()
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	assert.Len(t, lines, 2) // empty turn is skipped
	assert.Equal(t, "[00:00] agent: Hello, how can I help?", lines[0])
	assert.Equal(t, "[01:05] user: I need a refund.", lines[1])
}

func TestSummaryHasContent(t *testing.T) {
	var nilSummary *Summary
	assert.False(t, nilSummary.HasContent())

	assert.False(t, (&Summary{Topic: "Billing"}).HasContent())
	assert.False(t, (&Summary{Narrative: "The caller asked about billing."}).HasContent())

	full := &Summary{Topic: "Billing", Narrative: "The caller asked about billing."}
	assert.True(t, full.HasContent())
}
