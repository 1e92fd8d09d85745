// Package types defines the shared domain types for conversation processing.
package types

import (
	"fmt"
	"strings"
)

// FileType identifies the kind of stored artifact for a conversation.
type FileType string

// FileType constants
const (
	FileTypeTranscript FileType = "transcript"
	FileTypeAudio      FileType = "audio"
	FileTypeReport     FileType = "report"
)

// Valid reports whether the file type is one of the known artifact kinds.
func (f FileType) Valid() bool {
	switch f {
	case FileTypeTranscript, FileTypeAudio, FileTypeReport:
		return true
	}
	return false
}

// Ext returns the file extension used when storing this artifact type.
func (f FileType) Ext() string {
	switch f {
	case FileTypeTranscript:
		return "txt"
	case FileTypeAudio:
		return "mp3"
	case FileTypeReport:
		return "pdf"
	}
	return "bin"
}

// Plural returns the directory segment used in storage keys.
func (f FileType) Plural() string {
	return string(f) + "s"
}

// ContentType returns the MIME type served for downloads of this artifact type.
func (f FileType) ContentType() string {
	switch f {
	case FileTypeTranscript:
		return "text/plain; charset=utf-8"
	case FileTypeAudio:
		return "audio/mpeg"
	case FileTypeReport:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Turn is a single utterance in a conversation transcript.
type Turn struct {
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"` // seconds from conversation start
}

// Transcript is the ordered list of turns for one conversation.
type Transcript struct {
	ConversationID string `json:"conversation_id"`
	Turns          []Turn `json:"turns"`
}

// Empty reports whether the transcript contains no spoken text.
func (t *Transcript) Empty() bool {
	if t == nil {
		return true
	}
	for _, turn := range t.Turns {
		if strings.TrimSpace(turn.Text) != "" {
			return false
		}
	}
	return true
}

// PlainText renders the transcript as speaker-labelled lines, one per turn.
// This is the form stored as the transcript artifact and fed to the summarizer.
func (t *Transcript) PlainText() string {
	var sb strings.Builder
	for _, turn := range t.Turns {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("[%s] %s: %s\n", formatTimestamp(turn.Timestamp), turn.Speaker, text))
	}
	return sb.String()
}

// formatTimestamp renders seconds-from-start as mm:ss.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
