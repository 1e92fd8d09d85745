// Package summarize turns conversation transcripts into structured summaries
// using an LLM with schema-validated JSON output.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/convo-recap/internal/llm"
	"github.com/jonathan/convo-recap/internal/schemas"
	"github.com/jonathan/convo-recap/internal/types"
)

// ErrInvalidInput indicates the transcript cannot be summarized at all, for
// example because it has no turns. Retrying will not help.
var ErrInvalidInput = errors.New("transcript has no content to summarize")

// Summarizer produces structured summaries from transcripts.
type Summarizer struct {
	client llm.Client
	tier   llm.ModelTier
}

// New creates a Summarizer on the standard model tier.
func New(client llm.Client) *Summarizer {
	return &Summarizer{client: client, tier: llm.TierStandard}
}

// Summarize generates a structured summary of the transcript. The LLM output
// is validated against the summary schema before it is accepted; an output
// that fails validation is treated as a transient model failure so the caller
// can retry.
func (s *Summarizer) Summarize(ctx context.Context, transcript *types.Transcript) (*types.Summary, error) {
	if transcript == nil || transcript.Empty() {
		return nil, ErrInvalidInput
	}

	raw, err := s.client.GenerateJSON(ctx, buildPrompt(transcript), s.tier)
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}

	if err := schemas.ValidateSummary(raw); err != nil {
		return nil, fmt.Errorf("summary output rejected: %w", err)
	}

	var summary types.Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	return &summary, nil
}

func buildPrompt(transcript *types.Transcript) string {
	var sb strings.Builder
	sb.WriteString("You are analyzing a transcript of a conversation between a user and a voice agent.\n")
	sb.WriteString("Produce a JSON object with exactly these fields:\n")
	sb.WriteString(`  "topic": short label for what the conversation was about` + "\n")
	sb.WriteString(`  "sentiment": one of "positive", "neutral", "negative", "mixed"` + "\n")
	sb.WriteString(`  "key_points": list of the most important points raised` + "\n")
	sb.WriteString(`  "action_items": list of concrete follow-ups, empty if none` + "\n")
	sb.WriteString(`  "narrative": a few sentences recapping the conversation` + "\n")
	sb.WriteString("Respond with JSON only, no markdown.\n\n")
	sb.WriteString("Transcript:\n")
	sb.WriteString(transcript.PlainText())
	return sb.String()
}
