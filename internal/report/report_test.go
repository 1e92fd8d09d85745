package report

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/convo-recap/internal/types"
)

func sampleSummary() *types.Summary {
	return &types.Summary{
		Topic:       "Billing dispute",
		Sentiment:   "negative",
		KeyPoints:   []string{"charged twice", "requested refund"},
		ActionItems: []string{"issue refund within 3 days"},
		Narrative:   "The caller reported a duplicate charge and asked for a refund.",
	}
}

func sampleMetadata() Metadata {
	return Metadata{
		ConversationID: "conv_abc",
		AccountID:      "acc1",
		GeneratedAt:    time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC),
		TurnCount:      12,
	}
}

func TestBuildHTML(t *testing.T) {
	html, err := buildHTML(sampleSummary(), sampleMetadata())
	require.NoError(t, err)

	assert.Contains(t, html, "Billing dispute")
	assert.Contains(t, html, "charged twice")
	assert.Contains(t, html, "issue refund within 3 days")
	assert.Contains(t, html, "conv_abc")
	assert.Contains(t, html, "12 turns")
}

func TestBuildHTML_EmptyLists(t *testing.T) {
	summary := sampleSummary()
	summary.KeyPoints = nil
	summary.ActionItems = nil

	html, err := buildHTML(summary, sampleMetadata())
	require.NoError(t, err)
	assert.Contains(t, html, "None recorded.")
}

func TestBuildHTML_EscapesMarkup(t *testing.T) {
	summary := sampleSummary()
	summary.Topic = `<script>alert("x")</script>`

	html, err := buildHTML(summary, sampleMetadata())
	require.NoError(t, err)
	assert.NotContains(t, html, `<script>alert`)
}

func TestBuildHTML_RejectsEmptySummary(t *testing.T) {
	_, err := buildHTML(&types.Summary{}, sampleMetadata())
	require.Error(t, err)

	var templateErr *TemplateError
	assert.True(t, errors.As(err, &templateErr))
}

func TestMetadataDescribe(t *testing.T) {
	assert.Equal(t, "conv_abc (12 turns)", sampleMetadata().Describe())
}
