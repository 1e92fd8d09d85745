package summarize

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/convo-recap/internal/llm"
	"github.com/jonathan/convo-recap/internal/types"
)

// fakeClient returns canned responses so tests run without a live model.
type fakeClient struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func (f *fakeClient) GetModel(tier llm.ModelTier) string { return "fake-model" }
func (f *fakeClient) Close() error                       { return nil }

func sampleTranscript() *types.Transcript {
	return &types.Transcript{
		ConversationID: "conv_abc",
		Turns: []types.Turn{
			{Speaker: "agent", Text: "Hello, how can I help?", Timestamp: 0},
			{Speaker: "user", Text: "I was charged twice.", Timestamp: 4.2},
		},
	}
}

func TestSummarize(t *testing.T) {
	client := &fakeClient{response: `{
		"topic": "Billing dispute",
		"sentiment": "negative",
		"key_points": ["charged twice"],
		"action_items": ["issue refund"],
		"narrative": "The caller reported a duplicate charge."
	}`}

	summary, err := New(client).Summarize(context.Background(), sampleTranscript())
	require.NoError(t, err)

	assert.Equal(t, "Billing dispute", summary.Topic)
	assert.Equal(t, "negative", summary.Sentiment)
	assert.Equal(t, []string{"charged twice"}, summary.KeyPoints)
	assert.True(t, summary.HasContent())

	// The prompt carries the rendered transcript.
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "I was charged twice.")
}

func TestSummarize_EmptyTranscript(t *testing.T) {
	client := &fakeClient{}

	_, err := New(client).Summarize(context.Background(), &types.Transcript{ConversationID: "conv_abc"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = New(client).Summarize(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	// The model is never called for empty input.
	assert.Empty(t, client.prompts)
}

func TestSummarize_ModelError(t *testing.T) {
	client := &fakeClient{err: fmt.Errorf("model overloaded")}

	_, err := New(client).Summarize(context.Background(), sampleTranscript())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidInput)
}

func TestSummarize_SchemaRejection(t *testing.T) {
	// Missing required fields and a bogus sentiment.
	client := &fakeClient{response: `{"topic": "Billing", "sentiment": "ecstatic"}`}

	_, err := New(client).Summarize(context.Background(), sampleTranscript())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary output rejected")
}
