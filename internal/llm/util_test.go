package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain json untouched",
			input:    `{"topic": "billing"}`,
			expected: `{"topic": "billing"}`,
		},
		{
			name:     "json fence",
			input:    "```json\n{\"topic\": \"billing\"}\n```",
			expected: `{"topic": "billing"}`,
		},
		{
			name:     "generic fence",
			input:    "```\n{\"topic\": \"billing\"}\n```",
			expected: `{"topic": "billing"}`,
		},
		{
			name:     "fence with surrounding whitespace",
			input:    "  ```json\n{\"a\": 1}\n```  ",
			expected: `{"a": 1}`,
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestConfigGetModel(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "gemini-2.5-flash", cfg.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.GetModel(TierLite))

	// Unknown tier falls back to standard
	assert.Equal(t, "gemini-2.5-flash", cfg.GetModel(ModelTier("unknown")))
}

func TestConfigWithModel(t *testing.T) {
	cfg := DefaultConfig()
	custom := cfg.WithModel(TierStandard, "gemini-3.0-flash")

	assert.Equal(t, "gemini-3.0-flash", custom.GetModel(TierStandard))
	// Original is unchanged
	assert.Equal(t, "gemini-2.5-flash", cfg.GetModel(TierStandard))
}
