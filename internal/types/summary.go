package types

import "strings"

// Summary is the structured result of summarizing a conversation transcript.
type Summary struct {
	Topic       string   `json:"topic"`
	Sentiment   string   `json:"sentiment"`
	KeyPoints   []string `json:"key_points"`
	ActionItems []string `json:"action_items"`
	Narrative   string   `json:"narrative"`
}

// HasContent reports whether the summary carries enough substance to render
// a report from. A summary without a topic or narrative is considered empty.
func (s *Summary) HasContent() bool {
	if s == nil {
		return false
	}
	return strings.TrimSpace(s.Topic) != "" && strings.TrimSpace(s.Narrative) != ""
}
