package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     decision
	}{
		{
			name:     "call tools",
			response: `{"action": "call_tools", "calls": [{"tool": "search", "arguments": {"query": "revenue"}}]}`,
			want: decision{Action: actionCallTools, Calls: []ToolCall{
				{Tool: "search", Arguments: map[string]any{"query": "revenue"}},
			}},
		},
		{
			name:     "fenced final answer",
			response: "```json\n{\"action\": \"final_answer\", \"answer\": \" Done. \", \"documents\": [\"abc\"]}\n```",
			want:     decision{Action: actionFinalAnswer, Answer: "Done.", Documents: []string{"abc"}},
		},
		{
			name:     "single call shorthand",
			response: `{"action": "call_tool", "tool": "list_documents", "arguments": {}}`,
			want: decision{Action: actionCallTools, Calls: []ToolCall{
				{Tool: "list_documents", Arguments: map[string]any{}},
			}},
		},
		{
			name:     "unquoted keys repaired",
			response: `{action: "final_answer", answer: "Yes."}`,
			want:     decision{Action: actionFinalAnswer, Answer: "Yes."},
		},
		{
			name:     "plain text",
			response: "  The answer is 42.  ",
			want:     decision{Action: actionFinalAnswer, Answer: "The answer is 42."},
		},
		{
			name:     "unknown action",
			response: `{"topics": ["general"]}`,
			want:     decision{Action: actionFinalAnswer, Answer: `{"topics": ["general"]}`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDecision(tt.response))
		})
	}
}
