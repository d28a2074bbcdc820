package agent

import (
	"strings"

	"github.com/poiesic/docent/ai"
)

const (
	actionCallTools   = "call_tools"
	actionCallTool    = "call_tool"
	actionFinalAnswer = "final_answer"
)

// ToolCall is one tool the planner asked for.
type ToolCall struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// decision is the planner's reply to one planning round.
type decision struct {
	Action    string     `json:"action"`
	Calls     []ToolCall `json:"calls"`
	Answer    string     `json:"answer"`
	Documents []string   `json:"documents"`

	// Single-call shorthand: {"action":"call_tool","tool":...,"arguments":...}
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// parseDecision interprets a planner response. Anything that is not a
// recognizable decision is taken as a plain-text final answer.
func parseDecision(response string) decision {
	var d decision
	if err := ai.DecodeJSON(response, &d); err != nil {
		return decision{Action: actionFinalAnswer, Answer: strings.TrimSpace(ai.StripCodeFences(response))}
	}

	switch strings.ToLower(strings.TrimSpace(d.Action)) {
	case actionCallTools:
		d.Action = actionCallTools
	case actionCallTool:
		d.Action = actionCallTools
		if d.Tool != "" {
			d.Calls = append([]ToolCall{{Tool: d.Tool, Arguments: d.Arguments}}, d.Calls...)
		}
	case actionFinalAnswer:
		d.Action = actionFinalAnswer
		d.Answer = strings.TrimSpace(d.Answer)
	default:
		return decision{Action: actionFinalAnswer, Answer: strings.TrimSpace(ai.StripCodeFences(response))}
	}
	d.Tool, d.Arguments = "", nil
	return d
}
