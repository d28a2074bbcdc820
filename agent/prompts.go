package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/enrich"
	"github.com/poiesic/docent/tools"
)

const (
	maxObservationLength = 4000
	maxHistoryAnswer     = 500
)

const planningPrompt = `You answer questions about a collection of documents using tools.
Decide the next step. Either call one or more tools, or give the final answer.

Available tools (arguments are JSON Schema):
%s
%s
Conversation so far:
%s
Observations from tool calls in this turn:
%s
You may make at most %d more tool calls.

Respond with JSON only, in one of these shapes:
{"action": "call_tools", "calls": [{"tool": "name", "arguments": {}}]}
{"action": "final_answer", "answer": "text", "documents": ["document_id"]}

List in "documents" the ids of the documents your answer is based on.

Question: %s`

const synthesisPrompt = `You answer questions about a collection of documents.
No more tool calls are possible. Answer the question as well as you can from the
observations below. If they are not enough, say what is missing.
Reply with the answer text only.

Conversation so far:
%s
Observations:
%s
Question: %s`

// observation is one entry of a turn's working context.
type observation struct {
	Tool      string           `json:"tool,omitempty"`
	Arguments map[string]any   `json:"arguments,omitempty"`
	Result    *core.ToolResult `json:"result,omitempty"`
	Note      string           `json:"note,omitempty"`
}

func invocationObservation(inv core.ToolInvocation) observation {
	result := inv.Result
	return observation{Tool: inv.ToolName, Arguments: inv.Arguments, Result: &result}
}

func renderPlanningPrompt(question string, session *core.Session, catalog []*tools.Tool, observations []observation, remaining int) string {
	return fmt.Sprintf(planningPrompt,
		renderCatalog(catalog),
		renderPin(session),
		renderHistory(session),
		renderObservations(observations),
		remaining,
		question,
	)
}

func renderSynthesisPrompt(question string, session *core.Session, observations []observation) string {
	return fmt.Sprintf(synthesisPrompt, renderHistory(session), renderObservations(observations), question)
}

func renderCatalog(catalog []*tools.Tool) string {
	var b strings.Builder
	for _, tool := range catalog {
		schema, err := json.Marshal(tool.Schema)
		if err != nil {
			schema = []byte("{}")
		}
		fmt.Fprintf(&b, "- %s: %s\n  arguments: %s\n", tool.Name, tool.Description, schema)
	}
	return b.String()
}

func renderPin(session *core.Session) string {
	if session == nil || session.ActiveDocumentID == "" {
		return ""
	}
	return fmt.Sprintf("\nThe conversation is about document %q. Tools that need a document id use it when you omit one.\n", session.ActiveDocumentID)
}

func renderHistory(session *core.Session) string {
	if session == nil || len(session.History) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for _, qa := range session.History {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", qa.Question, enrich.Truncate(qa.Answer, maxHistoryAnswer))
	}
	return b.String()
}

func renderObservations(observations []observation) string {
	if len(observations) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for i, obs := range observations {
		data, err := json.Marshal(obs)
		if err != nil {
			data = []byte(fmt.Sprintf(`{"note": %q}`, err.Error()))
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, enrich.Truncate(string(data), maxObservationLength))
	}
	return b.String()
}
