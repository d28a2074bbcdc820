// Package agent answers questions about indexed documents by letting a
// language model plan tool calls.
//
// Each turn moves through a small state machine:
//
//	Received -> Planning -> (ToolExecuting)* -> Synthesizing -> Answered
//
// with Failed reachable from any non-terminal state. The planner replies
// with one JSON decision per round: either a batch of tool calls or a
// final answer. Tool results, failures included, are fed back to the next
// planning round as observations. The number of tool calls per turn is
// bounded; when the bound is reached the orchestrator asks for an answer
// from whatever it has gathered.
package agent
