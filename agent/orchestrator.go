// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/docent/ai"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/enrich"
	"github.com/poiesic/docent/storage"
	"github.com/poiesic/docent/tools"
)

const (
	DefaultMaxToolCalls  = 6
	DefaultHistoryWindow = 30
	DefaultMaxAttempts   = 2
	DefaultBaseDelay     = 500 * time.Millisecond

	// maxParallelTools bounds how many tools of one batch run at once.
	maxParallelTools = 4

	planningMaxTokens  = 600
	synthesisMaxTokens = 800
)

// State is the position of a turn in its state machine.
type State string

const (
	StateReceived      State = "received"
	StatePlanning      State = "planning"
	StateToolExecuting State = "tool_executing"
	StateSynthesizing  State = "synthesizing"
	StateAnswered      State = "answered"
	StateFailed        State = "failed"
)

// Toolbox is the tool catalogue the orchestrator plans over.
// *tools.Registry satisfies it.
type Toolbox interface {
	Tools() []*tools.Tool
	Lookup(name string) (*tools.Tool, bool)
	Invoke(ctx context.Context, name string, args map[string]any, session *core.Session) (core.ToolInvocation, error)
	HasDocument(ctx context.Context, id core.DocumentID) (bool, error)
}

// Turn is the record of one question/answer exchange.
type Turn struct {
	SessionID   string
	Question    string
	Answer      string
	Documents   []core.DocumentID
	Invocations []core.ToolInvocation

	// States lists every state the turn entered, in order.
	States []State

	// Forced is set when the tool budget ran out and the answer was
	// synthesized from partial results.
	Forced bool

	// Err is ErrOrchestrationBoundExceeded for forced answers and the
	// failure cause for failed turns.
	Err error
}

// State returns the state the turn ended in.
func (t *Turn) State() State {
	if len(t.States) == 0 {
		return ""
	}
	return t.States[len(t.States)-1]
}

func (t *Turn) enter(s State) {
	t.States = append(t.States, s)
}

// Orchestrator runs question turns against a tool catalogue.
// It is safe for concurrent use; turns of the same session should not
// overlap.
type Orchestrator struct {
	generator     ai.Generator
	toolbox       Toolbox
	history       storage.HistoryRepository
	maxToolCalls  int
	historyWindow int
	maxAttempts   int
	baseDelay     time.Duration
	logger        *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithMaxToolCalls bounds tool invocations per turn.
// Default is 6.
func WithMaxToolCalls(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return ErrInvalidMaxToolCalls
		}
		o.maxToolCalls = n
		return nil
	}
}

// WithHistoryWindow sets how many Q&A pairs a session retains.
// Default is 30.
func WithHistoryWindow(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			return fmt.Errorf("history window must be positive, got %d", n)
		}
		o.historyWindow = n
		return nil
	}
}

// WithRetry sets how failed provider calls are retried.
// Default is 2 attempts starting at a 500ms delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(o *Orchestrator) error {
		if maxAttempts <= 0 {
			return enrich.ErrInvalidMaxAttempts
		}
		o.maxAttempts = maxAttempts
		o.baseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(generator ai.Generator, toolbox Toolbox, history storage.HistoryRepository, opts ...Option) (*Orchestrator, error) {
	if generator == nil {
		return nil, enrich.ErrNoGenerator
	}
	if toolbox == nil {
		return nil, fmt.Errorf("toolbox required")
	}
	if history == nil {
		return nil, fmt.Errorf("history repository required")
	}

	o := &Orchestrator{
		generator:     generator,
		toolbox:       toolbox,
		history:       history,
		maxToolCalls:  DefaultMaxToolCalls,
		historyWindow: DefaultHistoryWindow,
		maxAttempts:   DefaultMaxAttempts,
		baseDelay:     DefaultBaseDelay,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "agent")
	return o, nil
}

// Ask runs one turn. On success the exchange is appended to the session
// history and the last referenced document becomes the session's pin.
// A failed turn is returned together with its error and leaves the session
// untouched.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, question string) (*Turn, error) {
	turn := &Turn{SessionID: sessionID, Question: strings.TrimSpace(question)}
	turn.enter(StateReceived)

	if sessionID == "" {
		return o.fail(turn, ErrEmptySession)
	}
	if turn.Question == "" {
		return o.fail(turn, ErrEmptyQuestion)
	}

	session, err := o.history.GetSession(ctx, sessionID, o.historyWindow)
	if err != nil {
		return o.fail(turn, fmt.Errorf("load session: %w", err))
	}

	logger := o.logger.With("session", sessionID)
	var (
		observations []observation
		answer       string
		documents    []string
		budget       = o.maxToolCalls
	)

	for {
		if err := ctx.Err(); err != nil {
			return o.fail(turn, err)
		}
		if budget <= 0 {
			turn.enter(StateSynthesizing)
			logger.Info("tool budget exhausted, forcing an answer", "max_tool_calls", o.maxToolCalls)
			answer, err = o.generate(ctx, renderSynthesisPrompt(turn.Question, session, observations),
				ai.GenerateOptions{MaxTokens: synthesisMaxTokens})
			if err != nil {
				return o.fail(turn, fmt.Errorf("forced synthesis: %w", err))
			}
			answer = strings.TrimSpace(ai.StripCodeFences(answer))
			turn.Forced = true
			turn.Err = fmt.Errorf("%w: %d tool calls", core.ErrOrchestrationBoundExceeded, o.maxToolCalls)
			break
		}

		turn.enter(StatePlanning)
		response, err := o.generate(ctx, renderPlanningPrompt(turn.Question, session, o.toolbox.Tools(), observations, budget),
			ai.GenerateOptions{MaxTokens: planningMaxTokens, JSON: true})
		if err != nil {
			return o.fail(turn, fmt.Errorf("planning: %w", err))
		}

		d := parseDecision(response)
		if d.Action == actionFinalAnswer {
			if d.Answer == "" {
				observations = append(observations, observation{Note: "the final answer was empty; answer the question"})
				budget--
				continue
			}
			turn.enter(StateSynthesizing)
			answer, documents = d.Answer, d.Documents
			break
		}

		if len(d.Calls) == 0 {
			observations = append(observations, observation{Note: "no tool calls were given; call a tool or give the final answer"})
			budget--
			continue
		}

		calls := d.Calls
		if len(calls) > budget {
			for _, skipped := range calls[budget:] {
				observations = append(observations, observation{Tool: skipped.Tool, Arguments: skipped.Arguments, Note: "not run: tool call budget exhausted"})
			}
			calls = calls[:budget]
		}
		budget -= len(calls)

		turn.enter(StateToolExecuting)
		invocations, err := o.runTools(ctx, calls, session)
		if err != nil {
			return o.fail(turn, err)
		}
		for _, inv := range invocations {
			turn.Invocations = append(turn.Invocations, inv)
			observations = append(observations, invocationObservation(inv))
		}
	}

	turn.Answer = answer
	turn.Documents, err = o.referencedDocuments(ctx, documents, turn.Invocations)
	if err != nil {
		return o.fail(turn, err)
	}

	qa := &core.QA{Question: turn.Question, Answer: turn.Answer, DocumentIDs: turn.Documents}
	if err := o.history.AppendHistory(ctx, sessionID, qa, o.historyWindow); err != nil {
		return o.fail(turn, fmt.Errorf("append history: %w", err))
	}
	if n := len(turn.Documents); n > 0 {
		if err := o.history.PinDocument(ctx, sessionID, turn.Documents[n-1]); err != nil {
			return o.fail(turn, fmt.Errorf("pin document: %w", err))
		}
	}

	turn.enter(StateAnswered)
	logger.Info("turn answered",
		"tool_calls", len(turn.Invocations),
		"documents", len(turn.Documents),
		"forced", turn.Forced)
	return turn, nil
}

// runTools executes one batch concurrently. Results keep the order of
// calls. Tool failures are results; only fatal errors abort the batch.
func (o *Orchestrator) runTools(ctx context.Context, calls []ToolCall, session *core.Session) ([]core.ToolInvocation, error) {
	results := make([]core.ToolInvocation, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelTools)
	for i, call := range calls {
		g.Go(func() error {
			inv, err := o.toolbox.Invoke(gctx, call.Tool, call.Arguments, session)
			if err != nil {
				return err
			}
			results[i] = inv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, inv := range results {
		if inv.Result.OK {
			o.logger.Debug("tool call succeeded", "tool", inv.ToolName)
		} else if inv.Result.Failure != nil {
			o.logger.Debug("tool call failed", "tool", inv.ToolName, "code", inv.Result.Failure.Code)
		}
	}
	return results, nil
}

// generate calls the provider with retries on retryable failures.
func (o *Orchestrator) generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	var response string
	err := enrich.RetryWithBackoff(ctx, func() error {
		var err error
		response, err = o.generator.Generate(ctx, prompt, opts)
		return err
	}, o.maxAttempts, o.baseDelay)
	return response, err
}

// referencedDocuments returns the documents an answer is based on. Stored
// ids the planner named come first; without any, the documents successfully
// read by tools this turn are used.
func (o *Orchestrator) referencedDocuments(ctx context.Context, named []string, invocations []core.ToolInvocation) ([]core.DocumentID, error) {
	var out []core.DocumentID
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, core.DocumentID(id)) {
			out = append(out, core.DocumentID(id))
		}
	}

	for _, id := range named {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		ok, err := o.toolbox.HasDocument(ctx, core.DocumentID(id))
		if err != nil {
			return nil, fmt.Errorf("check document %s: %w", id, err)
		}
		if !ok {
			o.logger.Debug("dropping unknown document reference", "id", id)
			continue
		}
		add(id)
	}
	if len(out) > 0 {
		return out, nil
	}

	for _, inv := range invocations {
		if !inv.Result.OK {
			continue
		}
		tool, ok := o.toolbox.Lookup(inv.ToolName)
		if !ok {
			continue
		}
		for _, arg := range tool.DocumentArgs {
			if id, ok := inv.Arguments[arg].(string); ok {
				add(id)
			}
		}
	}
	return out, nil
}

func (o *Orchestrator) fail(turn *Turn, err error) (*Turn, error) {
	turn.enter(StateFailed)
	turn.Err = err
	o.logger.Warn("turn failed", "session", turn.SessionID, "error", err)
	return turn, err
}
