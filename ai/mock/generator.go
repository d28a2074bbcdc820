package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/docent/ai"
)

// DefaultTopicsResponse is returned for topic-classification prompts when
// nothing is scripted.
const DefaultTopicsResponse = `{"topics": ["general"]}`

// DefaultSummaryResponse is returned for every other unscripted prompt.
const DefaultSummaryResponse = "A short summary of the document."

// MockGenerator is a test double for ai.Generator.
// Responses are taken from the scripted queue first, then from GenerateFunc,
// then from prompt-sniffing defaults. Safe for concurrent use.
type MockGenerator struct {
	// GenerateFunc is called when the scripted queue is empty, if set.
	GenerateFunc func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error)

	mu        sync.Mutex
	script    []scripted
	prompts   []string
	callCount int
}

type scripted struct {
	response string
	err      error
}

// NewMockGenerator creates a mock generator with default behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Enqueue appends responses to the script, consumed one per call.
func (m *MockGenerator) Enqueue(responses ...string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range responses {
		m.script = append(m.script, scripted{response: r})
	}
	return m
}

// EnqueueError appends a failing call to the script.
func (m *MockGenerator) EnqueueError(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{err: err})
	return m
}

// Generate returns the next scripted response or the default.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	var next *scripted
	if len(m.script) > 0 {
		next = &m.script[0]
		m.script = m.script[1:]
	}
	fn := m.GenerateFunc
	m.mu.Unlock()

	if next != nil {
		return next.response, next.err
	}
	if fn != nil {
		return fn(ctx, prompt, opts)
	}
	if strings.Contains(strings.ToLower(prompt), "topics") {
		return DefaultTopicsResponse, nil
	}
	return DefaultSummaryResponse, nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Remaining returns how many scripted responses are still queued.
func (m *MockGenerator) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.script)
}

// Reset clears all recorded calls and scripting.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.prompts = nil
	m.script = nil
	m.GenerateFunc = nil
}
