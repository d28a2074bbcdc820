package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
)

// DefaultHistoryWindow bounds get_user_history when no window is configured.
const DefaultHistoryWindow = 30

// Handler runs a tool with validated arguments.
// A non-nil error aborts the caller's turn; expected failures belong in the
// returned ToolResult.
type Handler func(ctx context.Context, args map[string]any, session *core.Session) (core.ToolResult, error)

// Tool is one entry of the catalogue.
type Tool struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema

	// DocumentArgs lists arguments that name a document. When exactly one
	// of them is missing and the session has a pinned document, the pinned
	// id fills it.
	DocumentArgs []string

	Handler  Handler
	resolved *jsonschema.Resolved
}

// Registry maps tool names to tools.
// Registration happens at construction; Invoke is safe for concurrent use.
type Registry struct {
	tools         map[string]*Tool
	order         []string
	documents     storage.DocumentRepository
	history       storage.HistoryRepository
	historyWindow int
	logger        *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry) error

// WithHistoryWindow bounds how many Q&A pairs get_user_history returns.
// Default is 30.
func WithHistoryWindow(n int) Option {
	return func(r *Registry) error {
		if n < 1 {
			return fmt.Errorf("history window must be positive, got %d", n)
		}
		r.historyWindow = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRegistry creates a registry holding the canonical tools.
func NewRegistry(documents storage.DocumentRepository, history storage.HistoryRepository, opts ...Option) (*Registry, error) {
	if documents == nil {
		return nil, errors.New("document repository required")
	}
	if history == nil {
		return nil, errors.New("history repository required")
	}

	r := &Registry{
		tools:         make(map[string]*Tool),
		documents:     documents,
		history:       history,
		historyWindow: DefaultHistoryWindow,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "tools")

	for _, tool := range r.catalog() {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" || tool.Handler == nil || tool.Schema == nil {
		return fmt.Errorf("tool %q: name, schema and handler are required", tool.Name)
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	resolved, err := tool.Schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %q: resolve schema: %w", tool.Name, err)
	}
	tool.resolved = resolved
	r.tools[tool.Name] = &tool
	r.order = append(r.order, tool.Name)
	return nil
}

// Tools returns the catalogue in registration order.
func (r *Registry) Tools() []*Tool {
	out := make([]*Tool, len(r.order))
	for i, name := range r.order {
		out[i] = r.tools[name]
	}
	return out
}

// Lookup returns the named tool.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// HasDocument reports whether id names a stored document.
func (r *Registry) HasDocument(ctx context.Context, id core.DocumentID) (bool, error) {
	_, err := r.documents.GetDocument(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Invoke validates args and runs the named tool. The returned invocation
// records the arguments actually used, after pin resolution.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, session *core.Session) (core.ToolInvocation, error) {
	inv := core.ToolInvocation{ToolName: name, Arguments: args}

	tool, ok := r.tools[name]
	if !ok {
		inv.Result = Failure(core.FailureUnknownTool, "unknown tool %q", name)
		return inv, nil
	}

	normalized, err := normalizeArguments(args)
	if err != nil {
		inv.Result = Failure(core.FailureArgumentInvalid, "arguments must be a JSON object: %v", err)
		return inv, nil
	}
	if session != nil {
		resolvePin(normalized, tool.DocumentArgs, session.ActiveDocumentID)
	}
	inv.Arguments = normalized

	if err := tool.resolved.Validate(normalized); err != nil {
		inv.Result = Failure(core.FailureArgumentInvalid, "invalid arguments for %s: %v", name, err)
		return inv, nil
	}

	result, err := tool.Handler(ctx, normalized, session)
	if err != nil {
		r.logger.Error("tool failed", "tool", name, "error", err)
		return inv, fmt.Errorf("tool %s: %w", name, err)
	}
	inv.Result = result
	if !result.OK && result.Failure != nil {
		r.logger.Debug("tool returned failure", "tool", name, "code", result.Failure.Code)
	}
	return inv, nil
}

// normalizeArguments round-trips args through JSON so values have the same
// types the schema validator sees for model output.
func normalizeArguments(args map[string]any) (map[string]any, error) {
	if args == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(args))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func resolvePin(args map[string]any, documentArgs []string, pinned core.DocumentID) {
	if pinned == "" || len(documentArgs) == 0 {
		return
	}
	var missing []string
	for _, name := range documentArgs {
		v, ok := args[name]
		if s, isString := v.(string); !ok || v == nil || (isString && strings.TrimSpace(s) == "") {
			missing = append(missing, name)
		}
	}
	if len(missing) == 1 {
		args[missing[0]] = string(pinned)
	}
}

// Success wraps a payload in a successful result.
func Success(payload any) core.ToolResult {
	return core.ToolResult{OK: true, Payload: payload}
}

// Failure builds a structured failure result.
func Failure(code core.ToolFailureCode, format string, a ...any) core.ToolResult {
	return core.ToolResult{Failure: &core.ToolFailure{Code: code, Message: fmt.Sprintf(format, a...)}}
}

// FailureError maps a failure code to its sentinel error.
func FailureError(f *core.ToolFailure) error {
	if f == nil {
		return nil
	}
	var sentinel error
	switch f.Code {
	case core.FailureDocumentNotFound:
		sentinel = core.ErrDocumentNotFound
	case core.FailureArgumentInvalid:
		sentinel = core.ErrToolArgumentInvalid
	case core.FailureUnknownTool:
		sentinel = core.ErrUnknownTool
	default:
		return errors.New(f.Message)
	}
	return fmt.Errorf("%w: %s", sentinel, f.Message)
}
