// ABOUTME: In-process tool registry that implements Executor for built-in interview tools.
// ABOUTME: Tracks which tool issued each continuation so Resume reaches the right handler.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Handler executes a tool call.
type Handler func(ctx context.Context, call Call) (Result, error)

// ResumeHandler continues a call that returned Waiting.
type ResumeHandler func(ctx context.Context, continuationID string, input json.RawMessage) (Result, error)

// Tool is a tool that executes in the session process.
type Tool struct {
	Name        string
	Description string
	Handle      Handler
	Resume      ResumeHandler
}

// Registry holds registered tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	// continuation ID → tool name, so Resume can be routed
	issued map[string]string
	logger *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		issued: make(map[string]string),
		logger: logger.With("component", "registry"),
	}
}

// Register adds a tool. Registering a name twice is an error.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" || t.Handle == nil {
		return errors.New("tool requires a name and a handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named tool.
func (r *Registry) Execute(ctx context.Context, call Call) (Result, error) {
	tool := r.Get(call.Name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
	}

	r.logger.Info("→ executing tool", "tool_name", call.Name, "call_id", call.ID)

	result, err := tool.Handle(ctx, call)
	if err != nil {
		r.logger.Warn("tool error", "tool_name", call.Name, "call_id", call.ID, "error", err)
		return nil, err
	}

	if err := r.track(tool, result); err != nil {
		return nil, err
	}

	r.logger.Info("← tool returned", "tool_name", call.Name, "call_id", call.ID, "result", fmt.Sprintf("%T", result))
	return result, nil
}

// Resume routes user input to the tool that issued continuationID.
func (r *Registry) Resume(ctx context.Context, continuationID string, input json.RawMessage) (Result, error) {
	r.mu.Lock()
	name, ok := r.issued[continuationID]
	if ok {
		delete(r.issued, continuationID)
	}
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPendingContinuation, continuationID)
	}

	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	r.logger.Info("→ resuming tool", "tool_name", name, "continuation_id", continuationID)
	result, err := tool.Resume(ctx, continuationID, input)
	if err != nil {
		r.logger.Warn("tool resume error", "tool_name", name, "continuation_id", continuationID, "error", err)
		return nil, err
	}
	if err := r.track(tool, result); err != nil {
		return nil, err
	}
	return result, nil
}

// track remembers which tool issued a Waiting result's continuation.
func (r *Registry) track(tool *Tool, result Result) error {
	w, ok := result.(Waiting)
	if !ok {
		return nil
	}
	if tool.Resume == nil {
		return fmt.Errorf("tool %s returned a continuation but cannot resume", tool.Name)
	}
	r.mu.Lock()
	r.issued[w.Continuation.ID] = tool.Name
	r.mu.Unlock()
	return nil
}
