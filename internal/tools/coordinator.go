// ABOUTME: Tool execution coordinator: gates calls by phase, runs them, and publishes responses.
// ABOUTME: Owns the open continuation map and enforces the single pending UI tool call policy.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/interview-gateway/internal/dedupe"
	"github.com/2389/interview-gateway/internal/events"
	"github.com/2389/interview-gateway/internal/state"
)

// duplicateUIMessage is returned to the model when it issues a second UI tool
// call while the first is still on screen.
const duplicateUIMessage = "Another identical prompt is already active and waiting for the user. Wait for the user to respond to it instead of calling this tool again."

// StateCoordinator is the part of the interview state the coordinator uses.
type StateCoordinator interface {
	IsToolAllowed(name string) bool
	ExcludeTool(name string)
	PendingUIToolCall() (state.PendingUIToolCall, bool)
	SetPendingUIToolCall(p state.PendingUIToolCall) error
	ClearPendingUIToolCall() (state.PendingUIToolCall, bool)
}

// Bus is the part of the event bus the coordinator uses.
type Bus interface {
	Emit(p events.Payload)
	Subscribe(ctx context.Context, topics ...events.Topic) (<-chan events.Event, string)
}

// openCall is a call parked on a continuation.
type openCall struct {
	callID   string
	toolName string
}

// Coordinator turns tool call events into tool executions and tool responses.
type Coordinator struct {
	executor Executor
	state    StateCoordinator
	bus      Bus
	seen     *dedupe.Cache
	logger   *slog.Logger

	mu            sync.Mutex
	continuations map[string]openCall

	ready chan struct{}
}

// CoordinatorConfig contains the Coordinator's collaborators.
type CoordinatorConfig struct {
	Executor Executor
	State    StateCoordinator
	Bus      Bus
	Seen     *dedupe.Cache
	Logger   *slog.Logger
}

// NewCoordinator creates a Coordinator. A nil Seen cache gets the dedupe defaults.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seen := cfg.Seen
	if seen == nil {
		seen = dedupe.New(0, 0)
	}
	return &Coordinator{
		executor:      cfg.Executor,
		state:         cfg.State,
		bus:           cfg.Bus,
		seen:          seen,
		logger:        logger.With("component", "tool_coordinator"),
		continuations: make(map[string]openCall),
		ready:         make(chan struct{}),
	}
}

// Ready is closed once Run has subscribed to the bus.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Run consumes the tool topic until ctx is cancelled. Events are handled one
// at a time, in arrival order.
func (c *Coordinator) Run(ctx context.Context) error {
	stream, _ := c.bus.Subscribe(ctx, events.TopicTool)
	close(c.ready)
	c.logger.Info("tool coordinator started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("tool coordinator stopped")
			return nil
		case evt, ok := <-stream:
			if !ok {
				return nil
			}
			c.dispatch(ctx, evt)
		}
	}
}

func (c *Coordinator) dispatch(ctx context.Context, evt events.Event) {
	var err error
	switch p := evt.Payload.(type) {
	case events.ToolCallRequested:
		err = c.HandleCall(ctx, Call{ID: p.CallID, Name: p.Name, Arguments: p.Arguments})
	case events.ContinuationResumed:
		err = c.ResumeContinuation(ctx, p.ContinuationID, p.Input)
	case events.UIToolCallCompleted:
		err = c.completeFromEvent(p)
	default:
		return
	}
	if err != nil {
		c.logger.Debug("tool event finished with error", "event_id", evt.ID, "error", err)
	}
}

// HandleCall gates, executes, and routes one tool call. The returned error
// describes what went wrong; the model has already been answered when needed.
func (c *Coordinator) HandleCall(ctx context.Context, call Call) error {
	if c.seen.CheckAndMark(call.ID) {
		c.logger.Warn("duplicate tool call ignored", "call_id", call.ID, "tool_name", call.Name)
		return fmt.Errorf("%w: %s", ErrDuplicateCall, call.ID)
	}

	if !c.state.IsToolAllowed(call.Name) {
		c.logger.Warn("tool call blocked by phase", "call_id", call.ID, "tool_name", call.Name)
		c.respondIncomplete(call.ID, call.Name,
			fmt.Sprintf("Tool %q is not available in the current interview phase.", call.Name))
		return fmt.Errorf("%w: %s", ErrToolNotAllowed, call.Name)
	}

	result, err := c.executor.Execute(ctx, call)
	if err != nil {
		c.logger.Warn("tool execution failed", "call_id", call.ID, "tool_name", call.Name, "error", err)
		c.respondIncomplete(call.ID, call.Name, "Tool execution failed: "+err.Error())
		return fmt.Errorf("executing %s: %w", call.Name, err)
	}

	return c.route(call.ID, call.Name, result)
}

// ResumeContinuation feeds user input to a paused call. Resuming an unknown
// or already-resumed ID returns ErrNoPendingContinuation and does nothing.
func (c *Coordinator) ResumeContinuation(ctx context.Context, continuationID string, input json.RawMessage) error {
	c.mu.Lock()
	open, ok := c.continuations[continuationID]
	if ok {
		delete(c.continuations, continuationID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("resume for unknown continuation ignored", "continuation_id", continuationID)
		return fmt.Errorf("%w: %s", ErrNoPendingContinuation, continuationID)
	}

	result, err := c.executor.Resume(ctx, continuationID, input)
	if err != nil {
		c.logger.Warn("tool resume failed",
			"call_id", open.callID, "tool_name", open.toolName, "continuation_id", continuationID, "error", err)
		c.respondIncomplete(open.callID, open.toolName, "Tool execution failed: "+err.Error())
		return fmt.Errorf("resuming %s: %w", open.toolName, err)
	}

	return c.route(open.callID, open.toolName, result)
}

// CompleteUIToolCall answers the pending UI tool call with output and frees the slot.
func (c *Coordinator) CompleteUIToolCall(output json.RawMessage) error {
	p, ok := c.state.ClearPendingUIToolCall()
	if !ok {
		return ErrNoPendingUIToolCall
	}
	c.logger.Info("ui tool call completed", "call_id", p.CallID, "tool_name", p.ToolName)
	c.bus.Emit(events.ToolResponse{
		CallID:   p.CallID,
		ToolName: p.ToolName,
		Output:   output,
		Status:   events.ToolStatusCompleted,
	})
	return nil
}

// PendingContinuations returns the number of calls parked on a continuation.
func (c *Coordinator) PendingContinuations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.continuations)
}

func (c *Coordinator) completeFromEvent(p events.UIToolCallCompleted) error {
	if p.CallID != "" {
		if pending, ok := c.state.PendingUIToolCall(); ok && pending.CallID != p.CallID {
			c.logger.Warn("ui completion for a different call", "call_id", p.CallID, "pending_call_id", pending.CallID)
			c.fallback(p.FallbackText)
			return fmt.Errorf("%w: %s", ErrNoPendingUIToolCall, p.CallID)
		}
	}

	err := c.CompleteUIToolCall(p.Output)
	if errors.Is(err, ErrNoPendingUIToolCall) {
		c.logger.Info("no pending ui tool call to complete", "call_id", p.CallID)
		c.fallback(p.FallbackText)
	}
	return err
}

// fallback delivers content as a user message when no tool call can carry it.
func (c *Coordinator) fallback(text string) {
	if text == "" {
		return
	}
	c.bus.Emit(events.UserMessage{Text: text, System: true})
}

// route applies the result handling rules shared by first execution and resume.
func (c *Coordinator) route(callID, toolName string, result Result) error {
	switch r := result.(type) {
	case Immediate:
		d := readDirectives(r.Output)
		if d.DisableAfterUse {
			c.state.ExcludeTool(toolName)
		}
		c.logger.Info("tool completed", "call_id", callID, "tool_name", toolName, "tool_choice", d.NextRequiredTool)
		c.bus.Emit(events.ToolResponse{
			CallID:     callID,
			ToolName:   toolName,
			Output:     r.Output,
			Status:     events.ToolStatusCompleted,
			ToolChoice: d.NextRequiredTool,
		})
		return nil

	case Waiting:
		if r.Continuation.ID == "" {
			c.respondIncomplete(callID, toolName, "Tool requested user input without a continuation.")
			return fmt.Errorf("tool %s returned a continuation without an id", toolName)
		}
		c.mu.Lock()
		c.continuations[r.Continuation.ID] = openCall{callID: callID, toolName: toolName}
		c.mu.Unlock()

		c.logger.Info("tool awaiting user input",
			"call_id", callID, "tool_name", toolName, "continuation_id", r.Continuation.ID)
		c.bus.Emit(events.ContinuationNeeded{
			CallID:         callID,
			ContinuationID: r.Continuation.ID,
			ToolName:       toolName,
			Message:        r.Message,
		})
		return nil

	case PendingUserAction:
		err := c.state.SetPendingUIToolCall(state.PendingUIToolCall{CallID: callID, ToolName: toolName})
		if errors.Is(err, state.ErrUIToolCallPending) {
			c.logger.Warn("duplicate ui tool call rejected", "call_id", callID, "tool_name", toolName)
			c.respondIncomplete(callID, toolName, duplicateUIMessage)
			return fmt.Errorf("%w: %s", ErrDuplicateUIToolCall, callID)
		}
		if err != nil {
			c.respondIncomplete(callID, toolName, err.Error())
			return err
		}
		c.logger.Info("tool presented to user", "call_id", callID, "tool_name", toolName)
		return nil

	case Failed:
		msg := "tool failed"
		if r.Cause != nil {
			msg = r.Cause.Error()
		}
		c.respondIncomplete(callID, toolName, msg)
		return fmt.Errorf("%s failed: %s", toolName, msg)

	default:
		c.respondIncomplete(callID, toolName, "Tool returned an unsupported result.")
		return fmt.Errorf("tool %s returned unsupported result %T", toolName, result)
	}
}

func (c *Coordinator) respondIncomplete(callID, toolName, message string) {
	c.bus.Emit(events.ToolResponse{
		CallID:   callID,
		ToolName: toolName,
		Output:   errorOutput(message),
		Status:   events.ToolStatusIncomplete,
	})
}
