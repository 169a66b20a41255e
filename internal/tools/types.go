// ABOUTME: Tool call and tool result types shared by the coordinator and executors
// ABOUTME: Result is a closed union of Immediate, Waiting, PendingUserAction, and Failed

package tools

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolNotAllowed indicates the tool is not in the current phase's allow-list.
var ErrToolNotAllowed = errors.New("tool not allowed in current phase")

// ErrDuplicateCall indicates a call ID that was already handled.
var ErrDuplicateCall = errors.New("duplicate tool call")

// ErrDuplicateUIToolCall indicates a UI tool call while another one is pending.
var ErrDuplicateUIToolCall = errors.New("another ui tool call is already pending")

// ErrNoPendingContinuation indicates a resume for an unknown or already-resumed continuation.
var ErrNoPendingContinuation = errors.New("no pending continuation")

// ErrNoPendingUIToolCall indicates a UI completion with no pending UI tool call.
var ErrNoPendingUIToolCall = errors.New("no pending ui tool call")

// Call is one tool invocation requested by the model.
type Call struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Continuation identifies a tool call paused until the user answers.
type Continuation struct {
	ID       string
	ToolName string
}

// Result is what a tool execution produced.
type Result interface {
	isResult()
}

// Immediate means the tool finished and Output is its answer.
type Immediate struct {
	Output json.RawMessage
}

// Waiting means the tool needs user input before it can answer.
type Waiting struct {
	Message      string
	Continuation Continuation
}

// PendingUserAction means the tool was shown to the user and will be
// completed later by a UI event rather than by a return value.
type PendingUserAction struct{}

// Failed means the tool ran but could not do its job.
type Failed struct {
	Cause error
}

func (Immediate) isResult()         {}
func (Waiting) isResult()           {}
func (PendingUserAction) isResult() {}
func (Failed) isResult()            {}

// Executor performs tool side effects. Returned errors are reported to the
// model as incomplete responses and never propagated further.
type Executor interface {
	Execute(ctx context.Context, call Call) (Result, error)
	Resume(ctx context.Context, continuationID string, input json.RawMessage) (Result, error)
}

// directives are the control keys a tool may put in its JSON output.
type directives struct {
	NextRequiredTool string `json:"next_required_tool"`
	DisableAfterUse  bool   `json:"disable_after_use"`
}

// readDirectives extracts control keys from an output object. Non-object
// outputs carry no directives.
func readDirectives(output json.RawMessage) directives {
	var d directives
	if len(output) == 0 {
		return d
	}
	_ = json.Unmarshal(output, &d)
	return d
}

// errorOutput is the body of every incomplete tool response.
func errorOutput(message string) json.RawMessage {
	out, _ := json.Marshal(map[string]string{
		"status": "incomplete",
		"error":  message,
	})
	return out
}
