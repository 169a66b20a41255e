// Package tools executes tool calls requested by the model.
//
// # Coordinator
//
// The Coordinator consumes the tool topic and drives each call through
//
//	received → gated → executing → completed | awaiting-continuation | error
//
// Gating checks the current phase's allow-list on the state coordinator.
// Blocked calls and executor failures are answered right away with an
// incomplete ToolResponse; the executor is never invoked for a blocked call.
//
// Results are handled by kind:
//
//   - Immediate: answered with a completed ToolResponse. Output keys
//     "next_required_tool" (forces the next tool) and "disable_after_use"
//     (drops the tool for the session) are honored.
//   - Waiting: the continuation is parked and ContinuationNeeded is
//     published; the call stays open until ResumeContinuation.
//   - PendingUserAction: the call takes the single pending UI slot. If the
//     slot is taken, the call is rejected as incomplete.
//   - Failed: answered as incomplete with the cause.
//
// A continuation resumes at most once. Call IDs seen within the dedupe
// window are dropped.
//
// # Registry
//
// Registry is the in-process Executor used by the session. Built-in tools
// register a Handler and, if they can wait on the user, a ResumeHandler.
package tools
