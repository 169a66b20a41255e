// Package events provides the in-process event bus for an interview session.
//
// # Overview
//
// Every reactive component of the session (tool coordinator, artifact
// batch messenger, recorder, the CLI front end) talks to the others only by
// publishing and subscribing here. The bus is partitioned by Topic:
//
//   - artifact: uploads and extracted artifacts
//   - tool: tool calls, continuation resumes, UI tool completions
//   - llm: everything sent downstream to the model
//   - processing: batch lifecycle
//   - phase, state, objective, timeline: interview state changes
//
// # Delivery
//
// Delivery is fan-out. Each subscriber gets its own ordered, unbounded
// stream:
//
//	ch, subID := bus.Subscribe(ctx, events.TopicTool, events.TopicLLM)
//	bus.Emit(events.ToolCallRequested{CallID: "c1", Name: "agent_ready"})
//
// Publishing never blocks on a reader and publishing to a topic with no
// subscribers is a no-op. Events are only delivered to subscriptions that
// exist when Publish is called; there is no replay.
//
// # Payloads
//
// Payload is a closed union: every variant is a struct in this package and
// carries its own topic, so handlers can type-switch exhaustively.
package events
