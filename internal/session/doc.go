// Package session assembles one interview conversation.
//
// A Session owns the event bus and the components subscribed to it:
//
//   - state.Coordinator: phase, tool allow-list, pending UI tool slot
//   - tools.Coordinator: gates and executes tool calls via the built-in registry
//   - artifacts.Messenger: folds uploaded documents into one model message
//   - recorder.Recorder: writes every event to the store
//
// Run starts the reactors in an errgroup. Callers wait with WaitReady before
// publishing, then feed upstream input through RequestToolCall, Resume,
// CompleteUpload, ProduceArtifact, and CompleteUITool, and read the downstream
// model channel by subscribing to the llm topic.
package session
