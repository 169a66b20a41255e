// Package state holds the interview session's shared mutable state.
//
// The Coordinator owns the current phase, the per-phase tool allow-list
// (minus tools excluded for the session), and the single pending UI tool
// call slot. Other components never mutate these directly; they call the
// Coordinator, whose operations are serialized.
//
// Changes are announced on the bus: PhaseChanged on the phase topic,
// ToolExcluded and PendingUIToolChanged on the state topic.
package state
