// Package builtins provides the interview tools that run in the session process.
//
// # Tools
//
// Interview flow:
//
//   - agent_ready: one-shot handshake; its output sets disable_after_use
//   - next_phase: advance to the next configured phase
//   - update_objective: publish progress on an interview objective
//   - validate_profile: check required fields; a valid draft chains to
//     submit_for_validation through next_required_tool
//
// Waiting on the user:
//
//   - get_user_upload: occupies the pending UI slot until the uploaded
//     documents are processed and the batch messenger completes the call
//   - submit_for_validation: occupies the pending UI slot until the user
//     confirms the profile
//   - ask_user_question: returns a continuation; the answer arrives through
//     Resume
//
// Documents:
//
//   - get_artifact: full extracted text of one artifact
//   - list_artifacts: ids, filenames, and summaries
//
// # Registration
//
//	builtins.RegisterAll(registry, builtins.Deps{State: st, Store: db, Bus: bus})
//
// Invalid input is reported as a tools.Failed result so the model sees the
// reason. Store failures are returned as errors.
package builtins
