// Package artifacts turns the artifacts of an upload into a single message
// for the model.
//
// When an upload completes, the Messenger opens a batch expecting one
// artifact per extractable file. Uploads arriving while a batch is open are
// merged into it. Every produced artifact is either collected or skipped
// (images and repository analyses are sent on their own, empty extractions
// are dropped). The batch closes when collected plus skipped reaches the
// expected count, or when the timeout of PerDocumentTimeout per expected
// document fires.
//
// On close, collected artifacts are rendered as one consolidated message.
// If a UI tool call is waiting on the user, the message completes that call
// instead of opening a new user turn.
package artifacts
