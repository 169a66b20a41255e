// Package logging builds the slog logger for interview-gateway.
//
// Text output goes through a console handler that puts the component tag
// first, since every package derives its logger with
// logger.With("component", ...). JSON output uses slog's JSON handler.
// Logs always go to the writer given to New; the CLI passes stderr because
// stdout carries the protocol.
package logging
