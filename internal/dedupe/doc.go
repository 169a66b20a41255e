// Package dedupe suppresses duplicate tool calls by remembering call IDs
// for a bounded time window.
package dedupe
