// Package store provides persistent storage for interview sessions using SQLite.
//
// # Data Models
//
//   - LedgerEvent: every bus event of a session, in publish order, with the
//     payload kept as JSON
//   - Artifact: an extracted document, retrievable by the get_artifact tool
//     after its summary was sent to the model
//
// # SQLite Configuration
//
// The store uses modernc.org/sqlite (pure Go, no cgo) with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//
// Ledger rows carry an autoincrement sequence so ListEvents returns events in
// the order they were saved; pagination cursors are opaque encodings of that
// sequence. Timestamps are stored as fixed-width UTC strings.
//
// # Testing
//
// Use NewMockStore() for unit tests. It honors the same filters and cursor
// rules as SQLiteStore.
package store
