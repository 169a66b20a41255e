// ABOUTME: Ledger event store recording every bus event of an interview session
// ABOUTME: Provides SaveEvent and cursor-paginated ListEvents

package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// SaveEvent persists a ledger event to the database
func (s *SQLiteStore) SaveEvent(ctx context.Context, event *LedgerEvent) error {
	if event.ID == "" {
		return errors.New("event id required")
	}
	payload := event.Payload
	if len(payload) == 0 {
		payload = []byte("null")
	}

	query := `
		INSERT INTO ledger_events (event_id, topic, kind, call_id, text, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Topic,
		event.Kind,
		event.CallID,
		event.Text,
		string(payload),
		event.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("inserting event: %w", err)
	}

	s.logger.Debug("saved ledger event",
		"event_id", event.ID,
		"topic", event.Topic,
		"kind", event.Kind,
	)
	return nil
}

// encodeCursor creates an opaque cursor from a ledger sequence number
func encodeCursor(seq int64) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.FormatInt(seq, 10)))
}

// decodeCursor parses a cursor back into a ledger sequence number
func decodeCursor(cursor string) (int64, error) {
	data, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("decoding base64: %w", err)
	}
	seq, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing sequence: %w", err)
	}
	return seq, nil
}

// ListEvents retrieves ledger events in the order they were saved.
func (s *SQLiteStore) ListEvents(ctx context.Context, p ListEventsParams) (*ListEventsResult, error) {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}

	var args []any
	query := `
		SELECT seq, event_id, topic, kind, call_id, text, payload_json, created_at
		FROM ledger_events
		WHERE 1 = 1
	`

	if p.Topic != "" {
		query += ` AND topic = ?`
		args = append(args, p.Topic)
	}
	if p.CallID != "" {
		query += ` AND call_id = ?`
		args = append(args, p.CallID)
	}
	if p.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, p.Since.UTC().Format(timeFormat))
	}
	if p.Cursor != "" {
		after, err := decodeCursor(p.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		query += ` AND seq > ?`
		args = append(args, after)
	}

	// Fetch limit+1 to detect if there are more results
	query += ` ORDER BY seq ASC LIMIT ?`
	args = append(args, p.Limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var (
		events []LedgerEvent
		seqs   []int64
	)
	for rows.Next() {
		var (
			event      LedgerEvent
			seq        int64
			payload    string
			createdStr string
		)
		if err := rows.Scan(&seq, &event.ID, &event.Topic, &event.Kind,
			&event.CallID, &event.Text, &payload, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		event.Payload = []byte(payload)
		event.CreatedAt, err = time.Parse(timeFormat, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		events = append(events, event)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}

	hasMore := len(events) > p.Limit
	if hasMore {
		events = events[:p.Limit]
	}

	result := &ListEventsResult{
		Events:  events,
		HasMore: hasMore,
	}
	if hasMore {
		result.NextCursor = encodeCursor(seqs[p.Limit-1])
	}
	return result, nil
}
