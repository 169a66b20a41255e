// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers ledger persistence, filtering, pagination, and artifact CRUD

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created in nested directory")
}

func TestNewSQLiteStore_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, first.SaveArtifact(context.Background(), &Artifact{ID: "a1", Filename: "x", ContentType: "text/plain"}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(dbPath)
	require.NoError(t, err, "schema creation and migrations must be re-runnable")
	defer second.Close()

	got, err := second.GetArtifact(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Filename)
}

// storeImplementations runs the same behavior against SQLite and the mock.
func storeImplementations(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": newTestStore(t),
		"mock":   NewMockStore(),
	}
}

func TestSaveAndListEvents(t *testing.T) {
	for name, s := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			callID := "call-1"
			text := "hello"

			for i, topic := range []string{"tool", "llm", "tool", "llm"} {
				ev := &LedgerEvent{
					ID:        fmt.Sprintf("evt-%d", i),
					Topic:     topic,
					Kind:      "k",
					Payload:   json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
					CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
				}
				if i == 1 {
					ev.CallID = &callID
					ev.Text = &text
				}
				require.NoError(t, s.SaveEvent(ctx, ev))
			}

			all, err := s.ListEvents(ctx, ListEventsParams{})
			require.NoError(t, err)
			require.Len(t, all.Events, 4)
			assert.False(t, all.HasMore)
			for i, e := range all.Events {
				assert.Equal(t, fmt.Sprintf("evt-%d", i), e.ID, "events come back in save order")
			}
			assert.JSONEq(t, `{"n":1}`, string(all.Events[1].Payload))
			require.NotNil(t, all.Events[1].Text)
			assert.Equal(t, "hello", *all.Events[1].Text)
			assert.True(t, all.Events[2].CreatedAt.Equal(base.Add(2*time.Millisecond)))

			tools, err := s.ListEvents(ctx, ListEventsParams{Topic: "tool"})
			require.NoError(t, err)
			require.Len(t, tools.Events, 2)
			assert.Equal(t, "evt-0", tools.Events[0].ID)
			assert.Equal(t, "evt-2", tools.Events[1].ID)

			byCall, err := s.ListEvents(ctx, ListEventsParams{CallID: "call-1"})
			require.NoError(t, err)
			require.Len(t, byCall.Events, 1)
			assert.Equal(t, "evt-1", byCall.Events[0].ID)

			since := base.Add(2 * time.Millisecond)
			recent, err := s.ListEvents(ctx, ListEventsParams{Since: &since})
			require.NoError(t, err)
			assert.Len(t, recent.Events, 2)
		})
	}
}

func TestSaveEvent_Duplicate(t *testing.T) {
	for name, s := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ev := &LedgerEvent{ID: "dup", Topic: "tool", Kind: "k", CreatedAt: time.Now()}
			require.NoError(t, s.SaveEvent(context.Background(), ev))
			assert.ErrorIs(t, s.SaveEvent(context.Background(), ev), ErrDuplicateEvent)
		})
	}
}

func TestListEvents_Pagination(t *testing.T) {
	for name, s := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				require.NoError(t, s.SaveEvent(ctx, &LedgerEvent{
					ID: fmt.Sprintf("evt-%d", i), Topic: "llm", Kind: "k", CreatedAt: time.Now(),
				}))
			}

			var ids []string
			cursor := ""
			pages := 0
			for {
				page, err := s.ListEvents(ctx, ListEventsParams{Limit: 2, Cursor: cursor})
				require.NoError(t, err)
				pages++
				for _, e := range page.Events {
					ids = append(ids, e.ID)
				}
				if !page.HasMore {
					assert.Empty(t, page.NextCursor)
					break
				}
				cursor = page.NextCursor
			}

			assert.Equal(t, 3, pages)
			assert.Equal(t, []string{"evt-0", "evt-1", "evt-2", "evt-3", "evt-4"}, ids)
		})
	}
}

func TestListEvents_BadCursor(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	_, err := s.ListEvents(context.Background(), ListEventsParams{Cursor: "%%%"})
	assert.Error(t, err)
}

func TestArtifacts(t *testing.T) {
	for name, s := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			older := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

			a1 := &Artifact{
				ID: "a1", UploadID: "u1", Filename: "resume.pdf", ContentType: "application/pdf",
				ExtractedText: "Jane Doe", Size: 1024, Source: "upload", CreatedAt: older,
			}
			a2 := &Artifact{
				ID: "a2", Filename: "essay.md", ContentType: "text/markdown", Purpose: "writing_sample",
				ExtractedText: "An essay", CreatedAt: older.Add(time.Minute),
			}
			require.NoError(t, s.SaveArtifact(ctx, a1))
			require.NoError(t, s.SaveArtifact(ctx, a2))

			got, err := s.GetArtifact(ctx, "a1")
			require.NoError(t, err)
			assert.Equal(t, "u1", got.UploadID)
			assert.Equal(t, "Jane Doe", got.ExtractedText)
			assert.Equal(t, int64(1024), got.Size)
			assert.Equal(t, "upload", got.Source)
			assert.True(t, got.CreatedAt.Equal(older))

			_, err = s.GetArtifact(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			list, err := s.ListArtifacts(ctx, 0)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "a2", list[0].ID, "newest first")

			limited, err := s.ListArtifacts(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			// Saving again replaces the record.
			a1.Summary = "Engineer"
			require.NoError(t, s.SaveArtifact(ctx, a1))
			got, err = s.GetArtifact(ctx, "a1")
			require.NoError(t, err)
			assert.Equal(t, "Engineer", got.Summary)
		})
	}
}

func TestSaveArtifact_RequiresID(t *testing.T) {
	for name, s := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.SaveArtifact(context.Background(), &Artifact{Filename: "x"}))
		})
	}
}

// newTestStore creates a SQLite store in a temp directory
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}
