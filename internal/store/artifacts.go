// ABOUTME: Artifact persistence so extracted documents can be fetched after the batch message
// ABOUTME: Backs the get_artifact and list_artifacts tools

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveArtifact inserts or replaces an artifact.
func (s *SQLiteStore) SaveArtifact(ctx context.Context, a *Artifact) error {
	if a.ID == "" {
		return errors.New("artifact id required")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO artifacts (
			artifact_id, upload_id, filename, content_type, purpose,
			extracted_text, summary, size, source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(artifact_id) DO UPDATE SET
			upload_id = excluded.upload_id,
			filename = excluded.filename,
			content_type = excluded.content_type,
			purpose = excluded.purpose,
			extracted_text = excluded.extracted_text,
			summary = excluded.summary,
			size = excluded.size,
			source = excluded.source
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		nullString(a.UploadID),
		a.Filename,
		a.ContentType,
		nullString(a.Purpose),
		a.ExtractedText,
		nullString(a.Summary),
		a.Size,
		nullString(a.Source),
		a.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}

	s.logger.Debug("saved artifact", "artifact_id", a.ID, "filename", a.Filename)
	return nil
}

const artifactColumns = `artifact_id, upload_id, filename, content_type, purpose,
	extracted_text, summary, size, source, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	var (
		a                                  Artifact
		uploadID, purpose, summary, source sql.NullString
		createdStr                         string
	)
	if err := row.Scan(&a.ID, &uploadID, &a.Filename, &a.ContentType, &purpose,
		&a.ExtractedText, &summary, &a.Size, &source, &createdStr); err != nil {
		return nil, err
	}
	a.UploadID = uploadID.String
	a.Purpose = purpose.String
	a.Summary = summary.String
	a.Source = source.String

	var err error
	a.CreatedAt, err = time.Parse(timeFormat, createdStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &a, nil
}

// GetArtifact retrieves an artifact by ID
func (s *SQLiteStore) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE artifact_id = ?`, id)

	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying artifact: %w", err)
	}
	return a, nil
}

// ListArtifacts returns artifacts newest first. A limit <= 0 returns all of them.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, limit int) ([]*Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts ORDER BY created_at DESC, artifact_id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artifact row: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifact rows: %w", err)
	}
	return artifacts, nil
}
