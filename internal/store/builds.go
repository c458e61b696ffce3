package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Build is one recorded compile.
type Build struct {
	ID              string    `json:"id"`
	Layout          string    `json:"layout"`
	LayoutDigest    string    `json:"layout_digest"`
	DocumentDigest  string    `json:"document_digest"`
	OutputPath      string    `json:"output_path"`
	RuleCount       int       `json:"rule_count"`
	CompilerVersion string    `json:"compiler_version"`
	CreatedAt       time.Time `json:"created_at"`
}

// RecordBuild appends b to the history and returns it with its ID and
// timestamp filled in. A caller-supplied ID or CreatedAt is kept.
func (s *Store) RecordBuild(ctx context.Context, b Build) (Build, error) {
	if b.Layout == "" {
		return Build{}, fmt.Errorf("record build: layout is required")
	}
	if b.ID == "" {
		b.ID = s.newID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	b.CreatedAt = b.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds
		(id, layout, layout_digest, document_digest, output_path, rule_count, compiler_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID,
		b.Layout,
		b.LayoutDigest,
		b.DocumentDigest,
		b.OutputPath,
		b.RuleCount,
		b.CompilerVersion,
		b.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Build{}, fmt.Errorf("record build: %w", err)
	}
	return b, nil
}

// LatestBuild returns the most recent build of a layout. ok is false when
// the layout has never been built.
func (s *Store) LatestBuild(ctx context.Context, layout string) (b Build, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, layout, layout_digest, document_digest, output_path, rule_count, compiler_version, created_at
		FROM builds
		WHERE layout = ?
		ORDER BY seq DESC
		LIMIT 1
	`, layout)

	b, err = scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Build{}, false, nil
	}
	if err != nil {
		return Build{}, false, fmt.Errorf("latest build: %w", err)
	}
	return b, true, nil
}

// ListBuilds returns builds newest first. An empty layout lists every
// layout; limit <= 0 means no limit.
//
// Returns an empty slice (not nil) when there is no history.
func (s *Store) ListBuilds(ctx context.Context, layout string, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, layout, layout_digest, document_digest, output_path, rule_count, compiler_version, created_at
		FROM builds
		WHERE ? = '' OR layout = ?
		ORDER BY seq DESC
		LIMIT ?
	`, layout, layout, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	builds := []Build{}
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (Build, error) {
	var b Build
	var created string
	if err := row.Scan(
		&b.ID,
		&b.Layout,
		&b.LayoutDigest,
		&b.DocumentDigest,
		&b.OutputPath,
		&b.RuleCount,
		&b.CompilerVersion,
		&created,
	); err != nil {
		return Build{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Build{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	b.CreatedAt = t
	return b, nil
}
