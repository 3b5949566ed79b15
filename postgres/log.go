package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/pipeline"
)

const logColumns = `id, level, category, message, created_at`

// CreateLog appends an entry to the log sink.
func (s *PGStore) CreateLog(ctx context.Context, level, category, message string) (*pipeline.LogEntry, error) {
	l, err := scanLog(s.db.QueryRow(ctx,
		`INSERT INTO logs (level, category, message) VALUES ($1, $2, $3) RETURNING `+logColumns,
		level, category, message,
	))
	if err != nil {
		return nil, fmt.Errorf("pipeline: insert log: %w", err)
	}
	return l, nil
}

// GetLog fetches a log entry by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetLog(ctx context.Context, logID int64) (*pipeline.LogEntry, error) {
	l, err := scanLog(s.db.QueryRow(ctx,
		`SELECT `+logColumns+` FROM logs WHERE id = $1`, logID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pipeline: get log: %w", err)
	}
	return l, nil
}

// ListLogs returns log entries newest first.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListLogs(ctx context.Context, limit, offset int) ([]pipeline.LogEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+logColumns+` FROM logs ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list logs: %w", err)
	}
	defer rows.Close()

	out := []pipeline.LogEntry{}
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("pipeline: scan log: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: rows logs: %w", err)
	}
	return out, nil
}

// DeleteLog deletes a log entry.
// Returns ErrLogNotFound if it doesn't exist.
func (s *PGStore) DeleteLog(ctx context.Context, logID int64) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM logs WHERE id = $1`, logID)
	if err != nil {
		return fmt.Errorf("pipeline: delete log: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pipeline.ErrLogNotFound
	}
	return nil
}

// CountLogs returns the number of log entries.
func (s *PGStore) CountLogs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pipeline: count logs: %w", err)
	}
	return n, nil
}

func scanLog(row pgx.Row) (*pipeline.LogEntry, error) {
	var l pipeline.LogEntry
	if err := row.Scan(&l.ID, &l.Level, &l.Category, &l.Message, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}
