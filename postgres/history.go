package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/pipeline"
)

const historyColumns = `id, pipeline_id, status, start_at, end_at, error, result`

// CreateHistory opens a history row for a run of pipelineID.
func (s *PGStore) CreateHistory(ctx context.Context, pipelineID, status string) (*pipeline.History, error) {
	h, err := scanHistory(s.db.QueryRow(ctx,
		`INSERT INTO history (id, pipeline_id, status) VALUES ($1, $2, $3) RETURNING `+historyColumns,
		uuid.NewString(), pipelineID, status,
	))
	if err != nil {
		return nil, fmt.Errorf("pipeline: insert history: %w", err)
	}
	return h, nil
}

// SetHistoryStatus moves a run to status.
// Returns ErrHistoryNotFound if the row doesn't exist.
func (s *PGStore) SetHistoryStatus(ctx context.Context, historyID, status string) error {
	return s.execHistory(ctx, "set history status",
		`UPDATE history SET status = $1 WHERE id = $2`, status, historyID)
}

// SucceedHistory closes a run with its result.
func (s *PGStore) SucceedHistory(ctx context.Context, historyID string, result json.RawMessage) error {
	return s.execHistory(ctx, "succeed history",
		`UPDATE history SET status = $1, end_at = NOW(), result = $2 WHERE id = $3`,
		pipeline.StatusSucceeded, rawJSON(result), historyID)
}

// FailHistory closes a run with an error.
func (s *PGStore) FailHistory(ctx context.Context, historyID, errText string) error {
	return s.execHistory(ctx, "fail history",
		`UPDATE history SET status = $1, end_at = NOW(), error = $2 WHERE id = $3`,
		pipeline.StatusFailed, errText, historyID)
}

// GetHistory fetches a run by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetHistory(ctx context.Context, historyID string) (*pipeline.History, error) {
	h, err := scanHistory(s.db.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM history WHERE id = $1`, historyID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pipeline: get history: %w", err)
	}
	return h, nil
}

// ListHistory returns runs newest first. An empty pipelineID lists every pipeline.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListHistory(ctx context.Context, pipelineID string, limit, offset int) ([]pipeline.History, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+historyColumns+` FROM history
		 WHERE $1::text = '' OR pipeline_id = $1
		 ORDER BY start_at DESC, id LIMIT $2 OFFSET $3`,
		pipelineID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list history: %w", err)
	}
	defer rows.Close()

	out := []pipeline.History{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("pipeline: scan history: %w", err)
		}
		out = append(out, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: rows history: %w", err)
	}
	return out, nil
}

// CountHistory counts runs. An empty pipelineID counts every pipeline.
func (s *PGStore) CountHistory(ctx context.Context, pipelineID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM history WHERE $1::text = '' OR pipeline_id = $1`, pipelineID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pipeline: count history: %w", err)
	}
	return n, nil
}

func (s *PGStore) execHistory(ctx context.Context, op, sql string, args ...any) error {
	ct, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("pipeline: %s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return pipeline.ErrHistoryNotFound
	}
	return nil
}

func scanHistory(row pgx.Row) (*pipeline.History, error) {
	var (
		h      pipeline.History
		result []byte
	)
	if err := row.Scan(&h.ID, &h.PipelineID, &h.Status, &h.StartAt, &h.EndAt, &h.Error, &result); err != nil {
		return nil, err
	}
	if result != nil {
		h.Result = json.RawMessage(result)
	}
	return &h, nil
}

// rawJSON passes a result through as text so pgx doesn't re-encode it; nil stores SQL NULL.
func rawJSON(v json.RawMessage) any {
	if v == nil {
		return nil
	}
	return string(v)
}
