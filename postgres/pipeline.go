package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meikuraledutech/pipeline"
)

const pipelineColumns = `id, name, method, url, content`

// uniqueViolation is the PostgreSQL error code for a unique constraint failure.
const uniqueViolation = "23505"

// CreatePipeline validates and saves a pipeline.
// If p.ID is empty, a UUID is auto-generated. Method and URL are stored normalized.
// Returns ErrRouteConflict if another pipeline already serves the same method and url.
func (s *PGStore) CreatePipeline(ctx context.Context, p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
	p.Method, p.URL = pipeline.NormalizeRoute(p.Method, p.URL)
	if err := pipeline.ValidatePipeline(p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO pipelines (id, name, method, url, content) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Method, p.URL, p.Content,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, pipeline.ErrRouteConflict
		}
		return nil, fmt.Errorf("pipeline: insert pipeline: %w", err)
	}

	return p, nil
}

// GetPipeline fetches a pipeline by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetPipeline(ctx context.Context, pipelineID string) (*pipeline.Pipeline, error) {
	p, err := scanPipeline(s.db.QueryRow(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines WHERE id = $1`, pipelineID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pipeline: get pipeline: %w", err)
	}
	return p, nil
}

// FindPipeline fetches the pipeline serving method and url.
// Returns nil, nil if none does.
func (s *PGStore) FindPipeline(ctx context.Context, method, url string) (*pipeline.Pipeline, error) {
	method, url = pipeline.NormalizeRoute(method, url)
	p, err := scanPipeline(s.db.QueryRow(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines WHERE method = $1 AND url = $2`, method, url,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pipeline: find pipeline: %w", err)
	}
	return p, nil
}

// UpdatePipeline validates and replaces an existing pipeline.
// Returns ErrPipelineNotFound if it doesn't exist and ErrRouteConflict if the new route is taken.
func (s *PGStore) UpdatePipeline(ctx context.Context, p *pipeline.Pipeline) error {
	p.Method, p.URL = pipeline.NormalizeRoute(p.Method, p.URL)
	if err := pipeline.ValidatePipeline(p); err != nil {
		return err
	}

	ct, err := s.db.Exec(ctx,
		`UPDATE pipelines SET name = $1, method = $2, url = $3, content = $4 WHERE id = $5`,
		p.Name, p.Method, p.URL, p.Content, p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return pipeline.ErrRouteConflict
		}
		return fmt.Errorf("pipeline: update pipeline: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pipeline.ErrPipelineNotFound
	}
	return nil
}

// DeletePipeline deletes a pipeline and, by cascade, its history.
// No error if the pipeline doesn't exist.
func (s *PGStore) DeletePipeline(ctx context.Context, pipelineID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, pipelineID)
	if err != nil {
		return fmt.Errorf("pipeline: delete pipeline: %w", err)
	}
	return nil
}

// ListPipelines returns pipelines ordered by created_at.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListPipelines(ctx context.Context, limit, offset int) ([]pipeline.Pipeline, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pipelineColumns+` FROM pipelines ORDER BY created_at, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list pipelines: %w", err)
	}
	defer rows.Close()

	out := []pipeline.Pipeline{}
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("pipeline: scan pipeline: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: rows pipelines: %w", err)
	}
	return out, nil
}

// CountPipelines returns the number of stored pipelines.
func (s *PGStore) CountPipelines(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM pipelines`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pipeline: count pipelines: %w", err)
	}
	return n, nil
}

func scanPipeline(row pgx.Row) (*pipeline.Pipeline, error) {
	var p pipeline.Pipeline
	if err := row.Scan(&p.ID, &p.Name, &p.Method, &p.URL, &p.Content); err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
