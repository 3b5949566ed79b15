package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meikuraledutech/pipeline"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS nodes (
    id          TEXT PRIMARY KEY,
    is_internal BOOLEAN NOT NULL DEFAULT FALSE,
    name        TEXT NOT NULL,
    script      TEXT NOT NULL DEFAULT '',
    inputs      TEXT[] NOT NULL DEFAULT '{}',
    outputs     TEXT[] NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS pipelines (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    method     TEXT NOT NULL,
    url        TEXT NOT NULL,
    content    JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (method, url)
);

CREATE TABLE IF NOT EXISTS history (
    id          TEXT PRIMARY KEY,
    pipeline_id TEXT NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
    status      TEXT NOT NULL,
    start_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    end_at      TIMESTAMPTZ,
    error       TEXT,
    result      JSONB
);

CREATE TABLE IF NOT EXISTS logs (
    id         BIGSERIAL PRIMARY KEY,
    level      TEXT NOT NULL,
    category   TEXT NOT NULL,
    message    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_nodes_internal_name ON nodes(name) WHERE is_internal;
CREATE INDEX IF NOT EXISTS idx_history_pipeline    ON history(pipeline_id);
CREATE INDEX IF NOT EXISTS idx_history_start_at    ON history(start_at);
CREATE INDEX IF NOT EXISTS idx_logs_created_at     ON logs(created_at);
`

const seedInternalSQL = `
INSERT INTO nodes (id, is_internal, name, inputs, outputs)
SELECT $1::text, TRUE, $2::text, $3::text[], $4::text[]
WHERE NOT EXISTS (SELECT 1 FROM nodes WHERE is_internal AND name = $2::text)`

// CreateSchema creates the tables if they don't exist and seeds the internal node definitions.
// Running it again leaves existing rows alone.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("pipeline: create schema: %w", err)
	}

	for _, def := range pipeline.InternalDefinitions() {
		if _, err := tx.Exec(ctx, seedInternalSQL,
			uuid.NewString(), def.Name, def.Inputs, def.Outputs,
		); err != nil {
			return fmt.Errorf("pipeline: seed node %s: %w", def.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// DropSchema drops every table the store owns.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS history, logs, pipelines, nodes CASCADE;`)
	return err
}
