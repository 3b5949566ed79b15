package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/pipeline"
)

const nodeColumns = `id, is_internal, name, script, inputs, outputs`

// CreateNode inserts a user node definition.
// If node.ID is empty, a UUID is auto-generated. Internal definitions are only created by CreateSchema.
func (s *PGStore) CreateNode(ctx context.Context, node *pipeline.NodeDefinition) (*pipeline.NodeDefinition, error) {
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	node.IsInternal = false
	normalizePorts(node)

	_, err := s.db.Exec(ctx,
		`INSERT INTO nodes (id, is_internal, name, script, inputs, outputs) VALUES ($1, FALSE, $2, $3, $4, $5)`,
		node.ID, node.Name, node.Script, node.Inputs, node.Outputs,
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline: insert node: %w", err)
	}

	return node, nil
}

// GetNode fetches a single node definition by its ID.
// Returns nil, nil if not found.
func (s *PGStore) GetNode(ctx context.Context, nodeID string) (*pipeline.NodeDefinition, error) {
	n, err := scanNode(s.db.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = $1`, nodeID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pipeline: get node: %w", err)
	}

	return n, nil
}

// UpdateNode replaces the name, script and ports of a user node definition.
// Returns ErrNodeNotFound if the node doesn't exist and ErrNodeReadOnly for internal nodes.
func (s *PGStore) UpdateNode(ctx context.Context, node *pipeline.NodeDefinition) error {
	if err := s.checkWritable(ctx, node.ID); err != nil {
		return err
	}
	normalizePorts(node)

	_, err := s.db.Exec(ctx,
		`UPDATE nodes SET name = $1, script = $2, inputs = $3, outputs = $4 WHERE id = $5 AND NOT is_internal`,
		node.Name, node.Script, node.Inputs, node.Outputs, node.ID,
	)
	if err != nil {
		return fmt.Errorf("pipeline: update node: %w", err)
	}
	return nil
}

// DeleteNode deletes a user node definition by its ID.
// No error if the node doesn't exist. Returns ErrNodeReadOnly for internal nodes.
func (s *PGStore) DeleteNode(ctx context.Context, nodeID string) error {
	if err := s.checkWritable(ctx, nodeID); err != nil && !errors.Is(err, pipeline.ErrNodeNotFound) {
		return err
	}

	_, err := s.db.Exec(ctx, `DELETE FROM nodes WHERE id = $1 AND NOT is_internal`, nodeID)
	if err != nil {
		return fmt.Errorf("pipeline: delete node: %w", err)
	}
	return nil
}

// ListNodes returns node definitions, internal ones first, then by created_at.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListNodes(ctx context.Context, limit, offset int) ([]pipeline.NodeDefinition, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+nodeColumns+` FROM nodes ORDER BY is_internal DESC, created_at, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []pipeline.NodeDefinition{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("pipeline: scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: rows nodes: %w", err)
	}

	return nodes, nil
}

// CountNodes returns the number of stored node definitions.
func (s *PGStore) CountNodes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pipeline: count nodes: %w", err)
	}
	return n, nil
}

func (s *PGStore) checkWritable(ctx context.Context, nodeID string) error {
	var internal bool
	err := s.db.QueryRow(ctx, `SELECT is_internal FROM nodes WHERE id = $1`, nodeID).Scan(&internal)
	if err != nil {
		if isNoRows(err) {
			return pipeline.ErrNodeNotFound
		}
		return fmt.Errorf("pipeline: find node: %w", err)
	}
	if internal {
		return pipeline.ErrNodeReadOnly
	}
	return nil
}

func scanNode(row pgx.Row) (*pipeline.NodeDefinition, error) {
	var n pipeline.NodeDefinition
	if err := row.Scan(&n.ID, &n.IsInternal, &n.Name, &n.Script, &n.Inputs, &n.Outputs); err != nil {
		return nil, err
	}
	return &n, nil
}

// normalizePorts keeps NOT NULL array columns happy.
func normalizePorts(node *pipeline.NodeDefinition) {
	if node.Inputs == nil {
		node.Inputs = []string{}
	}
	if node.Outputs == nil {
		node.Outputs = []string{}
	}
}
