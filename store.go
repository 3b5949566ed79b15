package pipeline

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrCycleDetected    = errors.New("pipeline: cycle detected in control edges")
	ErrInvalidGraph     = errors.New("pipeline: invalid graph")
	ErrInvalidPipeline  = errors.New("pipeline: invalid pipeline")
	ErrNodeNotFound     = errors.New("pipeline: node not found")
	ErrNodeReadOnly     = errors.New("pipeline: internal nodes are read-only")
	ErrPipelineNotFound = errors.New("pipeline: pipeline not found")
	ErrRouteConflict    = errors.New("pipeline: a pipeline already serves this method and url")
	ErrHistoryNotFound  = errors.New("pipeline: history not found")
	ErrLogNotFound      = errors.New("pipeline: log not found")
)

// NodeStore persists node definitions.
// Get* methods return nil, nil when nothing matches.
type NodeStore interface {
	CreateNode(ctx context.Context, node *NodeDefinition) (*NodeDefinition, error)
	GetNode(ctx context.Context, nodeID string) (*NodeDefinition, error)
	UpdateNode(ctx context.Context, node *NodeDefinition) error
	DeleteNode(ctx context.Context, nodeID string) error
	ListNodes(ctx context.Context, limit, offset int) ([]NodeDefinition, error)
	CountNodes(ctx context.Context) (int, error)
}

// PipelineStore persists pipelines.
type PipelineStore interface {
	CreatePipeline(ctx context.Context, p *Pipeline) (*Pipeline, error)
	GetPipeline(ctx context.Context, pipelineID string) (*Pipeline, error)
	FindPipeline(ctx context.Context, method, url string) (*Pipeline, error)
	UpdatePipeline(ctx context.Context, p *Pipeline) error
	DeletePipeline(ctx context.Context, pipelineID string) error
	ListPipelines(ctx context.Context, limit, offset int) ([]Pipeline, error)
	CountPipelines(ctx context.Context) (int, error)
}

// HistoryStore records run history.
// A run moves preparing → running → succeeded | failed.
type HistoryStore interface {
	CreateHistory(ctx context.Context, pipelineID, status string) (*History, error)
	SetHistoryStatus(ctx context.Context, historyID, status string) error
	SucceedHistory(ctx context.Context, historyID string, result json.RawMessage) error
	FailHistory(ctx context.Context, historyID, errText string) error
	GetHistory(ctx context.Context, historyID string) (*History, error)
	// ListHistory lists runs newest first. An empty pipelineID lists every pipeline.
	ListHistory(ctx context.Context, pipelineID string, limit, offset int) ([]History, error)
	CountHistory(ctx context.Context, pipelineID string) (int, error)
}

// LogStore is the sink for operational events.
type LogStore interface {
	CreateLog(ctx context.Context, level, category, message string) (*LogEntry, error)
	GetLog(ctx context.Context, logID int64) (*LogEntry, error)
	ListLogs(ctx context.Context, limit, offset int) ([]LogEntry, error)
	DeleteLog(ctx context.Context, logID int64) error
	CountLogs(ctx context.Context) (int, error)
}

// Store defines the contract for everything the pipeline server persists.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	NodeStore
	PipelineStore
	HistoryStore
	LogStore
}
