package pipeline

import (
	"encoding/json"
	"strings"
	"time"
)

// Handle names used by control edges.
const (
	ControlSourceHandle = "from-node"
	ControlTargetHandle = "to-node"

	outputHandlePrefix = "output-"
	inputHandlePrefix  = "input-"
)

// Names of the built-in node definitions.
const (
	NodeBeginRequest = "BeginRequest"
	NodeEndRequest   = "EndRequest"
	NodeBreaker      = "Breaker"
	NodeTrue         = "True"
	NodeFalse        = "False"
	NodeEmpty        = "Empty"
)

// Graph is the persisted content of a pipeline: placed nodes and the edges between them.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphNode is one placed node instance inside a Graph.
// Position, Measured, Selected and Dragging belong to the editor and are carried through untouched.
type GraphNode struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Position json.RawMessage `json:"position,omitempty"`
	Data     GraphNodeData   `json:"data"`
	Measured json.RawMessage `json:"measured,omitempty"`
	Selected bool            `json:"selected,omitempty"`
	Dragging bool            `json:"dragging,omitempty"`
}

// GraphNodeData references the NodeDefinition a GraphNode is an instance of.
// Inputs and Outputs are copies of the definition's ports, kept for display.
type GraphNodeData struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// GraphEdge connects two graph nodes. See IsControl for how the edge kind is decided.
type GraphEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// IsControl reports whether the edge only orders execution and carries no data.
func (e GraphEdge) IsControl() bool {
	return e.SourceHandle == ControlSourceHandle && e.TargetHandle == ControlTargetHandle
}

// IsControlIn reports whether the edge enters its target through the control handle.
func (e GraphEdge) IsControlIn() bool {
	return e.TargetHandle == ControlTargetHandle
}

// IsControlOut reports whether the edge leaves its source through the control handle.
func (e GraphEdge) IsControlOut() bool {
	return e.SourceHandle == ControlSourceHandle
}

// SourcePort returns the output port name the edge reads from.
func (e GraphEdge) SourcePort() string {
	return strings.TrimPrefix(e.SourceHandle, outputHandlePrefix)
}

// TargetPort returns the input port name the edge writes to.
func (e GraphEdge) TargetPort() string {
	return strings.TrimPrefix(e.TargetHandle, inputHandlePrefix)
}

// NodeDefinition is reusable node content, stored independently of any graph.
// Script is only meaningful when IsInternal is false.
type NodeDefinition struct {
	ID         string   `json:"id"`
	IsInternal bool     `json:"isInternal"`
	Name       string   `json:"name"`
	Script     string   `json:"script"`
	Inputs     []string `json:"inputs"`
	Outputs    []string `json:"outputs"`
}

// Pipeline binds a Graph to the HTTP method and URL that trigger it.
type Pipeline struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Method  string `json:"method"`
	URL     string `json:"url"`
	Content Graph  `json:"content"`
}

// Run history statuses.
const (
	StatusPreparing = "preparing"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// History records one execution of a pipeline.
type History struct {
	ID         string          `json:"id"`
	PipelineID string          `json:"pipelineId"`
	Status     string          `json:"status"`
	StartAt    time.Time       `json:"startAt"`
	EndAt      *time.Time      `json:"endAt,omitempty"`
	Error      *string         `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Log levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// LogEntry is an operational event written to the log sink.
type LogEntry struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createAt"`
}

// InternalDefinitions returns the built-in node definitions every installation carries.
// IDs are left empty; stores assign them.
func InternalDefinitions() []NodeDefinition {
	return []NodeDefinition{
		{IsInternal: true, Name: NodeBeginRequest, Inputs: []string{}, Outputs: []string{"data"}},
		{IsInternal: true, Name: NodeEndRequest, Inputs: []string{"data"}, Outputs: []string{}},
		{IsInternal: true, Name: NodeBreaker, Inputs: []string{"condition"}, Outputs: []string{}},
		{IsInternal: true, Name: NodeTrue, Inputs: []string{}, Outputs: []string{"out"}},
		{IsInternal: true, Name: NodeFalse, Inputs: []string{}, Outputs: []string{"out"}},
		{IsInternal: true, Name: NodeEmpty, Inputs: []string{}, Outputs: []string{"out"}},
	}
}
