package engine

import "github.com/meikuraledutech/pipeline"

// EntryPort is the port the entry node seeds with the request payload,
// and the port of the terminal node that holds the result.
const EntryPort = "data"

// Status is where a run is in its lifecycle.
type Status int

const (
	StatusNotStarted Status = iota
	StatusQueued
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not started"
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// DataCache maps a graph node id to the values it produced, by output port.
// Entries are only ever added.
type DataCache map[string]map[string]any

// Output returns the value a node produced on a port.
func (c DataCache) Output(nodeID, port string) (any, bool) {
	outs, ok := c[nodeID]
	if !ok {
		return nil, false
	}
	v, ok := outs[port]
	return v, ok
}

// Has reports whether the node has an entry.
func (c DataCache) Has(nodeID string) bool {
	_, ok := c[nodeID]
	return ok
}

// add stores a node's outputs unless it already has an entry. It reports whether it stored.
func (c DataCache) add(nodeID string, outs map[string]any) bool {
	if _, exists := c[nodeID]; exists {
		return false
	}
	c[nodeID] = outs
	return true
}

// RunState is everything one run knows. Each step takes a RunState and returns the next one.
// The cache is shared between successive states; it is append-only, so earlier states stay valid.
type RunState struct {
	graph    *BoundGraph
	cache    DataCache
	current  []*CombinedNode
	next     []*CombinedNode
	status   Status
	terminal string
	waves    int
	err      error
}

// Seed starts a run: the entry node's "data" output holds the request payload.
func Seed(b *BoundGraph, payload any) (RunState, error) {
	if b == nil || b.entry == nil {
		return RunState{}, ErrNotBound
	}
	cache := make(DataCache, len(b.order))
	cache.add(b.entry.ID(), map[string]any{EntryPort: payload})
	return RunState{graph: b, cache: cache, status: StatusNotStarted}, nil
}

// IsComplete reports whether EndRequest has run.
func (s RunState) IsComplete() bool { return s.status == StatusCompleted }

// Status returns the lifecycle status.
func (s RunState) Status() Status { return s.status }

// Err returns the error that failed the run, if any.
func (s RunState) Err() error { return s.err }

// Cache returns the run's data cache. Callers must not modify it.
func (s RunState) Cache() DataCache { return s.cache }

// Current returns the ids of the nodes in the current wave, in dispatch order.
func (s RunState) Current() []string { return nodeIDs(s.current) }

// Waves returns how many waves have been dispatched.
func (s RunState) Waves() int { return s.waves }

// TerminalID returns the id of the EndRequest node once the run is complete.
func (s RunState) TerminalID() string { return s.terminal }

// Graph returns the bound graph the run executes.
func (s RunState) Graph() *BoundGraph { return s.graph }

func (s RunState) fail(err error) RunState {
	s.status = StatusFailed
	s.err = err
	return s
}

func nodeIDs(nodes []*CombinedNode) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	return ids
}

// edgesInto returns the data edges ending at a node, in graph edge order.
func (b *BoundGraph) edgesInto(id string) []pipeline.GraphEdge { return b.dataIn[id] }
