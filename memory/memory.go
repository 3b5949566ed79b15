// Package memory implements pipeline.Store in process memory.
// It backs the API tests and single-process setups that don't need PostgreSQL.
package memory

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/pipeline"
)

// Store is an in-memory implementation of pipeline.Store.
type Store struct {
	mu sync.RWMutex

	nodes     map[string]*pipeline.NodeDefinition
	nodeOrder []string

	pipelines     map[string]*pipeline.Pipeline
	pipelineOrder []string

	history map[string]*pipeline.History
	runs    []string

	logs    map[int64]*pipeline.LogEntry
	nextLog int64

	now func() time.Time
}

var _ pipeline.Store = (*Store)(nil)

// New creates an empty Store. Call CreateSchema to seed the internal node definitions.
func New() *Store {
	s := &Store{now: time.Now}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.nodes = make(map[string]*pipeline.NodeDefinition)
	s.nodeOrder = nil
	s.pipelines = make(map[string]*pipeline.Pipeline)
	s.pipelineOrder = nil
	s.history = make(map[string]*pipeline.History)
	s.runs = nil
	s.logs = make(map[int64]*pipeline.LogEntry)
	s.nextLog = 0
}

// CreateSchema seeds the internal node definitions that are missing.
func (s *Store) CreateSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seeded := make(map[string]bool)
	for _, n := range s.nodes {
		if n.IsInternal {
			seeded[n.Name] = true
		}
	}
	for _, def := range pipeline.InternalDefinitions() {
		if seeded[def.Name] {
			continue
		}
		def.ID = uuid.NewString()
		s.nodes[def.ID] = cloneNode(&def)
		s.nodeOrder = append(s.nodeOrder, def.ID)
	}
	return nil
}

// DropSchema discards everything.
func (s *Store) DropSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// --- nodes ---

// CreateNode stores a user node definition.
func (s *Store) CreateNode(_ context.Context, node *pipeline.NodeDefinition) (*pipeline.NodeDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	node.IsInternal = false
	normalizePorts(node)

	if _, ok := s.nodes[node.ID]; !ok {
		s.nodeOrder = append(s.nodeOrder, node.ID)
	}
	s.nodes[node.ID] = cloneNode(node)
	return node, nil
}

// GetNode returns nil, nil if the node doesn't exist.
func (s *Store) GetNode(_ context.Context, nodeID string) (*pipeline.NodeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return nil, nil
	}
	return cloneNode(n), nil
}

// UpdateNode replaces a user node definition.
func (s *Store) UpdateNode(_ context.Context, node *pipeline.NodeDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.nodes[node.ID]
	if !ok {
		return pipeline.ErrNodeNotFound
	}
	if cur.IsInternal {
		return pipeline.ErrNodeReadOnly
	}
	node.IsInternal = false
	normalizePorts(node)
	s.nodes[node.ID] = cloneNode(node)
	return nil
}

// DeleteNode removes a user node definition. Missing nodes are not an error.
func (s *Store) DeleteNode(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.nodes[nodeID]
	if !ok {
		return nil
	}
	if cur.IsInternal {
		return pipeline.ErrNodeReadOnly
	}
	delete(s.nodes, nodeID)
	s.nodeOrder = remove(s.nodeOrder, nodeID)
	return nil
}

// ListNodes returns internal definitions first, then user definitions in creation order.
func (s *Store) ListNodes(_ context.Context, limit, offset int) ([]pipeline.NodeDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := slices.Clone(s.nodeOrder)
	sort.SliceStable(ids, func(i, j int) bool {
		return s.nodes[ids[i]].IsInternal && !s.nodes[ids[j]].IsInternal
	})

	out := []pipeline.NodeDefinition{}
	for _, id := range page(ids, limit, offset) {
		out = append(out, *cloneNode(s.nodes[id]))
	}
	return out, nil
}

// CountNodes returns the number of stored node definitions.
func (s *Store) CountNodes(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), nil
}

// --- pipelines ---

// CreatePipeline validates and stores a pipeline.
func (s *Store) CreatePipeline(_ context.Context, p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
	p.Method, p.URL = pipeline.NormalizeRoute(p.Method, p.URL)
	if err := pipeline.ValidatePipeline(p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if s.routeTaken(p) {
		return nil, pipeline.ErrRouteConflict
	}
	if _, ok := s.pipelines[p.ID]; !ok {
		s.pipelineOrder = append(s.pipelineOrder, p.ID)
	}
	s.pipelines[p.ID] = clonePipeline(p)
	return p, nil
}

// GetPipeline returns nil, nil if the pipeline doesn't exist.
func (s *Store) GetPipeline(_ context.Context, pipelineID string) (*pipeline.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pipelines[pipelineID]
	if !ok {
		return nil, nil
	}
	return clonePipeline(p), nil
}

// FindPipeline returns the pipeline serving method and url, or nil, nil.
func (s *Store) FindPipeline(_ context.Context, method, url string) (*pipeline.Pipeline, error) {
	method, url = pipeline.NormalizeRoute(method, url)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.pipelineOrder {
		p := s.pipelines[id]
		if p.Method == method && p.URL == url {
			return clonePipeline(p), nil
		}
	}
	return nil, nil
}

// UpdatePipeline validates and replaces an existing pipeline.
func (s *Store) UpdatePipeline(_ context.Context, p *pipeline.Pipeline) error {
	p.Method, p.URL = pipeline.NormalizeRoute(p.Method, p.URL)
	if err := pipeline.ValidatePipeline(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[p.ID]; !ok {
		return pipeline.ErrPipelineNotFound
	}
	if s.routeTaken(p) {
		return pipeline.ErrRouteConflict
	}
	s.pipelines[p.ID] = clonePipeline(p)
	return nil
}

// DeletePipeline removes a pipeline and its history. Missing pipelines are not an error.
func (s *Store) DeletePipeline(_ context.Context, pipelineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[pipelineID]; !ok {
		return nil
	}
	delete(s.pipelines, pipelineID)
	s.pipelineOrder = remove(s.pipelineOrder, pipelineID)

	kept := s.runs[:0]
	for _, id := range s.runs {
		if s.history[id].PipelineID == pipelineID {
			delete(s.history, id)
			continue
		}
		kept = append(kept, id)
	}
	s.runs = kept
	return nil
}

// ListPipelines returns pipelines in creation order.
func (s *Store) ListPipelines(_ context.Context, limit, offset int) ([]pipeline.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []pipeline.Pipeline{}
	for _, id := range page(s.pipelineOrder, limit, offset) {
		out = append(out, *clonePipeline(s.pipelines[id]))
	}
	return out, nil
}

// CountPipelines returns the number of stored pipelines.
func (s *Store) CountPipelines(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pipelines), nil
}

// routeTaken reports whether another pipeline serves p's method and url. Callers hold mu.
func (s *Store) routeTaken(p *pipeline.Pipeline) bool {
	for id, other := range s.pipelines {
		if id != p.ID && other.Method == p.Method && other.URL == p.URL {
			return true
		}
	}
	return false
}

// --- history ---

// CreateHistory opens a run record.
func (s *Store) CreateHistory(_ context.Context, pipelineID, status string) (*pipeline.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := &pipeline.History{
		ID:         uuid.NewString(),
		PipelineID: pipelineID,
		Status:     status,
		StartAt:    s.now(),
	}
	s.history[h.ID] = h
	s.runs = append(s.runs, h.ID)
	return cloneHistory(h), nil
}

// SetHistoryStatus moves a run to status.
func (s *Store) SetHistoryStatus(_ context.Context, historyID, status string) error {
	return s.updateHistory(historyID, func(h *pipeline.History) {
		h.Status = status
	})
}

// SucceedHistory closes a run with its result.
func (s *Store) SucceedHistory(_ context.Context, historyID string, result json.RawMessage) error {
	return s.updateHistory(historyID, func(h *pipeline.History) {
		end := s.now()
		h.Status = pipeline.StatusSucceeded
		h.EndAt = &end
		h.Result = slices.Clone(result)
	})
}

// FailHistory closes a run with an error.
func (s *Store) FailHistory(_ context.Context, historyID, errText string) error {
	return s.updateHistory(historyID, func(h *pipeline.History) {
		end := s.now()
		h.Status = pipeline.StatusFailed
		h.EndAt = &end
		h.Error = &errText
	})
}

// GetHistory returns nil, nil if the run doesn't exist.
func (s *Store) GetHistory(_ context.Context, historyID string) (*pipeline.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.history[historyID]
	if !ok {
		return nil, nil
	}
	return cloneHistory(h), nil
}

// ListHistory returns runs newest first. An empty pipelineID lists every pipeline.
func (s *Store) ListHistory(_ context.Context, pipelineID string, limit, offset int) ([]pipeline.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.runsFor(pipelineID)
	slices.Reverse(ids)

	out := []pipeline.History{}
	for _, id := range page(ids, limit, offset) {
		out = append(out, *cloneHistory(s.history[id]))
	}
	return out, nil
}

// CountHistory counts runs. An empty pipelineID counts every pipeline.
func (s *Store) CountHistory(_ context.Context, pipelineID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runsFor(pipelineID)), nil
}

func (s *Store) runsFor(pipelineID string) []string {
	ids := []string{}
	for _, id := range s.runs {
		if pipelineID == "" || s.history[id].PipelineID == pipelineID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Store) updateHistory(historyID string, fn func(*pipeline.History)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.history[historyID]
	if !ok {
		return pipeline.ErrHistoryNotFound
	}
	fn(h)
	return nil
}

// --- logs ---

// CreateLog appends an entry to the log sink.
func (s *Store) CreateLog(_ context.Context, level, category, message string) (*pipeline.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLog++
	l := &pipeline.LogEntry{
		ID:        s.nextLog,
		Level:     level,
		Category:  category,
		Message:   message,
		CreatedAt: s.now(),
	}
	s.logs[l.ID] = l
	cp := *l
	return &cp, nil
}

// GetLog returns nil, nil if the entry doesn't exist.
func (s *Store) GetLog(_ context.Context, logID int64) (*pipeline.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[logID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

// ListLogs returns log entries newest first.
func (s *Store) ListLogs(_ context.Context, limit, offset int) ([]pipeline.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.logs))
	for id := range s.logs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	slices.Reverse(ids)

	out := []pipeline.LogEntry{}
	for _, id := range page(ids, limit, offset) {
		out = append(out, *s.logs[id])
	}
	return out, nil
}

// DeleteLog removes a log entry.
func (s *Store) DeleteLog(_ context.Context, logID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logs[logID]; !ok {
		return pipeline.ErrLogNotFound
	}
	delete(s.logs, logID)
	return nil
}

// CountLogs returns the number of log entries.
func (s *Store) CountLogs(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs), nil
}

// --- helpers ---

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func remove(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(v string) bool { return v == id })
}

func normalizePorts(node *pipeline.NodeDefinition) {
	if node.Inputs == nil {
		node.Inputs = []string{}
	}
	if node.Outputs == nil {
		node.Outputs = []string{}
	}
}

func cloneNode(n *pipeline.NodeDefinition) *pipeline.NodeDefinition {
	cp := *n
	cp.Inputs = slices.Clone(n.Inputs)
	cp.Outputs = slices.Clone(n.Outputs)
	return &cp
}

func clonePipeline(p *pipeline.Pipeline) *pipeline.Pipeline {
	cp := *p
	cp.Content.Nodes = slices.Clone(p.Content.Nodes)
	for i, n := range cp.Content.Nodes {
		n.Position = slices.Clone(n.Position)
		n.Measured = slices.Clone(n.Measured)
		n.Data.Inputs = slices.Clone(n.Data.Inputs)
		n.Data.Outputs = slices.Clone(n.Data.Outputs)
		cp.Content.Nodes[i] = n
	}
	cp.Content.Edges = slices.Clone(p.Content.Edges)
	return &cp
}

func cloneHistory(h *pipeline.History) *pipeline.History {
	cp := *h
	cp.Result = slices.Clone(h.Result)
	return &cp
}
