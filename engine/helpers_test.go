package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meikuraledutech/pipeline"
)

// graphBuilder assembles graphs and the definitions they reference.
type graphBuilder struct {
	g       pipeline.Graph
	defs    map[string]*pipeline.NodeDefinition
	lookups map[string]int
	mu      sync.Mutex
	edgeSeq int
}

func newGraph() *graphBuilder {
	b := &graphBuilder{
		defs:    make(map[string]*pipeline.NodeDefinition),
		lookups: make(map[string]int),
	}
	for _, d := range pipeline.InternalDefinitions() {
		d := d
		d.ID = "def-" + d.Name
		b.defs[d.ID] = &d
	}
	return b
}

// internal places a built-in node.
func (b *graphBuilder) internal(id, name string) *graphBuilder {
	b.g.Nodes = append(b.g.Nodes, pipeline.GraphNode{
		ID: id, Type: "custom",
		Data: pipeline.GraphNodeData{ID: "def-" + name, Name: name},
	})
	return b
}

// script places a script node whose source is the node id, declaring the given outputs.
func (b *graphBuilder) script(id string, outputs ...string) *graphBuilder {
	defID := "def-" + id
	b.defs[defID] = &pipeline.NodeDefinition{ID: defID, Name: id, Script: id, Outputs: outputs}
	b.g.Nodes = append(b.g.Nodes, pipeline.GraphNode{
		ID: id, Type: "custom",
		Data: pipeline.GraphNodeData{ID: defID, Name: id, Outputs: outputs},
	})
	return b
}

func (b *graphBuilder) control(from, to string) *graphBuilder {
	b.edgeSeq++
	b.g.Edges = append(b.g.Edges, pipeline.GraphEdge{
		ID: fmt.Sprintf("c%d", b.edgeSeq), Source: from, SourceHandle: pipeline.ControlSourceHandle,
		Target: to, TargetHandle: pipeline.ControlTargetHandle,
	})
	return b
}

func (b *graphBuilder) data(from, outPort, to, inPort string) *graphBuilder {
	b.edgeSeq++
	b.g.Edges = append(b.g.Edges, pipeline.GraphEdge{
		ID: fmt.Sprintf("d%d", b.edgeSeq), Source: from, SourceHandle: "output-" + outPort,
		Target: to, TargetHandle: "input-" + inPort,
	})
	return b
}

func (b *graphBuilder) GetNode(_ context.Context, id string) (*pipeline.NodeDefinition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lookups[id]++
	d, ok := b.defs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

// stubSandbox dispatches on the script source to Go functions.
type stubSandbox struct {
	scripts map[string]func(in map[string]any) (map[string]any, error)
	calls   []string
}

func newStub() *stubSandbox {
	return &stubSandbox{scripts: make(map[string]func(map[string]any) (map[string]any, error))}
}

func (s *stubSandbox) on(source string, fn func(in map[string]any) (map[string]any, error)) *stubSandbox {
	s.scripts[source] = fn
	return s
}

func (s *stubSandbox) CompileAndRun(source, entry string, input map[string]any) (map[string]any, error) {
	s.calls = append(s.calls, source)
	fn, ok := s.scripts[source]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrScriptRuntime, ErrEntryFunctionMissing, entry)
	}
	return fn(input)
}

// recordingObserver remembers dispatched node ids.
type recordingObserver struct {
	ids  []string
	errs []error
}

func (o *recordingObserver) NodeDispatched(n *CombinedNode, _ time.Duration, err error) {
	o.ids = append(o.ids, n.ID())
	o.errs = append(o.errs, err)
}

// doubleGraph is BeginRequest -> Double -> EndRequest with data flowing along the chain.
func doubleGraph() *graphBuilder {
	return newGraph().
		internal("begin", pipeline.NodeBeginRequest).
		script("double", "out").
		internal("end", pipeline.NodeEndRequest).
		control("begin", "double").
		control("double", "end").
		data("begin", "data", "double", "input").
		data("double", "out", "end", "data")
}

func doubleScript(in map[string]any) (map[string]any, error) {
	input, _ := in["input"].(map[string]any)
	n, _ := input["data"].(float64)
	return map[string]any{"out": n * 2}, nil
}
