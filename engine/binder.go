package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/meikuraledutech/pipeline"
)

// DefinitionSource looks up node definitions. It returns nil, nil when the id is unknown.
// pipeline.NodeStore satisfies it.
type DefinitionSource interface {
	GetNode(ctx context.Context, id string) (*pipeline.NodeDefinition, error)
}

// DefinitionSourceFunc adapts a function to DefinitionSource.
type DefinitionSourceFunc func(ctx context.Context, id string) (*pipeline.NodeDefinition, error)

func (f DefinitionSourceFunc) GetNode(ctx context.Context, id string) (*pipeline.NodeDefinition, error) {
	return f(ctx, id)
}

// CombinedNode joins a graph node with the definition it references.
type CombinedNode struct {
	Node       pipeline.GraphNode
	Definition pipeline.NodeDefinition
	Kind       Kind
}

// ID returns the graph-local node id.
func (n *CombinedNode) ID() string { return n.Node.ID }

// Name returns the definition name.
func (n *CombinedNode) Name() string { return n.Definition.Name }

// BoundGraph is a graph whose node references have all been resolved.
// It is read-only once built.
type BoundGraph struct {
	graph    pipeline.Graph
	nodes    map[string]*CombinedNode
	order    []*CombinedNode
	entry    *CombinedNode
	terminal *CombinedNode

	dataIn     map[string][]pipeline.GraphEdge
	controlOut map[string][]pipeline.GraphEdge
	controlIn  map[string]bool
}

// Node returns the combined node for a graph node id.
func (b *BoundGraph) Node(id string) (*CombinedNode, bool) {
	n, ok := b.nodes[id]
	return n, ok
}

// Nodes returns the combined nodes in graph order.
func (b *BoundGraph) Nodes() []*CombinedNode {
	return append([]*CombinedNode(nil), b.order...)
}

// Entry returns the BeginRequest node.
func (b *BoundGraph) Entry() *CombinedNode { return b.entry }

// Terminal returns the EndRequest node.
func (b *BoundGraph) Terminal() *CombinedNode { return b.terminal }

// Graph returns the graph the binding was built from.
func (b *BoundGraph) Graph() pipeline.Graph { return b.graph }

// Bind resolves every node of g through src and indexes its edges.
// Each distinct definition id is looked up once.
func (e *Engine) Bind(ctx context.Context, g pipeline.Graph, src DefinitionSource) (*BoundGraph, error) {
	b := &BoundGraph{
		graph:      g,
		nodes:      make(map[string]*CombinedNode, len(g.Nodes)),
		order:      make([]*CombinedNode, 0, len(g.Nodes)),
		dataIn:     make(map[string][]pipeline.GraphEdge),
		controlOut: make(map[string][]pipeline.GraphEdge),
		controlIn:  make(map[string]bool),
	}

	defs := make(map[string]*pipeline.NodeDefinition)
	for _, gn := range g.Nodes {
		if _, dup := b.nodes[gn.ID]; dup {
			return nil, &BindError{NodeID: gn.ID, Err: ErrDuplicateNodeID}
		}

		def, ok := defs[gn.Data.ID]
		if !ok {
			var err error
			def, err = src.GetNode(ctx, gn.Data.ID)
			if err != nil {
				return nil, fmt.Errorf("engine: look up definition %q for node %s: %w", gn.Data.ID, gn.ID, err)
			}
			defs[gn.Data.ID] = def
		}
		if def == nil {
			return nil, &BindError{NodeID: gn.ID, Err: fmt.Errorf("%w: definition %q", ErrUnresolvedNodeReference, gn.Data.ID)}
		}

		kind, err := KindOf(*def)
		if err != nil {
			return nil, &BindError{NodeID: gn.ID, Err: err}
		}

		cn := &CombinedNode{Node: gn, Definition: *def, Kind: kind}
		b.nodes[gn.ID] = cn
		b.order = append(b.order, cn)
	}

	for _, edge := range g.Edges {
		if _, ok := b.nodes[edge.Source]; !ok {
			return nil, &BindError{NodeID: edge.Source, Err: fmt.Errorf("%w: edge %s source", ErrDanglingEdge, edge.ID)}
		}
		if _, ok := b.nodes[edge.Target]; !ok {
			return nil, &BindError{NodeID: edge.Target, Err: fmt.Errorf("%w: edge %s target", ErrDanglingEdge, edge.ID)}
		}
		if edge.IsControlIn() {
			b.controlIn[edge.Target] = true
		}
		if edge.IsControlOut() {
			b.controlOut[edge.Source] = append(b.controlOut[edge.Source], edge)
		}
		if !edge.IsControlIn() {
			b.dataIn[edge.Target] = append(b.dataIn[edge.Target], edge)
		}
	}

	var entries, terminals []*CombinedNode
	for _, cn := range b.order {
		switch cn.Kind {
		case KindBeginRequest:
			entries = append(entries, cn)
		case KindEndRequest:
			terminals = append(terminals, cn)
		}
	}
	if len(entries) != 1 || len(terminals) != 1 {
		return nil, &BindError{Err: fmt.Errorf("%w: found %d BeginRequest and %d EndRequest",
			ErrMissingEntryOrTerminal, len(entries), len(terminals))}
	}
	b.entry, b.terminal = entries[0], terminals[0]

	e.logger.Debug("graph bound",
		zap.Int("nodes", len(b.order)),
		zap.Int("edges", len(g.Edges)),
		zap.String("entry", b.entry.ID()),
		zap.String("terminal", b.terminal.ID()),
	)
	return b, nil
}
