package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ScriptSandbox runs user-authored node scripts.
//
// Every call must run in a fresh, isolated context: nothing a script defines may be
// visible to the next call. Failures wrap ErrScriptCompile or ErrScriptRuntime;
// a script that does not define entry wraps ErrEntryFunctionMissing as well.
type ScriptSandbox interface {
	CompileAndRun(source, entry string, input map[string]any) (map[string]any, error)
}

// Observer is told about every node the engine dispatches.
type Observer interface {
	NodeDispatched(node *CombinedNode, elapsed time.Duration, err error)
}

// DispatchWave executes every node of the current wave, one at a time, in order.
// The first node error aborts the wave and fails the run. Outputs stored by earlier
// nodes of the wave stay in the cache.
func (e *Engine) DispatchWave(s RunState) (RunState, error) {
	switch {
	case s.graph == nil:
		return s, ErrNotBound
	case s.status == StatusFailed:
		return s, s.err
	case s.status == StatusCompleted:
		return s, nil
	}

	s.status = StatusRunning
	s.waves++
	wave := s.current
	e.logger.Debug("dispatching wave", zap.Int("wave", s.waves), zap.Strings("nodes", nodeIDs(wave)))

	for _, n := range wave {
		start := time.Now()
		var err error
		s, err = e.dispatch(s, n)
		if e.observer != nil {
			e.observer.NodeDispatched(n, time.Since(start), err)
		}
		if err != nil {
			e.logger.Debug("node failed", zap.String("node", n.ID()), zap.String("name", n.Name()), zap.Error(err))
			return s.fail(err), err
		}
	}
	return s, nil
}

func (e *Engine) dispatch(s RunState, n *CombinedNode) (RunState, error) {
	// The entry node was seeded by Seed. It returns before gathering on purpose:
	// data edges into BeginRequest are ignored, never reported as missing.
	if n.Kind == KindBeginRequest {
		return s, nil
	}

	in, err := gather(s, n)
	if err != nil {
		return s, &DispatchError{NodeID: n.ID(), Name: n.Name(), Err: err}
	}

	switch n.Kind {
	case KindBreaker:
		ok, err := condition(in)
		if err != nil {
			return s, &DispatchError{NodeID: n.ID(), Name: n.Name(), Err: err}
		}
		if !ok {
			s.current = without(s.current, n.ID())
			e.logger.Debug("breaker closed path", zap.String("node", n.ID()))
		}
	case KindTrue:
		e.store(s, n, map[string]any{"out": true})
	case KindFalse:
		e.store(s, n, map[string]any{"out": false})
	case KindEmpty:
		e.store(s, n, map[string]any{"out": nil})
	case KindEndRequest:
		s.status = StatusCompleted
		s.terminal = n.ID()
		e.store(s, n, in)
	case KindScript:
		outs, err := e.runScript(n, in)
		if err != nil {
			return s, &DispatchError{NodeID: n.ID(), Name: n.Name(), Err: err}
		}
		e.store(s, n, outs)
	}
	return s, nil
}

// gather builds a node's input record from the outputs its data edges point at.
func gather(s RunState, n *CombinedNode) (map[string]any, error) {
	edges := s.graph.edgesInto(n.ID())
	in := make(map[string]any, len(edges))
	for _, edge := range edges {
		v, ok := s.cache.Output(edge.Source, edge.SourcePort())
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s (edge %s)", ErrMissingUpstreamOutput, edge.Source, edge.SourcePort(), edge.ID)
		}
		in[edge.TargetPort()] = v
	}
	return in, nil
}

// condition reads a Breaker's input. Both a bare boolean and a {"value": bool} object are accepted.
func condition(in map[string]any) (bool, error) {
	switch c := in["condition"].(type) {
	case bool:
		return c, nil
	case map[string]any:
		if b, ok := c["value"].(bool); ok {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: got %T", ErrInvalidCondition, in["condition"])
}

func (e *Engine) runScript(n *CombinedNode, in map[string]any) (map[string]any, error) {
	if e.sandbox == nil {
		return nil, fmt.Errorf("%w: no script sandbox configured", ErrScriptRuntime)
	}
	result, err := e.sandbox.CompileAndRun(n.Definition.Script, e.entry, in)
	if err != nil {
		if !errors.Is(err, ErrScriptCompile) && !errors.Is(err, ErrScriptRuntime) {
			err = fmt.Errorf("%w: %w", ErrScriptRuntime, err)
		}
		return nil, err
	}

	outs := make(map[string]any, len(n.Definition.Outputs))
	for _, port := range n.Definition.Outputs {
		v, ok := result[port]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingDeclaredOutput, port)
		}
		outs[port] = v
	}
	return outs, nil
}

func (e *Engine) store(s RunState, n *CombinedNode, outs map[string]any) {
	if !s.cache.add(n.ID(), outs) {
		e.logger.Debug("node dispatched again, keeping first outputs", zap.String("node", n.ID()))
	}
}

func without(nodes []*CombinedNode, id string) []*CombinedNode {
	kept := make([]*CombinedNode, 0, len(nodes))
	for _, n := range nodes {
		if n.ID() != id {
			kept = append(kept, n)
		}
	}
	return kept
}
