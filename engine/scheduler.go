package engine

import "go.uber.org/zap"

// InitialWave fills the frontier with every node that has no incoming control edge,
// in graph order. In a well-formed graph that is the entry node plus constant nodes
// (True, False, Empty) that are only wired by data edges.
func InitialWave(s RunState) RunState {
	if s.graph == nil {
		return s
	}
	current := make([]*CombinedNode, 0, 1)
	for _, n := range s.graph.order {
		if !s.graph.controlIn[n.ID()] {
			current = append(current, n)
		}
	}
	s.current = current
	s.next = nil
	s.status = StatusQueued
	return s
}

// AdvanceWave computes the following wave from the control edges leaving the current one
// and makes it current.
//
// A node reached from two nodes of the current wave appears twice and is dispatched twice,
// unless the engine was built with WithDedupeFrontier.
func (e *Engine) AdvanceWave(s RunState) RunState {
	if s.graph == nil {
		return s
	}
	var next []*CombinedNode
	var seen map[string]bool
	if e.dedupe {
		seen = make(map[string]bool)
	}
	for _, n := range s.current {
		for _, edge := range s.graph.controlOut[n.ID()] {
			target := s.graph.nodes[edge.Target]
			if seen != nil {
				if seen[target.ID()] {
					continue
				}
				seen[target.ID()] = true
			}
			next = append(next, target)
		}
	}

	s.next = next
	e.logger.Debug("wave advanced",
		zap.Int("wave", s.waves),
		zap.Strings("next", nodeIDs(next)),
	)
	return applyNext(s)
}

func applyNext(s RunState) RunState {
	s.current = s.next
	s.next = nil
	return s
}
