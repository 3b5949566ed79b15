// Package engine executes pipeline graphs.
//
// A run is driven step by step:
//
//	bound, err := eng.Bind(ctx, graph, store)
//	state, err := engine.Seed(bound, payload)
//	state = engine.InitialWave(state)
//	for !state.IsComplete() {
//		state, err = eng.DispatchWave(state)
//		state = eng.AdvanceWave(state)
//	}
//	result, err := engine.ExtractResult(state)
//
// Execute and Run wrap that loop and also detect a frontier that empties before
// EndRequest runs. All run data lives in the RunState; an Engine only holds
// configuration and can be shared between runs.
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/meikuraledutech/pipeline"
)

// DefaultEntryFunction is the function a node script must define.
const DefaultEntryFunction = "handle"

// Engine executes bound graphs.
type Engine struct {
	sandbox  ScriptSandbox
	logger   *zap.Logger
	observer Observer
	entry    string
	dedupe   bool
	maxWaves int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers an observer for node dispatches.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithEntryFunction changes the name of the function scripts must define.
func WithEntryFunction(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.entry = name
		}
	}
}

// WithDedupeFrontier makes AdvanceWave queue each node at most once per wave.
// Off by default: a node reached from several nodes of one wave then runs once per edge.
func WithDedupeFrontier(on bool) Option {
	return func(e *Engine) { e.dedupe = on }
}

// WithMaxWaves bounds the number of waves Execute dispatches. Zero means no bound.
func WithMaxWaves(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxWaves = n
		}
	}
}

// New returns an Engine that runs script nodes in sandbox.
func New(sandbox ScriptSandbox, opts ...Option) *Engine {
	e := &Engine{
		sandbox: sandbox,
		logger:  zap.NewNop(),
		entry:   DefaultEntryFunction,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run binds g and executes it with payload as the request data.
func (e *Engine) Run(ctx context.Context, g pipeline.Graph, src DefinitionSource, payload any) (json.RawMessage, error) {
	b, err := e.Bind(ctx, g, src)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, b, payload)
}

// Execute runs a bound graph to completion and returns its result.
//
// The engine itself never blocks on anything but scripts; ctx is only checked
// between waves so a caller deadline can stop a long run.
func (e *Engine) Execute(ctx context.Context, b *BoundGraph, payload any) (json.RawMessage, error) {
	s, err := Seed(b, payload)
	if err != nil {
		return nil, err
	}
	s = InitialWave(s)

	for !s.IsComplete() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("engine: run stopped after %d waves: %w", s.waves, err)
		}
		if len(s.current) == 0 {
			return nil, fmt.Errorf("%w after %d waves", ErrGraphNeverTerminates, s.waves)
		}
		if e.maxWaves > 0 && s.waves >= e.maxWaves {
			return nil, fmt.Errorf("%w: wave limit %d reached", ErrGraphNeverTerminates, e.maxWaves)
		}

		s, err = e.DispatchWave(s)
		if err != nil {
			return nil, err
		}
		if s.IsComplete() {
			break
		}
		s = e.AdvanceWave(s)
	}

	e.logger.Debug("run completed", zap.Int("waves", s.waves), zap.String("terminal", s.terminal))
	return ExtractResult(s)
}
