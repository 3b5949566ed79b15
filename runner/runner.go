// Package runner executes stored pipelines and keeps their run history.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/engine"
)

// Log sink category for run events.
const CategoryExec = "exec"

// Store is what a Runner needs from persistence.
type Store interface {
	pipeline.NodeStore
	pipeline.PipelineStore
	pipeline.HistoryStore
	pipeline.LogStore
}

// Outcome describes a finished run. HistoryID is empty only when the history row
// could not be created.
type Outcome struct {
	HistoryID string
	Result    json.RawMessage
}

// Runner executes pipelines with an engine and records each run.
type Runner struct {
	store   Store
	engine  *engine.Engine
	logger  *zap.Logger
	metrics *Metrics
	timeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records run counts and durations in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTimeout bounds each run. Zero means the caller's context alone decides.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// New creates a Runner.
func New(store Store, eng *engine.Engine, opts ...Option) *Runner {
	r := &Runner{
		store:  store,
		engine: eng,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Exec runs the pipeline serving method and url.
// Returns pipeline.ErrPipelineNotFound if no pipeline does.
func (r *Runner) Exec(ctx context.Context, method, url string, payload any) (Outcome, error) {
	p, err := r.store.FindPipeline(ctx, method, url)
	if err != nil {
		return Outcome{}, err
	}
	if p == nil {
		return Outcome{}, fmt.Errorf("%w: %s /%s", pipeline.ErrPipelineNotFound, method, url)
	}
	return r.Run(ctx, p, payload)
}

// Run executes p with payload as the request data.
//
// The history row is created as preparing, moves to running once the graph is
// bound, and ends as succeeded or failed. A graph that fails to bind goes straight
// from preparing to failed.
func (r *Runner) Run(ctx context.Context, p *pipeline.Pipeline, payload any) (Outcome, error) {
	start := time.Now()
	// Bookkeeping must outlive a run that was cancelled or timed out.
	bg := context.WithoutCancel(ctx)

	h, err := r.store.CreateHistory(ctx, p.ID, pipeline.StatusPreparing)
	if err != nil {
		return Outcome{}, fmt.Errorf("runner: create history: %w", err)
	}
	out := Outcome{HistoryID: h.ID}
	log := r.logger.With(zap.String("pipeline", p.ID), zap.String("history", h.ID))

	if r.metrics != nil {
		r.metrics.runsInFlight.Inc()
		defer r.metrics.runsInFlight.Dec()
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	result, err := r.execute(runCtx, bg, p, h.ID, payload)
	if err == nil {
		serr := r.store.SucceedHistory(bg, h.ID, result)
		if serr == nil {
			out.Result = result
			r.finish(log, p, pipeline.StatusSucceeded, start)
			return out, nil
		}
		// The row must not stay running; record the run as failed instead.
		err = fmt.Errorf("runner: record result: %w", serr)
	}

	r.finish(log, p, pipeline.StatusFailed, start)
	if ferr := r.store.FailHistory(bg, h.ID, err.Error()); ferr != nil {
		log.Error("record failure", zap.Error(ferr))
	}
	r.sink(bg, log, pipeline.LevelError, fmt.Sprintf("pipeline %q (%s) failed: %v", p.Name, h.ID, err))
	return out, err
}

func (r *Runner) execute(ctx, bg context.Context, p *pipeline.Pipeline, historyID string, payload any) (json.RawMessage, error) {
	bound, err := r.engine.Bind(ctx, p.Content, r.store)
	if err != nil {
		return nil, err
	}
	if err := r.store.SetHistoryStatus(bg, historyID, pipeline.StatusRunning); err != nil {
		return nil, fmt.Errorf("runner: mark running: %w", err)
	}
	return r.engine.Execute(ctx, bound, payload)
}

func (r *Runner) finish(log *zap.Logger, p *pipeline.Pipeline, status string, start time.Time) {
	elapsed := time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordRun(status, elapsed)
	}
	log.Info("pipeline run finished",
		zap.String("name", p.Name),
		zap.String("status", status),
		zap.Duration("elapsed", elapsed),
	)
}

// sink writes to the log store. A failing sink is logged, never returned.
func (r *Runner) sink(ctx context.Context, log *zap.Logger, level, message string) {
	if _, err := r.store.CreateLog(ctx, level, CategoryExec, message); err != nil {
		log.Warn("write log sink", zap.Error(err))
	}
}
