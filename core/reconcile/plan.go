package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-sync/core/graph"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Mode selects whether a run only reports or also applies.
type Mode string

const (
	// ModeReport computes the diff and validates it in memory.
	ModeReport Mode = "report"
	// ModeApply computes the diff and applies it to the destination.
	ModeApply Mode = "apply"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReport, ModeApply:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid mode %q: expected %q or %q", s, ModeReport, ModeApply)
	}
}

// UnmatchedPolicy decides what happens to destination-only entities. There is
// no default: callers must choose one.
type UnmatchedPolicy string

const (
	// UnmatchedDelete deletes destination-only entities.
	UnmatchedDelete UnmatchedPolicy = "delete"
	// UnmatchedSkip leaves destination-only entities untouched.
	UnmatchedSkip UnmatchedPolicy = "skip"
)

// ParseUnmatchedPolicy parses a policy name. An empty name is rejected.
func ParseUnmatchedPolicy(s string) (UnmatchedPolicy, error) {
	switch UnmatchedPolicy(s) {
	case UnmatchedDelete, UnmatchedSkip:
		return UnmatchedPolicy(s), nil
	case "":
		return "", fmt.Errorf("unmatched policy must be chosen explicitly (%q or %q)", UnmatchedDelete, UnmatchedSkip)
	default:
		return "", fmt.Errorf("invalid unmatched policy %q: expected %q or %q", s, UnmatchedDelete, UnmatchedSkip)
	}
}

// Skip reports whether destination-only entities are left alone.
func (p UnmatchedPolicy) Skip() bool { return p == UnmatchedSkip }

// RunOptions holds the per-run choices of an orchestrated reconciliation.
type RunOptions struct {
	Mode      Mode
	Unmatched UnmatchedPolicy
	Workers   int
	Timeout   time.Duration
}

// Validate checks that every required choice was made.
func (o RunOptions) Validate() error {
	if _, err := ParseMode(string(o.Mode)); err != nil {
		return err
	}
	if _, err := ParseUnmatchedPolicy(string(o.Unmatched)); err != nil {
		return err
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", o.Workers)
	}
	return nil
}

// Plan holds the loaded snapshots and the diff between them.
type Plan struct {
	Source      *graph.Graph
	Destination *graph.Graph
	Diff        *Diff
}

// Orchestrator drives load, diff and report or apply for one source and one
// destination adapter.
type Orchestrator struct {
	source      Adapter
	destination Adapter
	engine      *Engine
	logger      *zap.Logger
	metrics     *Metrics
}

// NewOrchestrator creates an orchestrator. A nil logger discards logs and a
// nil metrics records nothing.
func NewOrchestrator(source, destination Adapter, logger *zap.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		source:      source,
		destination: destination,
		engine:      NewEngine(destination, logger, metrics),
		logger:      logger.With(zap.String("source", source.Name()), zap.String("destination", destination.Name())),
		metrics:     metrics,
	}
}

// Prepare runs the setup hook of every adapter that has one.
func (o *Orchestrator) Prepare(ctx context.Context) error {
	for _, a := range o.adapters() {
		p, ok := a.(Preparer)
		if !ok {
			continue
		}
		if err := p.Prepare(ctx); err != nil {
			return fmt.Errorf("prepare %s: %w", a.Name(), err)
		}
	}
	return nil
}

// Plan loads both snapshots concurrently and computes the diff. A load
// failure on either side aborts with a *LoadError.
func (o *Orchestrator) Plan(ctx context.Context, unmatched UnmatchedPolicy) (*Plan, error) {
	if _, err := ParseUnmatchedPolicy(string(unmatched)); err != nil {
		return nil, err
	}

	var src, dst *graph.Graph
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		src, err = o.load(gctx, "source", o.source)
		return err
	})
	g.Go(func() error {
		var err error
		dst, err = o.load(gctx, "destination", o.destination)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	diff, err := Compute(src, dst, DiffOptions{SkipUnmatchedDestination: unmatched.Skip()})
	if err != nil {
		return nil, err
	}

	o.logger.Info("Computed diff",
		zap.Int("source_entities", src.Size()),
		zap.Int("destination_entities", dst.Size()),
		zap.String("summary", diff.Summary()),
	)
	return &Plan{Source: src, Destination: dst, Diff: diff}, nil
}

// Run executes a full reconciliation. Report mode validates the diff in
// memory; apply mode mutates the destination and flushes it if the adapter
// buffers writes. The returned error is non-nil only for run-level failures;
// per-record failures are in the report.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (report *Report, err error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	defer func() {
		o.metrics.observeRun(opts.Mode, err != nil || (report != nil && report.Failed()))
	}()

	if err := o.Prepare(ctx); err != nil {
		return nil, err
	}

	plan, err := o.Plan(ctx, opts.Unmatched)
	if err != nil {
		return nil, err
	}

	report, err = o.engine.Apply(ctx, plan.Diff, plan.Destination, Options{
		DryRun:                   opts.Mode == ModeReport,
		SkipUnmatchedDestination: opts.Unmatched.Skip(),
		Workers:                  opts.Workers,
		Timeout:                  opts.Timeout,
	})
	if err != nil {
		return nil, err
	}

	if opts.Mode == ModeApply {
		if f, ok := o.destination.(Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				return report, fmt.Errorf("flush %s: %w", o.destination.Name(), err)
			}
		}
	}

	report.Log(o.logger)
	return report, nil
}

func (o *Orchestrator) load(ctx context.Context, side string, a Adapter) (*graph.Graph, error) {
	start := time.Now()
	defer o.metrics.observeLoad(side, start)

	g, err := a.Load(ctx)
	if err != nil {
		return nil, &LoadError{Side: side, Adapter: a.Name(), Err: err}
	}
	if g == nil {
		return nil, &LoadError{Side: side, Adapter: a.Name(), Err: errors.New("adapter returned no graph")}
	}
	o.logger.Debug("Loaded snapshot", zap.String("side", side), zap.Int("entities", g.Size()))
	return g, nil
}

func (o *Orchestrator) adapters() []Adapter {
	if o.source == o.destination {
		return []Adapter{o.source}
	}
	return []Adapter{o.source, o.destination}
}
