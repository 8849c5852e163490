package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"inventory-sync/core/graph"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single adapter call when Options.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// Options controls how a diff is applied.
type Options struct {
	// DryRun validates the diff in memory without calling the adapter.
	DryRun bool

	// SkipUnmatchedDestination skips the delete phase.
	SkipUnmatchedDestination bool

	// Workers bounds concurrent adapter calls within one entity type.
	// Values below 1 mean one call at a time. Adapters used with more than one
	// worker must be safe for concurrent use.
	Workers int

	// Timeout bounds each adapter call. A timed-out call fails its record.
	Timeout time.Duration
}

// Engine applies diffs to a destination adapter.
type Engine struct {
	adapter Adapter
	logger  *zap.Logger
	metrics *Metrics
}

// NewEngine creates an engine writing to the destination adapter.
func NewEngine(destination Adapter, logger *zap.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		adapter: destination,
		logger:  logger.With(zap.String("destination", destination.Name())),
		metrics: metrics,
	}
}

// job is one record dispatched to a worker. Workers only write their own job.
type job struct {
	record Record
	target graph.Entity
	result graph.Entity
	err    error
}

// Apply executes diff against the destination in two ordered passes.
//
// Phase 1 walks entity types in dependency order and applies creates and
// updates. A record whose reference attributes do not resolve in the working
// destination graph is skipped without calling the adapter; successful
// creates are inserted into the working graph so later types can resolve them.
//
// Phase 2 (unless SkipUnmatchedDestination) walks entity types in reverse
// order and applies deletes, so dependents go before what they reference.
//
// A failing record never aborts the run. Each type's batch completes before
// the next type begins, and only the calling goroutine mutates the working graph.
func (e *Engine) Apply(ctx context.Context, diff *Diff, destination *graph.Graph, opts Options) (*Report, error) {
	if diff == nil {
		return nil, fmt.Errorf("nil diff")
	}
	if !sameTypes(diff.Types, destination.Types()) {
		return nil, ErrSchemaMismatch
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	report := &Report{
		RunID:  uuid.NewString(),
		DryRun: opts.DryRun,
	}
	log := e.logger.With(zap.String("run_id", report.RunID), zap.Bool("dry_run", opts.DryRun))
	working := destination.Clone()

	start := time.Now()
	for _, t := range diff.Types {
		records := diff.ByType(t, ActionCreate, ActionUpdate)
		if len(records) == 0 {
			continue
		}
		log.Debug("Applying creates and updates", zap.String("type", string(t)), zap.Int("records", len(records)))
		report.Records = append(report.Records, byKey(e.applyUpserts(ctx, log, working, records, opts))...)
	}
	e.metrics.observePhase("upsert", start)

	if !opts.SkipUnmatchedDestination {
		start = time.Now()
		deletes := rederiveDeletes(diff, working)
		for i := len(diff.Types) - 1; i >= 0; i-- {
			t := diff.Types[i]
			records := deletes[t]
			if len(records) == 0 {
				continue
			}
			log.Debug("Applying deletes", zap.String("type", string(t)), zap.Int("records", len(records)))
			report.Records = append(report.Records, byKey(e.applyDeletes(ctx, log, working, records, opts))...)
		}
		e.metrics.observePhase("delete", start)
	}

	report.Summary = summarize(report.Records)
	report.Destination = working
	return report, nil
}

// byKey orders the records of one type by natural key. Skipped records are
// produced before dispatched ones, so the order has to be restored.
func byKey(records []Record) []Record {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records
}

// applyUpserts processes the create and update records of one entity type.
func (e *Engine) applyUpserts(ctx context.Context, log *zap.Logger, working *graph.Graph, records []Record, opts Options) []Record {
	schema := working.Schema()
	out := make([]Record, 0, len(records))
	jobs := make([]job, 0, len(records))

	for _, r := range records {
		ts, _ := schema.Lookup(r.Type)
		if err := resolveReferences(working, ts, r); err != nil {
			r.State = StateSkippedDependency
			r.Err = err
			r.Error = err.Error()
			log.Warn("Skipping record with unresolved reference",
				zap.String("type", string(r.Type)),
				zap.String("key", r.Key.String()),
				zap.String("action", string(r.Action)),
				zap.Error(err),
			)
			e.metrics.observeRecord(r.Type, r.Action, r.State)
			out = append(out, r)
			continue
		}

		j := job{record: r}
		if r.Action == ActionUpdate {
			target, err := working.Get(r.Type, r.Key)
			if err != nil {
				r.State = StateFailed
				r.Err = err
				r.Error = err.Error()
				e.metrics.observeRecord(r.Type, r.Action, r.State)
				out = append(out, r)
				continue
			}
			j.target = target
		}
		jobs = append(jobs, j)
	}

	if opts.DryRun {
		for _, j := range jobs {
			// Materialize in memory so later types resolve against it.
			if err := working.Put(plannedEntity(j)); err != nil {
				log.Warn("Dry run could not stage entity", zap.String("key", j.record.Key.String()), zap.Error(err))
			}
			out = append(out, j.record)
		}
		return out
	}

	e.dispatch(ctx, jobs, opts, func(ctx context.Context, j *job) {
		switch j.record.Action {
		case ActionCreate:
			j.result, j.err = e.adapter.Create(ctx, j.record.Type, j.record.Key, j.record.Attributes.Clone())
		case ActionUpdate:
			j.result, j.err = e.adapter.Update(ctx, j.target.Clone(), j.record.NewValues())
		}
	})

	for _, j := range jobs {
		r := j.record
		if j.err != nil {
			r.Err = e.wrapOperationError(j)
			r.Error = r.Err.Error()
			var rre *ReferenceResolutionError
			if errors.As(j.err, &rre) {
				r.State = StateSkippedDependency
			} else {
				r.State = StateFailed
			}
			log.Error("Mutation failed",
				zap.String("type", string(r.Type)),
				zap.String("key", r.Key.String()),
				zap.String("action", string(r.Action)),
				zap.Any("payload", payloadOf(r)),
				zap.Error(j.err),
			)
			e.metrics.observeRecord(r.Type, r.Action, r.State)
			out = append(out, r)
			continue
		}

		stored := materialized(j)
		if err := working.Put(stored); err != nil {
			log.Warn("Adapter returned an entity outside the schema, keeping planned attributes",
				zap.String("type", string(r.Type)),
				zap.String("key", r.Key.String()),
				zap.Error(err),
			)
			planned := plannedEntity(j)
			planned.BackendID = stored.BackendID
			_ = working.Put(planned)
		}

		r.State = StateApplied
		log.Info("Applied mutation",
			zap.String("type", string(r.Type)),
			zap.String("key", r.Key.String()),
			zap.String("action", string(r.Action)),
			zap.String("backend_id", stored.BackendID),
		)
		e.metrics.observeRecord(r.Type, r.Action, r.State)
		out = append(out, r)
	}

	return out
}

// applyDeletes processes the delete records of one entity type.
func (e *Engine) applyDeletes(ctx context.Context, log *zap.Logger, working *graph.Graph, records []Record, opts Options) []Record {
	out := make([]Record, 0, len(records))
	jobs := make([]job, 0, len(records))

	for _, r := range records {
		target, err := working.Get(r.Type, r.Key)
		if err != nil {
			// Nothing left to delete.
			r.State = StateApplied
			e.metrics.observeRecord(r.Type, r.Action, r.State)
			out = append(out, r)
			continue
		}

		if refs := working.Referrers(r.Type, r.Key); len(refs) > 0 {
			cerr := &ConstraintError{Type: r.Type, Key: r.Key, Dependents: describe(refs)}
			r.State = StateSkippedDependency
			r.Err = cerr
			r.Error = cerr.Error()
			log.Warn("Skipping delete of referenced entity",
				zap.String("type", string(r.Type)),
				zap.String("key", r.Key.String()),
				zap.Strings("dependents", cerr.Dependents),
			)
			e.metrics.observeRecord(r.Type, r.Action, r.State)
			out = append(out, r)
			continue
		}

		jobs = append(jobs, job{record: r, target: target})
	}

	if opts.DryRun {
		for _, j := range jobs {
			working.Remove(j.record.Type, j.record.Key)
			out = append(out, j.record)
		}
		return out
	}

	e.dispatch(ctx, jobs, opts, func(ctx context.Context, j *job) {
		j.err = e.adapter.Delete(ctx, j.target.Clone())
	})

	for _, j := range jobs {
		r := j.record
		var cerr *ConstraintError
		switch {
		case j.err == nil:
			r.State = StateApplied
			working.Remove(r.Type, r.Key)
			log.Info("Deleted entity", zap.String("type", string(r.Type)), zap.String("key", r.Key.String()))

		case errors.Is(j.err, ErrNotFound):
			r.State = StateApplied
			working.Remove(r.Type, r.Key)
			log.Info("Entity already absent", zap.String("type", string(r.Type)), zap.String("key", r.Key.String()))

		case errors.As(j.err, &cerr):
			r.State = StateFailed
			r.Err = j.err
			r.Error = j.err.Error()
			log.Error("Delete blocked by dependents",
				zap.String("type", string(r.Type)),
				zap.String("key", r.Key.String()),
				zap.Error(j.err),
			)

		default:
			r.State = StateFailed
			r.Err = e.wrapOperationError(j)
			r.Error = r.Err.Error()
			log.Error("Mutation failed",
				zap.String("type", string(r.Type)),
				zap.String("key", r.Key.String()),
				zap.String("action", string(r.Action)),
				zap.Error(j.err),
			)
		}
		e.metrics.observeRecord(r.Type, r.Action, r.State)
		out = append(out, r)
	}

	return out
}

// dispatch runs call for every job on a bounded worker pool and returns once
// every job has finished. Each call gets its own timeout.
func (e *Engine) dispatch(ctx context.Context, jobs []job, opts Options, call func(context.Context, *job)) {
	if len(jobs) == 0 {
		return
	}

	numWorkers := opts.Workers
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}

	jobsCh := make(chan int, len(jobs))
	for i := range jobs {
		jobsCh <- i
	}
	close(jobsCh)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobsCh {
				callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
				call(callCtx, &jobs[i])
				cancel()
			}
		}()
	}
	wg.Wait()
}

func (e *Engine) wrapOperationError(j job) error {
	var (
		rre *ReferenceResolutionError
		boe *BackendOperationError
	)
	if errors.As(j.err, &rre) || errors.As(j.err, &boe) {
		return j.err
	}
	return &BackendOperationError{
		Action:  j.record.Action,
		Type:    j.record.Type,
		Key:     j.record.Key,
		Payload: payloadOf(j.record),
		Err:     j.err,
	}
}

// resolveReferences checks that every reference attribute the record sets
// points at an entity present in the working graph.
func resolveReferences(working *graph.Graph, ts graph.TypeSchema, r Record) error {
	values := r.Attributes
	if r.Action == ActionUpdate {
		values = r.NewValues()
	}
	for _, f := range ts.Refs() {
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		ref, _ := v.(string)
		if !working.Has(f.Ref, graph.NewKey(ref)) {
			return &ReferenceResolutionError{
				Type:     r.Type,
				Key:      r.Key,
				Field:    f.Name,
				RefType:  f.Ref,
				RefValue: ref,
			}
		}
	}
	return nil
}

// rederiveDeletes recomputes the delete set against the working graph after
// phase 1, refreshing each record from the entity as it now stands.
func rederiveDeletes(diff *Diff, working *graph.Graph) map[graph.EntityType][]Record {
	out := make(map[graph.EntityType][]Record)
	for _, t := range diff.Types {
		for _, r := range diff.ByType(t, ActionDelete) {
			if current, err := working.Get(t, r.Key); err == nil {
				r.Attributes = current.Attributes
			}
			out[t] = append(out[t], r)
		}
	}
	return out
}

// plannedEntity builds the entity a job intends to leave in the destination.
func plannedEntity(j job) graph.Entity {
	if j.record.Action == ActionCreate {
		return graph.Entity{Type: j.record.Type, Key: j.record.Key, Attributes: j.record.Attributes.Clone()}
	}
	e := j.target.Clone()
	for name, v := range j.record.NewValues() {
		e.Attributes[name] = v
	}
	return e
}

// materialized returns the entity to store after a successful adapter call.
func materialized(j job) graph.Entity {
	e := j.result.Clone()
	e.Type, e.Key = j.record.Type, j.record.Key
	if e.Attributes == nil {
		planned := plannedEntity(j)
		planned.BackendID = e.BackendID
		if planned.BackendID == "" {
			planned.BackendID = j.target.BackendID
		}
		return planned
	}
	if e.BackendID == "" {
		e.BackendID = j.target.BackendID
	}
	return e
}

func payloadOf(r Record) graph.Attributes {
	if r.Action == ActionUpdate {
		return r.NewValues()
	}
	return r.Attributes.Clone()
}

func describe(entities []graph.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = fmt.Sprintf("%s/%s", e.Type, e.Key)
	}
	return out
}

func sameTypes(a, b []graph.EntityType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
