// Package reconcile converges a destination backend onto a source of truth.
//
// Both sides are loaded as complete graphs (see package graph) through the
// Adapter contract, compared by the pure diff function, and the resulting
// records are applied to the destination in dependency-safe order.
//
// # Architecture
//
// 1. Compute: compares two graphs type by type in dependency order and emits
// create, update and delete records sorted by natural key. Identical inputs
// always yield an identical diff.
//
// 2. Engine: applies a diff in two phases. Phase 1 runs creates and updates
// parent-first, skipping any record whose references do not resolve in the
// working destination graph. Phase 2 runs deletes children-first. Within one
// entity type records are dispatched to a bounded worker pool; each type
// finishes before the next begins.
//
// 3. Orchestrator: loads both snapshots concurrently, computes the diff and
// either reports it (dry run) or applies it.
//
// 4. CachedAdapter: TTL snapshot cache with stampede protection, invalidated
// by any successful write.
//
// # Failure model
//
// Load failures (*LoadError) and duplicate natural keys abort the run. Every
// other failure is local to one record, which ends FAILED or
// SKIPPED_DEPENDENCY, and dependents of a failed create cascade to
// SKIPPED_DEPENDENCY. Callers decide from Report.Failed whether the run as a
// whole failed.
//
// # Usage Example
//
//	orch := reconcile.NewOrchestrator(source, destination, logger, reconcile.NewMetrics(prometheus.DefaultRegisterer))
//	report, err := orch.Run(ctx, reconcile.RunOptions{
//	    Mode:      reconcile.ModeApply,
//	    Unmatched: reconcile.UnmatchedSkip,
//	    Workers:   4,
//	    Timeout:   30 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	_ = report.Render(os.Stdout)
package reconcile
