package reconcile

import (
	"encoding/json"
	"fmt"
	"io"

	"inventory-sync/core/graph"

	"go.uber.org/zap"
)

// Report is the outcome of applying a diff: every processed record in its
// terminal state (or pending, for a dry run) plus aggregate counts.
type Report struct {
	// RunID identifies the run in logs.
	RunID string `json:"run_id"`

	// DryRun is true when no adapter mutation was attempted.
	DryRun bool `json:"dry_run"`

	// Records lists create/update records in dependency order followed by
	// delete records in reverse dependency order.
	Records []Record `json:"records"`

	// Summary provides aggregate counts.
	Summary Summary `json:"summary"`

	// Destination is the working destination graph after the run.
	Destination *graph.Graph `json:"-"`
}

// Failed reports whether any record failed or was skipped for a dependency.
func (r *Report) Failed() bool {
	return r.Summary.Failed > 0 || r.Summary.Skipped > 0
}

// Render writes the report as plain text, one record per line.
func (r *Report) Render(w io.Writer) error {
	title := "Apply report"
	if r.DryRun {
		title = "Plan (dry run)"
	}
	if _, err := fmt.Fprintf(w, "%s %s\n", title, r.RunID); err != nil {
		return err
	}
	if len(r.Records) == 0 {
		_, err := fmt.Fprintln(w, "  destination is in sync")
		return err
	}
	for _, rec := range r.Records {
		line := fmt.Sprintf("  [%s] %s", rec.State, rec)
		if rec.Error != "" {
			line += ": " + rec.Error
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	s := r.Summary
	_, err := fmt.Fprintf(w, "create: %d, update: %d, delete: %d | applied: %d, failed: %d, skipped: %d, pending: %d\n",
		s.Creates, s.Updates, s.Deletes, s.Applied, s.Failed, s.Skipped, s.Pending)
	return err
}

// RenderJSON writes the report as indented JSON.
func (r *Report) RenderJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Log writes the summary through the structured logger.
func (r *Report) Log(l *zap.Logger) {
	s := r.Summary
	l.Info("Reconcile report",
		zap.String("run_id", r.RunID),
		zap.Bool("dry_run", r.DryRun),
		zap.Int("creates", s.Creates),
		zap.Int("updates", s.Updates),
		zap.Int("deletes", s.Deletes),
		zap.Int("applied", s.Applied),
		zap.Int("failed", s.Failed),
		zap.Int("skipped", s.Skipped),
		zap.Int("pending", s.Pending),
	)
}
