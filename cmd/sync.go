package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"inventory-sync/core/config"
	"inventory-sync/core/logger"
	"inventory-sync/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Report output formats.
const (
	outputText = "text"
	outputJSON = "json"
)

// syncFlags holds the per-run choices of the sync command.
type syncFlags struct {
	mode        string
	unmatched   string
	branch      string
	force       bool
	source      string
	destination string
	yes         bool
	workers     int
	timeout     time.Duration
	output      string
}

var syncOpts syncFlags

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Converge the destination inventory onto the source",
	Long: `Load the source and destination inventories, compute the differences and
either report them or apply them to the destination.

Creates and updates run parent types first; deletes run children first.
A record that fails never aborts the run: it is reported, and any record
depending on it is skipped. The command exits non-zero when the report holds
failed or skipped records.

Examples:
  # Plan only
  inventory-sync sync --mode report --unmatched skip

  # Apply onto a NetBox branch, creating it if needed
  inventory-sync sync --mode apply --unmatched delete --branch droplets --force

  # Apply without the confirmation prompt
  inventory-sync sync --mode apply --unmatched skip --yes`,
	RunE: runSync,
}

func init() {
	f := syncCmd.Flags()
	f.StringVar(&syncOpts.mode, "mode", string(reconcile.ModeReport), "Run mode (report, apply)")
	f.StringVar(&syncOpts.unmatched, "unmatched", "", "What to do with destination-only entities (delete, skip)")
	f.StringVar(&syncOpts.branch, "branch", "", "NetBox branch to operate on (defaults to netbox.branch)")
	f.BoolVar(&syncOpts.force, "force", false, "Create the NetBox branch when it does not exist")
	f.StringVar(&syncOpts.source, "source", "", "Source backend (digitalocean, snapshot, sql)")
	f.StringVar(&syncOpts.destination, "destination", "", "Destination backend (netbox, snapshot, sql)")
	f.BoolVar(&syncOpts.yes, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	f.IntVar(&syncOpts.workers, "workers", 0, "Concurrent adapter calls per entity type (defaults to sync.workers)")
	f.DurationVar(&syncOpts.timeout, "timeout", 0, "Timeout of each adapter call (defaults to sync.timeout_seconds)")
	f.StringVar(&syncOpts.output, "output", outputText, "Report format (text, json)")
	_ = syncCmd.MarkFlagRequired("unmatched")

	RootCmd.AddCommand(syncCmd)
}

// runOptions validates the flags and fills unset tuning knobs from cfg.
func (f syncFlags) runOptions(cfg reconcile.Config) (reconcile.RunOptions, error) {
	mode, err := reconcile.ParseMode(f.mode)
	if err != nil {
		return reconcile.RunOptions{}, err
	}
	unmatched, err := reconcile.ParseUnmatchedPolicy(f.unmatched)
	if err != nil {
		return reconcile.RunOptions{}, err
	}
	if err := checkOutput(f.output); err != nil {
		return reconcile.RunOptions{}, err
	}

	opts := reconcile.RunOptions{Mode: mode, Unmatched: unmatched, Workers: f.workers, Timeout: f.timeout}
	if opts.Workers <= 0 {
		opts.Workers = cfg.Workers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = cfg.Timeout()
	}
	return opts, opts.Validate()
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer l.Sync()

	opts, err := syncOpts.runOptions(cfg.Sync)
	if err != nil {
		return err
	}

	f := newFactory(cfg, l)
	src, err := f.source(ctx, orDefault(syncOpts.source, cfg.Backends.Source))
	if err != nil {
		return err
	}
	dst, err := f.destination(ctx, orDefault(syncOpts.destination, cfg.Backends.Destination),
		branchOptions{Name: syncOpts.branch, Force: syncOpts.force})
	if err != nil {
		return err
	}

	orch := reconcile.NewOrchestrator(src, dst, l, nil)
	out := cmd.OutOrStdout()

	if opts.Mode == reconcile.ModeApply && !syncOpts.yes {
		proceed, err := confirmPlan(ctx, cmd, orch, opts.Unmatched)
		if err != nil {
			return err
		}
		if !proceed {
			l.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}
	}

	l.Info("Starting reconciliation", zap.String("mode", string(opts.Mode)), zap.String("unmatched", string(opts.Unmatched)))
	report, err := orch.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	if err := renderReport(out, report, syncOpts.output); err != nil {
		return err
	}
	if report.Failed() {
		return ErrRunFailed
	}
	return nil
}

// confirmPlan prints the planned records and asks before applying them. An
// empty plan needs no confirmation and is reported as cancelled.
func confirmPlan(ctx context.Context, cmd *cobra.Command, orch *reconcile.Orchestrator, unmatched reconcile.UnmatchedPolicy) (bool, error) {
	if err := orch.Prepare(ctx); err != nil {
		return false, err
	}
	plan, err := orch.Plan(ctx, unmatched)
	if err != nil {
		return false, err
	}
	out := cmd.OutOrStdout()
	if plan.Diff.Empty() {
		fmt.Fprintln(out, "Destination is already in sync.")
		return false, nil
	}

	fmt.Fprintln(out, "Planned changes:")
	for _, r := range plan.Diff.Records {
		fmt.Fprintf(out, "  %s\n", r)
	}
	fmt.Fprintln(out, plan.Diff.Summary())
	return confirm(cmd.InOrStdin(), out, false), nil
}

// confirm prompts for confirmation unless yes is set.
func confirm(in io.Reader, out io.Writer, yes bool) bool {
	if yes {
		fmt.Fprintln(out, "\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Fprint(out, "\n⚠️  Type 'yes' to confirm destructive actions: ")
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}

func renderReport(w io.Writer, report *reconcile.Report, format string) error {
	if format == outputJSON {
		return report.RenderJSON(w)
	}
	return report.Render(w)
}

func checkOutput(format string) error {
	switch format {
	case outputText, outputJSON:
		return nil
	default:
		return fmt.Errorf("invalid output format %q: expected %q or %q", format, outputText, outputJSON)
	}
}

// bootstrap loads the configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, l, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
