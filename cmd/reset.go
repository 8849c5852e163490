package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-sync/core/reconcile"
	"inventory-sync/feature/sqlstore"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	resetDestination string
	resetBranch      string
	resetForce       bool
	resetYes         bool
	resetTruncate    bool
	resetWorkers     int
	resetTimeout     time.Duration
	resetOutput      string
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every entity from the destination",
	Long: `Delete every manufacturer, device type, role, site and device from the
destination, children first. This is a sync against an empty source with
unmatched=delete.

With --truncate and the sql destination, the entity table is emptied in one
statement instead.`,
	RunE: runReset,
}

func init() {
	f := resetCmd.Flags()
	f.StringVar(&resetDestination, "destination", "", "Destination backend (netbox, snapshot, sql)")
	f.StringVar(&resetBranch, "branch", "", "NetBox branch to operate on (defaults to netbox.branch)")
	f.BoolVar(&resetForce, "force", false, "Create the NetBox branch when it does not exist")
	f.BoolVar(&resetYes, "yes", false, "Auto-confirm destructive actions (non-interactive)")
	f.BoolVar(&resetTruncate, "truncate", false, "Empty the sql store directly")
	f.IntVar(&resetWorkers, "workers", 0, "Concurrent adapter calls per entity type (defaults to sync.workers)")
	f.DurationVar(&resetTimeout, "timeout", 0, "Timeout of each adapter call (defaults to sync.timeout_seconds)")
	f.StringVar(&resetOutput, "output", outputText, "Report format (text, json)")

	RootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := syncFlags{
		mode:      string(reconcile.ModeApply),
		unmatched: string(reconcile.UnmatchedDelete),
		workers:   resetWorkers,
		timeout:   resetTimeout,
		output:    resetOutput,
	}

	cfg, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer l.Sync()

	opts, err := flags.runOptions(cfg.Sync)
	if err != nil {
		return err
	}

	name := orDefault(resetDestination, cfg.Backends.Destination)
	if resetTruncate && name != backendSQL {
		return fmt.Errorf("--truncate only applies to the %s destination", backendSQL)
	}

	f := newFactory(cfg, l)
	if err := checkBackend("destination", name, destinationBackends); err != nil {
		return err
	}
	dst, err := f.build(ctx, name, branchOptions{Name: resetBranch, Force: resetForce})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Every entity in the %s destination will be deleted.\n", dst.Name())
	if !confirm(cmd.InOrStdin(), out, resetYes) {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	if resetTruncate {
		store, ok := dst.(*sqlstore.Adapter)
		if !ok {
			return fmt.Errorf("--truncate needs a sql store, got %s", dst.Name())
		}
		if err := store.Prepare(ctx); err != nil {
			return err
		}
		n, err := store.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d stored entities.\n", n)
		return nil
	}

	l.Info("Resetting destination", zap.String("destination", dst.Name()))
	report, err := reconcile.NewOrchestrator(emptySource{}, dst, l, nil).Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	if err := renderReport(out, report, resetOutput); err != nil {
		return err
	}
	if report.Failed() {
		return ErrRunFailed
	}
	return nil
}
