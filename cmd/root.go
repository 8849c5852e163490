package cmd

import (
	"errors"
	"fmt"
	"os"

	"inventory-sync/core/logger"
	"inventory-sync/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrRunFailed is returned when a run finished with failed or skipped records.
var ErrRunFailed = errors.New("reconciliation finished with failed records")

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "inventory-sync",
	Short: "Inventory Sync",
	Long: `Inventory Sync converges a DCIM inventory onto a source of truth.
It reads droplets from DigitalOcean (or a snapshot or SQL store) and creates,
updates and deletes the matching manufacturers, device types, roles, sites and
devices in NetBox.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console format with debug level gives readable ISO8601 timestamps.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error onto the process exit status. Runs aborted by
// a load failure or a duplicate natural key exit with 2, any other failure
// with 1.
func exitCode(err error) int {
	if reconcile.IsFatal(err) {
		return 2
	}
	return 1
}
