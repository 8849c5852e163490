package cmd

import (
	"errors"
	"fmt"

	"inventory-sync/feature/snapshot"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	exportBackend string
	exportFile    string
	exportObject  string
	exportBranch  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a backend's inventory as a YAML snapshot",
	Long: `Load the inventory of one backend and write it as a YAML snapshot, either
to a local file or to an object in the configured storage bucket.

Examples:
  inventory-sync export --backend netbox --file netbox.yaml
  inventory-sync export --backend digitalocean --object snapshots/droplets.yaml`,
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportBackend, "backend", "", "Backend to export (digitalocean, netbox, snapshot, sql)")
	f.StringVar(&exportFile, "file", "", "Write the snapshot to this file")
	f.StringVar(&exportObject, "object", "", "Write the snapshot to this object in storage.bucket")
	f.StringVar(&exportBranch, "branch", "", "NetBox branch to read (defaults to netbox.branch)")
	_ = exportCmd.MarkFlagRequired("backend")
	exportCmd.MarkFlagsMutuallyExclusive("file", "object")

	RootCmd.AddCommand(exportCmd)
}

// exportTarget resolves the snapshot configuration for --file or --object.
func exportTarget(file, object string) (snapshot.Config, error) {
	switch {
	case file != "" && object != "":
		return snapshot.Config{}, errors.New("--file and --object are mutually exclusive")
	case file != "":
		return snapshot.Config{Backend: snapshot.BackendFile, Path: file}, nil
	case object != "":
		return snapshot.Config{Backend: snapshot.BackendObject, Object: object}, nil
	default:
		return snapshot.Config{}, errors.New("one of --file or --object is required")
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := checkBackend("export", exportBackend, exportBackends); err != nil {
		return err
	}
	target, err := exportTarget(exportFile, exportObject)
	if err != nil {
		return err
	}

	cfg, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer l.Sync()

	f := newFactory(cfg, l)
	a, err := f.build(ctx, exportBackend, branchOptions{Name: exportBranch})
	if err != nil {
		return err
	}
	g, err := a.Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", a.Name(), err)
	}

	store, err := f.snapshotStore(target)
	if err != nil {
		return err
	}
	if err := snapshot.Write(ctx, store, g); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	l.Info("Snapshot exported",
		zap.String("backend", a.Name()),
		zap.String("location", store.Location()),
		zap.Int("entities", g.Size()),
	)
	return nil
}
