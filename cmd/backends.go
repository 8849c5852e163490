package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inventory-sync/core/config"
	"inventory-sync/core/database"
	"inventory-sync/core/graph"
	"inventory-sync/core/reconcile"
	"inventory-sync/core/storage"
	"inventory-sync/feature/dcim"
	"inventory-sync/feature/digitalocean"
	"inventory-sync/feature/netbox"
	"inventory-sync/feature/snapshot"
	"inventory-sync/feature/sqlstore"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Backend names accepted by --source, --destination and --backend.
const (
	backendDigitalOcean = "digitalocean"
	backendNetBox       = "netbox"
	backendSnapshot     = "snapshot"
	backendSQL          = "sql"
)

var (
	sourceBackends      = []string{backendDigitalOcean, backendSnapshot, backendSQL}
	destinationBackends = []string{backendNetBox, backendSnapshot, backendSQL}
	exportBackends      = []string{backendDigitalOcean, backendNetBox, backendSnapshot, backendSQL}
)

// branchOptions is the destination context passed to the NetBox adapter.
type branchOptions struct {
	Name  string
	Force bool
}

// factory builds adapters from the configuration. Connections are opened
// lazily and shared between the adapters of one command.
type factory struct {
	cfg    *config.Config
	logger *zap.Logger

	db    *gorm.DB
	store storage.Client
}

func newFactory(cfg *config.Config, logger *zap.Logger) *factory {
	return &factory{cfg: cfg, logger: logger}
}

// source builds a source adapter, cached when sync.cache_ttl_seconds is set.
func (f *factory) source(ctx context.Context, name string) (reconcile.Adapter, error) {
	if err := checkBackend("source", name, sourceBackends); err != nil {
		return nil, err
	}
	a, err := f.build(ctx, name, branchOptions{})
	if err != nil {
		return nil, err
	}
	return f.cached(a), nil
}

// destination builds a destination adapter, cached when
// sync.cache_ttl_seconds is set.
func (f *factory) destination(ctx context.Context, name string, branch branchOptions) (reconcile.Adapter, error) {
	if err := checkBackend("destination", name, destinationBackends); err != nil {
		return nil, err
	}
	a, err := f.build(ctx, name, branch)
	if err != nil {
		return nil, err
	}
	return f.cached(a), nil
}

func (f *factory) build(ctx context.Context, name string, branch branchOptions) (reconcile.Adapter, error) {
	switch name {
	case backendDigitalOcean:
		client, err := digitalocean.NewClient(f.cfg.DigitalOcean)
		if err != nil {
			return nil, err
		}
		return digitalocean.NewAdapter(client, f.logger), nil

	case backendNetBox:
		client, err := netbox.NewClient(f.cfg.NetBox)
		if err != nil {
			return nil, err
		}
		if branch.Name == "" {
			branch.Name = f.cfg.NetBox.Branch
		}
		if _, err := client.EnsureBranch(ctx, branch.Name, netbox.BranchOptions{
			Force:   branch.Force,
			Timeout: time.Duration(f.cfg.NetBox.BranchTimeoutSeconds) * time.Second,
		}, f.logger); err != nil {
			return nil, err
		}
		return netbox.NewAdapter(client, f.logger), nil

	case backendSnapshot:
		store, err := f.snapshotStore(f.cfg.Snapshot)
		if err != nil {
			return nil, err
		}
		return snapshot.NewAdapter(store, dcim.Schema, f.logger), nil

	case backendSQL:
		db, err := f.database()
		if err != nil {
			return nil, err
		}
		return sqlstore.NewAdapter(db, dcim.Schema, f.cfg.SQLStore, f.logger), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func (f *factory) cached(a reconcile.Adapter) reconcile.Adapter {
	ttl := f.cfg.Sync.CacheTTL()
	if ttl <= 0 {
		return a
	}
	return reconcile.NewCachedAdapter(a, ttl)
}

func (f *factory) database() (*gorm.DB, error) {
	if f.db != nil {
		return f.db, nil
	}
	db, err := database.Connect(f.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	f.db = db
	return db, nil
}

func (f *factory) objectStorage() (storage.Client, error) {
	if f.store != nil {
		return f.store, nil
	}
	client, err := storage.NewClient(f.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage: %w", err)
	}
	f.store = client
	return client, nil
}

func (f *factory) snapshotStore(cfg snapshot.Config) (snapshot.Store, error) {
	switch cfg.Backend {
	case snapshot.BackendFile, "":
		return snapshot.FileStore{Path: cfg.Path}, nil
	case snapshot.BackendObject:
		client, err := f.objectStorage()
		if err != nil {
			return nil, err
		}
		return snapshot.NewObjectStore(client, f.cfg.Storage.Bucket, f.cfg.Storage.Region, cfg.Object), nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Backend)
	}
}

func checkBackend(role, name string, allowed []string) error {
	for _, a := range allowed {
		if a == name {
			return nil
		}
	}
	return fmt.Errorf("invalid %s backend %q: expected one of %s", role, name, strings.Join(allowed, ", "))
}

// emptySource is a source with no entities. Reconciling onto it with
// unmatched=delete removes everything from the destination.
type emptySource struct{}

func (emptySource) Name() string { return "empty" }

func (emptySource) Load(ctx context.Context) (*graph.Graph, error) {
	return dcim.NewGraph(), nil
}

func (emptySource) Create(ctx context.Context, t graph.EntityType, key graph.NaturalKey, attrs graph.Attributes) (graph.Entity, error) {
	return graph.Entity{}, reconcile.ErrReadOnly
}

func (emptySource) Update(ctx context.Context, entity graph.Entity, changed graph.Attributes) (graph.Entity, error) {
	return graph.Entity{}, reconcile.ErrReadOnly
}

func (emptySource) Delete(ctx context.Context, entity graph.Entity) error {
	return reconcile.ErrReadOnly
}
