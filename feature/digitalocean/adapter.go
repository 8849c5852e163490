package digitalocean

import (
	"context"
	"fmt"

	"inventory-sync/core/graph"
	"inventory-sync/core/reconcile"
	"inventory-sync/feature/dcim"

	"go.uber.org/zap"
)

const (
	manufacturerName = "DigitalOcean"
	roleName         = "Droplet"
)

// statuses maps droplet states onto device statuses.
var statuses = map[string]string{
	"new":     dcim.StatusPlanned,
	"active":  dcim.StatusActive,
	"off":     dcim.StatusOffline,
	"archive": dcim.StatusDecommissioning,
}

// Lister lists droplets.
type Lister interface {
	ListDroplets(ctx context.Context) ([]Droplet, error)
}

// Adapter is a read-only source adapter over the DigitalOcean API.
type Adapter struct {
	droplets Lister
	logger   *zap.Logger
}

// NewAdapter creates a DigitalOcean adapter.
func NewAdapter(droplets Lister, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{droplets: droplets, logger: logger.With(zap.String("adapter", "digitalocean"))}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return "digitalocean" }

// Load lists droplets and derives the inventory from them: one manufacturer,
// one role, a device type per size, a site per region and a device per droplet.
func (a *Adapter) Load(ctx context.Context) (*graph.Graph, error) {
	droplets, err := a.droplets.ListDroplets(ctx)
	if err != nil {
		return nil, err
	}
	if len(droplets) == 0 {
		a.logger.Warn("No droplets returned from the API")
	}

	g := dcim.NewGraph()
	if _, err := g.RegisterValues(dcim.Manufacturer, map[string]any{
		dcim.FieldName:        manufacturerName,
		dcim.FieldDescription: "Cloud provider",
		dcim.FieldSlug:        "digitalocean",
	}, ""); err != nil {
		return nil, err
	}
	if _, err := g.RegisterValues(dcim.DeviceRole, map[string]any{
		dcim.FieldName: roleName,
		dcim.FieldSlug: "droplet",
	}, ""); err != nil {
		return nil, err
	}

	for _, d := range droplets {
		if d.SizeSlug == "" || d.Region.Name == "" {
			return nil, fmt.Errorf("droplet %q: missing size or region", d.Name)
		}

		if !g.Has(dcim.DeviceType, graph.NewKey(d.SizeSlug)) {
			if _, err := g.RegisterValues(dcim.DeviceType, map[string]any{
				dcim.FieldModel:            d.SizeSlug,
				dcim.FieldManufacturerName: manufacturerName,
				dcim.FieldSlug:             d.SizeSlug,
			}, ""); err != nil {
				return nil, err
			}
		}

		if !g.Has(dcim.Site, graph.NewKey(d.Region.Name)) {
			if _, err := g.RegisterValues(dcim.Site, map[string]any{
				dcim.FieldName: d.Region.Name,
				dcim.FieldSlug: d.Region.Slug,
			}, ""); err != nil {
				return nil, err
			}
		}

		if _, err := g.RegisterValues(dcim.Device, map[string]any{
			dcim.FieldName:           d.Name,
			dcim.FieldDeviceTypeName: d.SizeSlug,
			dcim.FieldDeviceRoleName: roleName,
			dcim.FieldSiteName:       d.Region.Name,
			dcim.FieldStatus:         deviceStatus(d.Status),
		}, ""); err != nil {
			return nil, err
		}
	}

	dcim.LinkChildren(g)
	a.logger.Info("Loaded droplets",
		zap.Int("droplets", len(droplets)),
		zap.Int("device_types", g.Len(dcim.DeviceType)),
		zap.Int("sites", g.Len(dcim.Site)),
	)
	return g, nil
}

// Create is not supported.
func (a *Adapter) Create(ctx context.Context, t graph.EntityType, key graph.NaturalKey, attrs graph.Attributes) (graph.Entity, error) {
	return graph.Entity{}, reconcile.ErrReadOnly
}

// Update is not supported.
func (a *Adapter) Update(ctx context.Context, entity graph.Entity, changed graph.Attributes) (graph.Entity, error) {
	return graph.Entity{}, reconcile.ErrReadOnly
}

// Delete is not supported.
func (a *Adapter) Delete(ctx context.Context, entity graph.Entity) error {
	return reconcile.ErrReadOnly
}

func deviceStatus(dropletStatus string) string {
	if s, ok := statuses[dropletStatus]; ok {
		return s
	}
	return dcim.StatusActive
}
