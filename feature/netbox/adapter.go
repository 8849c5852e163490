package netbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"inventory-sync/core/graph"
	"inventory-sync/core/reconcile"
	"inventory-sync/feature/dcim"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// endpoints maps entity types onto their list/create paths.
var endpoints = map[graph.EntityType]string{
	dcim.Manufacturer: "/api/dcim/manufacturers/",
	dcim.DeviceType:   "/api/dcim/device-types/",
	dcim.DeviceRole:   "/api/dcim/device-roles/",
	dcim.Site:         "/api/dcim/sites/",
	dcim.Device:       "/api/dcim/devices/",
}

// defaultRoleColor is assigned to device roles created by the adapter.
const defaultRoleColor = "ffffff"

// Adapter is a destination adapter over the NetBox DCIM API. It is safe for
// concurrent use.
type Adapter struct {
	client *Client
	logger *zap.Logger

	mu  sync.RWMutex
	ids map[graph.EntityType]map[graph.NaturalKey]int64
}

// NewAdapter creates a NetBox adapter. Branch selection happens on the client
// before the first load.
func NewAdapter(client *Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		client: client,
		logger: logger.With(zap.String("adapter", "netbox")),
		ids:    newIndex(),
	}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return "netbox" }

type loaded struct {
	manufacturers []manufacturer
	deviceTypes   []deviceType
	deviceRoles   []deviceRole
	sites         []site
	devices       []device
}

// Load fetches every DCIM object type concurrently and builds the graph in
// dependency order. Any failed request fails the load.
func (a *Adapter) Load(ctx context.Context) (*graph.Graph, error) {
	var l loaded
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listInto(gctx, a.client, dcim.Manufacturer, &l.manufacturers) })
	g.Go(func() error { return listInto(gctx, a.client, dcim.DeviceType, &l.deviceTypes) })
	g.Go(func() error { return listInto(gctx, a.client, dcim.DeviceRole, &l.deviceRoles) })
	g.Go(func() error { return listInto(gctx, a.client, dcim.Site, &l.sites) })
	g.Go(func() error { return listInto(gctx, a.client, dcim.Device, &l.devices) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := dcim.NewGraph()
	for _, m := range l.manufacturers {
		if err := register(out, dcim.Manufacturer, m.ID, map[string]any{
			dcim.FieldName: m.Name, dcim.FieldSlug: m.Slug, dcim.FieldDescription: m.Description,
		}); err != nil {
			return nil, err
		}
	}
	for _, dt := range l.deviceTypes {
		if err := register(out, dcim.DeviceType, dt.ID, map[string]any{
			dcim.FieldModel: dt.Model, dcim.FieldSlug: dt.Slug, dcim.FieldManufacturerName: dt.Manufacturer.Name,
		}); err != nil {
			return nil, err
		}
	}
	for _, r := range l.deviceRoles {
		if err := register(out, dcim.DeviceRole, r.ID, map[string]any{
			dcim.FieldName: r.Name, dcim.FieldSlug: r.Slug,
		}); err != nil {
			return nil, err
		}
	}
	for _, s := range l.sites {
		if err := register(out, dcim.Site, s.ID, map[string]any{
			dcim.FieldName: s.Name, dcim.FieldSlug: s.Slug,
		}); err != nil {
			return nil, err
		}
	}
	skipped := 0
	for _, d := range l.devices {
		if d.Name == nil || *d.Name == "" {
			// Unnamed devices have no natural key.
			skipped++
			continue
		}
		if err := register(out, dcim.Device, d.ID, map[string]any{
			dcim.FieldName:           *d.Name,
			dcim.FieldDeviceTypeName: d.DeviceType.Model,
			dcim.FieldDeviceRoleName: d.Role.Name,
			dcim.FieldSiteName:       d.Site.Name,
			dcim.FieldStatus:         d.Status.Value,
		}); err != nil {
			return nil, err
		}
	}
	dcim.LinkChildren(out)

	a.reindex(out)
	a.logger.Info("Loaded NetBox inventory",
		zap.Int("manufacturers", out.Len(dcim.Manufacturer)),
		zap.Int("device_types", out.Len(dcim.DeviceType)),
		zap.Int("device_roles", out.Len(dcim.DeviceRole)),
		zap.Int("sites", out.Len(dcim.Site)),
		zap.Int("devices", out.Len(dcim.Device)),
		zap.Int("unnamed_devices", skipped),
		zap.String("branch", a.client.Branch()),
	)
	return out, nil
}

// Create creates an object, resolving reference attributes to NetBox ids.
func (a *Adapter) Create(ctx context.Context, t graph.EntityType, key graph.NaturalKey, attrs graph.Attributes) (graph.Entity, error) {
	path, ok := endpoints[t]
	if !ok {
		return graph.Entity{}, fmt.Errorf("netbox: unsupported entity type %q", t)
	}
	body, err := a.payload(t, key, attrs)
	if err != nil {
		return graph.Entity{}, err
	}
	if t == dcim.DeviceRole {
		body["color"] = defaultRoleColor
	}

	id, err := a.client.create(ctx, path, body)
	if err != nil {
		return graph.Entity{}, err
	}
	a.remember(t, key, id)
	a.logger.Debug("Created object", zap.String("type", string(t)), zap.String("key", key.String()), zap.Int64("id", id))

	return graph.Entity{Type: t, Key: key, Attributes: attrs.Clone(), BackendID: strconv.FormatInt(id, 10)}, nil
}

// Update patches an object with its full desired state.
func (a *Adapter) Update(ctx context.Context, entity graph.Entity, changed graph.Attributes) (graph.Entity, error) {
	path, ok := endpoints[entity.Type]
	if !ok {
		return graph.Entity{}, fmt.Errorf("netbox: unsupported entity type %q", entity.Type)
	}
	id, err := a.idOf(entity)
	if err != nil {
		return graph.Entity{}, err
	}

	merged := entity.Attributes.Clone()
	if merged == nil {
		merged = graph.Attributes{}
	}
	for k, v := range changed {
		merged[k] = v
	}
	body, err := a.payload(entity.Type, entity.Key, merged)
	if err != nil {
		return graph.Entity{}, err
	}
	if err := a.client.patch(ctx, path, id, body); err != nil {
		return graph.Entity{}, err
	}

	out := entity.Clone()
	out.Attributes = merged
	out.BackendID = strconv.FormatInt(id, 10)
	return out, nil
}

// Delete deletes an object. NetBox answers 409 when other objects still
// protect it, which becomes a *reconcile.ConstraintError.
func (a *Adapter) Delete(ctx context.Context, entity graph.Entity) error {
	path, ok := endpoints[entity.Type]
	if !ok {
		return fmt.Errorf("netbox: unsupported entity type %q", entity.Type)
	}
	id, err := a.idOf(entity)
	if err != nil {
		return err
	}

	if err := a.client.delete(ctx, path, id); err != nil {
		if isStatus(err, fiber.StatusConflict) {
			return &reconcile.ConstraintError{Type: entity.Type, Key: entity.Key, Err: err}
		}
		return err
	}
	a.forget(entity.Type, entity.Key)
	return nil
}

// payload builds the request body for t, resolving references.
func (a *Adapter) payload(t graph.EntityType, key graph.NaturalKey, attrs graph.Attributes) (map[string]any, error) {
	body := map[string]any{dcim.KeyField(t): key.String()}

	ts, _ := dcim.Schema.Lookup(t)
	for _, f := range ts.Fields {
		v, ok := attrs[f.Name]
		if !ok {
			continue
		}
		if !f.IsRef() {
			body[f.Name] = v
			continue
		}
		refKey := graph.NewKey(attrs.String(f.Name))
		id, ok := a.lookup(f.Ref, refKey)
		if !ok {
			return nil, &reconcile.ReferenceResolutionError{
				Type: t, Key: key, Field: f.Name, RefType: f.Ref, RefValue: refKey.String(),
			}
		}
		body[refFields[f.Name]] = id
	}
	return body, nil
}

// refFields maps reference attributes onto NetBox foreign key fields.
var refFields = map[string]string{
	dcim.FieldManufacturerName: "manufacturer",
	dcim.FieldDeviceTypeName:   "device_type",
	dcim.FieldDeviceRoleName:   "role",
	dcim.FieldSiteName:         "site",
}

func (a *Adapter) idOf(e graph.Entity) (int64, error) {
	if e.BackendID != "" {
		id, err := strconv.ParseInt(e.BackendID, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("netbox: invalid backend id %q for %s %s: %w", e.BackendID, e.Type, e.Key, err)
		}
		return id, nil
	}
	if id, ok := a.lookup(e.Type, e.Key); ok {
		return id, nil
	}
	return 0, fmt.Errorf("netbox: %s %s: %w", e.Type, e.Key, reconcile.ErrNotFound)
}

func (a *Adapter) lookup(t graph.EntityType, key graph.NaturalKey) (int64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.ids[t][key]
	return id, ok
}

func (a *Adapter) remember(t graph.EntityType, key graph.NaturalKey, id int64) {
	a.mu.Lock()
	a.ids[t][key] = id
	a.mu.Unlock()
}

func (a *Adapter) forget(t graph.EntityType, key graph.NaturalKey) {
	a.mu.Lock()
	delete(a.ids[t], key)
	a.mu.Unlock()
}

func (a *Adapter) reindex(g *graph.Graph) {
	ids := newIndex()
	for _, t := range g.Types() {
		for e := range g.All(t) {
			if id, err := strconv.ParseInt(e.BackendID, 10, 64); err == nil {
				ids[t][e.Key] = id
			}
		}
	}
	a.mu.Lock()
	a.ids = ids
	a.mu.Unlock()
}

func newIndex() map[graph.EntityType]map[graph.NaturalKey]int64 {
	ids := make(map[graph.EntityType]map[graph.NaturalKey]int64)
	for _, t := range dcim.Schema.Types() {
		ids[t] = make(map[graph.NaturalKey]int64)
	}
	return ids
}

func listInto[T any](ctx context.Context, c *Client, t graph.EntityType, out *[]T) error {
	err := c.list(ctx, endpoints[t], nil, func(raw json.RawMessage) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		*out = append(*out, v)
		return nil
	})
	if err != nil {
		return fmt.Errorf("list %s: %w", t, err)
	}
	return nil
}

func register(g *graph.Graph, t graph.EntityType, id int64, values map[string]any) error {
	_, err := g.RegisterValues(t, values, strconv.FormatInt(id, 10))
	return err
}
