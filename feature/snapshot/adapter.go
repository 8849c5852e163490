package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"inventory-sync/core/graph"
	"inventory-sync/core/reconcile"

	"go.uber.org/zap"
)

// Adapter serves a YAML snapshot as an inventory backend. Writes apply to an
// in-memory copy that Flush persists, so a failed run leaves the stored
// snapshot untouched.
type Adapter struct {
	store  Store
	schema *graph.Schema
	logger *zap.Logger

	mu    sync.Mutex
	state *graph.Graph
	dirty bool
}

// NewAdapter creates a snapshot adapter over store.
func NewAdapter(store Store, schema *graph.Schema, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		store:  store,
		schema: schema,
		logger: logger.With(zap.String("adapter", "snapshot"), zap.String("location", store.Location())),
	}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return "snapshot" }

// Load reads the stored snapshot. A missing snapshot is an empty inventory.
func (a *Adapter) Load(ctx context.Context) (*graph.Graph, error) {
	g, err := Read(ctx, a.store, a.schema)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.state = g.Clone()
	a.dirty = false
	a.mu.Unlock()

	a.logger.Debug("Loaded snapshot", zap.Int("entities", g.Size()))
	return g, nil
}

// Create adds an entity whose references are all present.
func (a *Adapter) Create(ctx context.Context, t graph.EntityType, key graph.NaturalKey, attrs graph.Attributes) (graph.Entity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	state := a.current()

	if err := checkReferences(state, t, key, attrs); err != nil {
		return graph.Entity{}, err
	}
	e := graph.Entity{Type: t, Key: key, Attributes: attrs.Clone()}
	if err := state.Register(e); err != nil {
		return graph.Entity{}, err
	}
	a.dirty = true
	return state.Get(t, key)
}

// Update merges changed into the entity.
func (a *Adapter) Update(ctx context.Context, entity graph.Entity, changed graph.Attributes) (graph.Entity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	state := a.current()

	current, err := state.Get(entity.Type, entity.Key)
	if err != nil {
		return graph.Entity{}, fmt.Errorf("%s %s: %w", entity.Type, entity.Key, reconcile.ErrNotFound)
	}
	if err := checkReferences(state, entity.Type, entity.Key, changed); err != nil {
		return graph.Entity{}, err
	}
	for k, v := range changed {
		current.Attributes[k] = v
	}
	if err := state.Put(current); err != nil {
		return graph.Entity{}, err
	}
	a.dirty = true
	return state.Get(entity.Type, entity.Key)
}

// Delete removes an entity nothing references.
func (a *Adapter) Delete(ctx context.Context, entity graph.Entity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	state := a.current()

	if !state.Has(entity.Type, entity.Key) {
		return fmt.Errorf("%s %s: %w", entity.Type, entity.Key, reconcile.ErrNotFound)
	}
	if refs := state.Referrers(entity.Type, entity.Key); len(refs) > 0 {
		dependents := make([]string, 0, len(refs))
		for _, r := range refs {
			dependents = append(dependents, fmt.Sprintf("%s %s", r.Type, r.Key))
		}
		return &reconcile.ConstraintError{
			Type: entity.Type, Key: entity.Key, Dependents: dependents,
			Err: errors.New("still referenced in snapshot"),
		}
	}
	state.Remove(entity.Type, entity.Key)
	a.dirty = true
	return nil
}

// Flush writes pending changes to the store.
func (a *Adapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.dirty {
		return nil
	}
	if err := Write(ctx, a.store, a.state); err != nil {
		return err
	}
	a.dirty = false
	a.logger.Info("Snapshot written", zap.Int("entities", a.state.Size()))
	return nil
}

func (a *Adapter) current() *graph.Graph {
	if a.state == nil {
		a.state = graph.New(a.schema)
	}
	return a.state
}

// Read loads and decodes the snapshot held by store.
func Read(ctx context.Context, store Store, schema *graph.Schema) (*graph.Graph, error) {
	data, err := store.Read(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return graph.New(schema), nil
	}
	if err != nil {
		return nil, err
	}
	g, err := Decode(bytes.NewReader(data), schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", store.Location(), err)
	}
	g.LinkReferences()
	return g, nil
}

// Write encodes g into store.
func Write(ctx context.Context, store Store, g *graph.Graph) error {
	var buf bytes.Buffer
	if err := Encode(&buf, g); err != nil {
		return err
	}
	return store.Write(ctx, buf.Bytes())
}

func checkReferences(g *graph.Graph, t graph.EntityType, key graph.NaturalKey, attrs graph.Attributes) error {
	ts, ok := g.Schema().Lookup(t)
	if !ok {
		return &graph.SchemaError{Type: t, Reason: "entity type is not declared"}
	}
	for _, f := range ts.Refs() {
		if _, present := attrs[f.Name]; !present {
			continue
		}
		v := attrs.String(f.Name)
		if !g.Has(f.Ref, graph.NewKey(v)) {
			return &reconcile.ReferenceResolutionError{Type: t, Key: key, Field: f.Name, RefType: f.Ref, RefValue: v}
		}
	}
	return nil
}
