package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"inventory-sync/core/graph"

	"github.com/stretchr/testify/require"
)

const (
	tManufacturer graph.EntityType = "manufacturer"
	tDeviceType   graph.EntityType = "device_type"
	tDeviceRole   graph.EntityType = "device_role"
	tSite         graph.EntityType = "site"
	tDevice       graph.EntityType = "device"
)

var testSchema = graph.MustSchema(
	graph.TypeSchema{Type: tManufacturer, Key: []string{"name"}, Fields: []graph.Field{
		{Name: "description", Kind: graph.KindString},
		{Name: "slug", Kind: graph.KindString},
	}},
	graph.TypeSchema{Type: tDeviceType, Key: []string{"model"}, Fields: []graph.Field{
		{Name: "manufacturer_name", Kind: graph.KindString, Ref: tManufacturer},
		{Name: "slug", Kind: graph.KindString},
	}},
	graph.TypeSchema{Type: tDeviceRole, Key: []string{"name"}, Fields: []graph.Field{
		{Name: "slug", Kind: graph.KindString},
	}},
	graph.TypeSchema{Type: tSite, Key: []string{"name"}, Fields: []graph.Field{
		{Name: "slug", Kind: graph.KindString},
	}},
	graph.TypeSchema{Type: tDevice, Key: []string{"name"}, Fields: []graph.Field{
		{Name: "device_type_name", Kind: graph.KindString, Ref: tDeviceType},
		{Name: "device_role_name", Kind: graph.KindString, Ref: tDeviceRole},
		{Name: "site_name", Kind: graph.KindString, Ref: tSite},
		{Name: "status", Kind: graph.KindString},
	}},
)

type seed struct {
	t      graph.EntityType
	values map[string]any
}

func manufacturer(name, slug string) seed {
	return seed{tManufacturer, map[string]any{"name": name, "slug": slug, "description": ""}}
}

func deviceType(model, mfr string) seed {
	return seed{tDeviceType, map[string]any{"model": model, "manufacturer_name": mfr, "slug": model}}
}

func deviceRole(name string) seed {
	return seed{tDeviceRole, map[string]any{"name": name, "slug": name}}
}

func site(name, slug string) seed {
	return seed{tSite, map[string]any{"name": name, "slug": slug}}
}

func device(name, dt, role, st string) seed {
	return seed{tDevice, map[string]any{
		"name": name, "device_type_name": dt, "device_role_name": role, "site_name": st, "status": "active",
	}}
}

func buildGraph(t *testing.T, seeds ...seed) *graph.Graph {
	t.Helper()
	g := graph.New(testSchema)
	for i, s := range seeds {
		_, err := g.RegisterValues(s.t, s.values, fmt.Sprintf("seed-%d", i))
		require.NoError(t, err)
	}
	return g
}

type call struct {
	action Action
	t      graph.EntityType
	key    string
}

func (c call) String() string { return fmt.Sprintf("%s %s %s", c.action, c.t, c.key) }

// fakeAdapter is an in-memory backend that captures the order of calls.
type fakeAdapter struct {
	name    string
	loadErr error
	delay   time.Duration
	fail    map[string]error

	mu       sync.Mutex
	state    *graph.Graph
	started  []call
	timeline []string
	nextID   int
	loads    atomic.Int32

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	prepared atomic.Bool
	flushed  atomic.Int32
}

func newFake(name string, g *graph.Graph) *fakeAdapter {
	return &fakeAdapter{name: name, state: g, fail: map[string]error{}}
}

func (f *fakeAdapter) failOn(action Action, t graph.EntityType, key string, err error) {
	f.fail[call{action, t, key}.String()] = err
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Load(ctx context.Context) (*graph.Graph, error) {
	f.loads.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone(), nil
}

func (f *fakeAdapter) begin(ctx context.Context, c call) error {
	n := f.inFlight.Add(1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	f.mu.Lock()
	f.started = append(f.started, c)
	f.timeline = append(f.timeline, "start "+c.String())
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.fail[c.String()]
}

func (f *fakeAdapter) end(c call) {
	f.mu.Lock()
	f.timeline = append(f.timeline, "done "+c.String())
	f.mu.Unlock()
	f.inFlight.Add(-1)
}

func (f *fakeAdapter) Create(ctx context.Context, t graph.EntityType, key graph.NaturalKey, attrs graph.Attributes) (graph.Entity, error) {
	c := call{ActionCreate, t, key.String()}
	defer f.end(c)
	if err := f.begin(ctx, c); err != nil {
		return graph.Entity{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ts, _ := testSchema.Lookup(t)
	for _, ref := range ts.Refs() {
		v := attrs.String(ref.Name)
		if !f.state.Has(ref.Ref, graph.NewKey(v)) {
			return graph.Entity{}, &ReferenceResolutionError{Type: t, Key: key, Field: ref.Name, RefType: ref.Ref, RefValue: v}
		}
	}
	f.nextID++
	e := graph.Entity{Type: t, Key: key, Attributes: attrs, BackendID: fmt.Sprintf("id-%d", f.nextID)}
	if err := f.state.Register(e); err != nil {
		return graph.Entity{}, err
	}
	return f.state.Get(t, key)
}

func (f *fakeAdapter) Update(ctx context.Context, entity graph.Entity, changed graph.Attributes) (graph.Entity, error) {
	c := call{ActionUpdate, entity.Type, entity.Key.String()}
	defer f.end(c)
	if err := f.begin(ctx, c); err != nil {
		return graph.Entity{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	current, err := f.state.Get(entity.Type, entity.Key)
	if err != nil {
		return graph.Entity{}, fmt.Errorf("update: %w", ErrNotFound)
	}
	for k, v := range changed {
		current.Attributes[k] = v
	}
	if err := f.state.Put(current); err != nil {
		return graph.Entity{}, err
	}
	return current, nil
}

func (f *fakeAdapter) Delete(ctx context.Context, entity graph.Entity) error {
	c := call{ActionDelete, entity.Type, entity.Key.String()}
	defer f.end(c)
	if err := f.begin(ctx, c); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.state.Has(entity.Type, entity.Key) {
		return fmt.Errorf("delete: %w", ErrNotFound)
	}
	if refs := f.state.Referrers(entity.Type, entity.Key); len(refs) > 0 {
		return &ConstraintError{Type: entity.Type, Key: entity.Key, Err: errors.New("still referenced")}
	}
	f.state.Remove(entity.Type, entity.Key)
	return nil
}

func (f *fakeAdapter) Prepare(ctx context.Context) error {
	f.prepared.Store(true)
	return nil
}

func (f *fakeAdapter) Flush(ctx context.Context) error {
	f.flushed.Add(1)
	return nil
}

func (f *fakeAdapter) snapshot() *graph.Graph {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

func (f *fakeAdapter) calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.started...)
}

// position returns the index of an event ("start ..." or "done ...") in the
// call timeline, or -1.
func (f *fakeAdapter) position(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.timeline {
		if e == event {
			return i
		}
	}
	return -1
}
