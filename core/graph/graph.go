package graph

import (
	"fmt"
	"iter"
	"sort"
)

// Graph is a full typed snapshot of one backend's entities.
// Adapters build it during load; afterwards it is treated as read-only except
// by the reconcile engine, which works on its own Clone.
type Graph struct {
	schema   *Schema
	entities map[EntityType]map[NaturalKey]Entity
}

// New creates an empty graph for the schema.
func New(schema *Schema) *Graph {
	g := &Graph{
		schema:   schema,
		entities: make(map[EntityType]map[NaturalKey]Entity, len(schema.types)),
	}
	for _, ts := range schema.types {
		g.entities[ts.Type] = make(map[NaturalKey]Entity)
	}
	return g
}

// Schema returns the schema the graph was built for.
func (g *Graph) Schema() *Schema {
	return g.schema
}

// Types returns the entity types in dependency order.
func (g *Graph) Types() []EntityType {
	return g.schema.Types()
}

// Register adds an entity. It fails with *DuplicateKeyError if (type, key) is
// already present and with *SchemaError if the attributes do not match the
// type declaration.
func (g *Graph) Register(e Entity) error {
	byKey, ok := g.entities[e.Type]
	if !ok {
		return &SchemaError{Type: e.Type, Reason: "entity type is not declared"}
	}
	if ts, _ := g.schema.Lookup(e.Type); len(e.Key.Parts()) != len(ts.Key) {
		return &SchemaError{Type: e.Type, Reason: fmt.Sprintf("natural key %q has %d parts, want %d", e.Key.String(), len(e.Key.Parts()), len(ts.Key))}
	}
	if _, dup := byKey[e.Key]; dup {
		return &DuplicateKeyError{Type: e.Type, Key: e.Key}
	}

	attrs, err := g.schema.NormalizeAttributes(e.Type, e.Attributes, true)
	if err != nil {
		return err
	}

	stored := e.Clone()
	stored.Attributes = attrs
	byKey[e.Key] = stored
	return nil
}

// RegisterValues normalizes a raw field map (natural key fields included) and
// registers the resulting entity with the given backend id.
func (g *Graph) RegisterValues(t EntityType, values map[string]any, backendID string) (Entity, error) {
	key, attrs, err := g.schema.Normalize(t, values)
	if err != nil {
		return Entity{}, err
	}
	e := Entity{Type: t, Key: key, Attributes: attrs, BackendID: backendID}
	if err := g.Register(e); err != nil {
		return Entity{}, err
	}
	return e, nil
}

// Get returns a copy of the entity, or *NotFoundError.
func (g *Graph) Get(t EntityType, key NaturalKey) (Entity, error) {
	e, ok := g.entities[t][key]
	if !ok {
		return Entity{}, &NotFoundError{Type: t, Key: key}
	}
	return e.Clone(), nil
}

// Has reports whether the entity is present.
func (g *Graph) Has(t EntityType, key NaturalKey) bool {
	_, ok := g.entities[t][key]
	return ok
}

// Len returns the number of entities of type t.
func (g *Graph) Len(t EntityType) int {
	return len(g.entities[t])
}

// Size returns the total number of entities.
func (g *Graph) Size() int {
	n := 0
	for _, byKey := range g.entities {
		n += len(byKey)
	}
	return n
}

// Keys returns the natural keys of type t in lexicographic order.
func (g *Graph) Keys(t EntityType) []NaturalKey {
	byKey := g.entities[t]
	keys := make([]NaturalKey, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// All returns the entities of type t in natural key order. The sequence is
// lazy and restartable: each iteration takes a fresh ordering of the keys.
func (g *Graph) All(t EntityType) iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for _, k := range g.Keys(t) {
			e, ok := g.entities[t][k]
			if !ok {
				continue
			}
			if !yield(e.Clone()) {
				return
			}
		}
	}
}

// AddChild records an ownership edge from parent to child. Both entities must
// already be registered.
func (g *Graph) AddChild(parentType EntityType, parentKey NaturalKey, childType EntityType, childKey NaturalKey) error {
	parent, ok := g.entities[parentType][parentKey]
	if !ok {
		return &NotFoundError{Type: parentType, Key: parentKey}
	}
	if !g.Has(childType, childKey) {
		return &NotFoundError{Type: childType, Key: childKey}
	}
	parent.addChild(childType, childKey)
	g.entities[parentType][parentKey] = parent
	return nil
}

// Put inserts or replaces an entity wholesale. It is reserved for the reconcile
// engine, which replaces an entity after a successful create or update.
func (g *Graph) Put(e Entity) error {
	byKey, ok := g.entities[e.Type]
	if !ok {
		return &SchemaError{Type: e.Type, Reason: "entity type is not declared"}
	}
	attrs, err := g.schema.NormalizeAttributes(e.Type, e.Attributes, true)
	if err != nil {
		return err
	}
	stored := e.Clone()
	stored.Attributes = attrs
	if prev, exists := byKey[e.Key]; exists && stored.Children == nil {
		stored.Children = prev.Clone().Children
	}
	byKey[e.Key] = stored
	return nil
}

// Remove deletes an entity. It is reserved for the reconcile engine.
func (g *Graph) Remove(t EntityType, key NaturalKey) bool {
	byKey, ok := g.entities[t]
	if !ok {
		return false
	}
	if _, exists := byKey[key]; !exists {
		return false
	}
	delete(byKey, key)
	return true
}

// Referrers returns the entities whose reference fields point at (t, key),
// keyed by type, in dependency order of the referring types.
func (g *Graph) Referrers(t EntityType, key NaturalKey) []Entity {
	var out []Entity
	deps := g.schema.Dependents(t)
	for _, dt := range g.schema.Types() {
		fields, ok := deps[dt]
		if !ok {
			continue
		}
		for _, k := range g.Keys(dt) {
			e := g.entities[dt][k]
			for _, f := range fields {
				if NaturalKey(e.Attributes.String(f.Name)) == key {
					out = append(out, e.Clone())
					break
				}
			}
		}
	}
	return out
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := New(g.schema)
	for t, byKey := range g.entities {
		for k, e := range byKey {
			out.entities[t][k] = e.Clone()
		}
	}
	return out
}

// LinkReferences records an ownership edge from every referenced entity to
// the entities referencing it. References to absent entities are skipped.
func (g *Graph) LinkReferences() {
	for _, t := range g.schema.Types() {
		ts, _ := g.schema.Lookup(t)
		refs := ts.Refs()
		if len(refs) == 0 {
			continue
		}
		for _, k := range g.Keys(t) {
			e := g.entities[t][k]
			for _, f := range refs {
				_ = g.AddChild(f.Ref, NaturalKey(e.Attributes.String(f.Name)), t, k)
			}
		}
	}
}
