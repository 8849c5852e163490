package reconcile

import (
	"context"

	"inventory-sync/core/graph"
)

// Adapter is the capability set a backend implements to take part in a
// reconciliation, either as the source of truth or as the destination.
//
// Adapters never see or enforce ordering: the engine only calls Create for a
// type after every type it references has finished its create/update pass.
type Adapter interface {
	// Name returns the unique name of this adapter (e.g. "netbox", "digitalocean").
	Name() string

	// Load returns a complete, self-consistent snapshot. If the backend fails
	// mid-load the whole load fails; a partial graph is never returned.
	Load(ctx context.Context) (*graph.Graph, error)

	// Create creates an entity. Reference attributes hold natural keys; the
	// adapter resolves them to backend ids from its own state and fails with
	// *ReferenceResolutionError when a referenced entity does not exist yet.
	// The returned entity carries its BackendID.
	Create(ctx context.Context, t graph.EntityType, key graph.NaturalKey, attrs graph.Attributes) (graph.Entity, error)

	// Update applies the changed attributes to an existing entity and returns
	// the entity as stored.
	Update(ctx context.Context, entity graph.Entity, changed graph.Attributes) (graph.Entity, error)

	// Delete deletes an entity. It returns an error wrapping ErrNotFound when the
	// entity is already gone, and a *ConstraintError when dependents block it.
	Delete(ctx context.Context, entity graph.Entity) error
}

// Preparer is implemented by adapters that need setup (e.g. a schema
// migration) before their first load.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Flusher is implemented by adapters that buffer writes and persist them once
// the apply has finished.
type Flusher interface {
	Flush(ctx context.Context) error
}
