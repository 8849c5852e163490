package reconcile

import (
	"errors"
	"fmt"

	"inventory-sync/core/graph"
)

var (
	// ErrNotFound is returned (wrapped) by adapters when the entity to update or
	// delete no longer exists at the backend. A delete that fails with it is
	// treated as already converged.
	ErrNotFound = errors.New("entity not found at backend")

	// ErrReadOnly is returned by adapters that can only be used as a source.
	ErrReadOnly = errors.New("adapter is read-only")

	// ErrSchemaMismatch is returned when two graphs declare different schemas.
	ErrSchemaMismatch = errors.New("graphs were built from different schemas")
)

// LoadError reports a failed snapshot load. It aborts the run before any diff.
type LoadError struct {
	// Side is "source" or "destination".
	Side string
	// Adapter is the name of the failing adapter.
	Adapter string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s (%s): %v", e.Side, e.Adapter, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ReferenceResolutionError reports a reference attribute whose target entity is
// not materialized at the destination.
type ReferenceResolutionError struct {
	Type     graph.EntityType
	Key      graph.NaturalKey
	Field    string
	RefType  graph.EntityType
	RefValue string
}

func (e *ReferenceResolutionError) Error() string {
	return fmt.Sprintf("%s %s: %s references %s %q which does not exist at the destination",
		e.Type, e.Key, e.Field, e.RefType, e.RefValue)
}

// BackendOperationError reports a failed create, update or delete call. It
// carries the attempted payload so the mutation can be retried by hand.
type BackendOperationError struct {
	Action  Action
	Type    graph.EntityType
	Key     graph.NaturalKey
	Payload graph.Attributes
	Err     error
}

func (e *BackendOperationError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Action, e.Type, e.Key, e.Err)
}

func (e *BackendOperationError) Unwrap() error { return e.Err }

// ConstraintError reports a delete blocked by entities still referencing the
// target. It usually points at an ordering bug rather than a transient fault.
type ConstraintError struct {
	Type       graph.EntityType
	Key        graph.NaturalKey
	Dependents []string
	Err        error
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("delete %s %s blocked by dependents", e.Type, e.Key)
	if len(e.Dependents) > 0 {
		msg += fmt.Sprintf(" %v", e.Dependents)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the whole run: load failures and
// duplicate natural keys are fatal, everything else is local to one record.
func IsFatal(err error) bool {
	var le *LoadError
	var dk *graph.DuplicateKeyError
	return errors.As(err, &le) || errors.As(err, &dk)
}
