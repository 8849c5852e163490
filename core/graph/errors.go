package graph

import "fmt"

// DuplicateKeyError reports two entities sharing a natural key within one graph.
// It signals an upstream data-integrity bug and is fatal for the load.
type DuplicateKeyError struct {
	Type EntityType
	Key  NaturalKey
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate natural key %s/%s", e.Type, e.Key)
}

// NotFoundError reports a lookup of an entity absent from the graph.
type NotFoundError struct {
	Type EntityType
	Key  NaturalKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entity %s/%s not found", e.Type, e.Key)
}

// SchemaError reports a value map that does not match its type declaration.
type SchemaError struct {
	Type   EntityType
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema violation for %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("schema violation for %s.%s: %s", e.Type, e.Field, e.Reason)
}
