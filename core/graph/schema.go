package graph

import (
	"fmt"
	"sort"
	"strings"

	"inventory-sync/core/utils"
)

// EntityType names a kind of entity (e.g. "manufacturer", "device").
type EntityType string

// FieldKind is the semantic type of a field. Values are normalized to the Go
// type of their kind when they enter a Graph, so equality is exact and type-aware.
type FieldKind int

const (
	// KindString fields hold string values (compared case-sensitively).
	KindString FieldKind = iota
	// KindInt fields hold int64 values.
	KindInt
	// KindBool fields hold bool values.
	KindBool
)

// String returns the name of the kind.
func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field describes one attribute of an entity type.
type Field struct {
	// Name is the attribute name.
	Name string
	// Kind is the semantic type of the attribute.
	Kind FieldKind
	// Ref is set when the attribute holds the natural key of another entity type.
	Ref EntityType
}

// IsRef reports whether the field references another entity type.
func (f Field) IsRef() bool {
	return f.Ref != ""
}

// TypeSchema declares one entity type: its natural key fields and its attributes.
type TypeSchema struct {
	// Type is the entity type name.
	Type EntityType
	// Key lists the fields forming the natural key, in order.
	Key []string
	// Fields lists the attribute fields compared by the diff.
	Fields []Field
}

// Field returns the attribute field with the given name.
func (ts TypeSchema) Field(name string) (Field, bool) {
	for _, f := range ts.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Refs returns the attribute fields referencing other entity types.
func (ts TypeSchema) Refs() []Field {
	var refs []Field
	for _, f := range ts.Fields {
		if f.IsRef() {
			refs = append(refs, f)
		}
	}
	return refs
}

// Schema is the ordered declaration of every entity type of an application.
// The declaration order is the dependency order.
type Schema struct {
	types []TypeSchema
	index map[EntityType]int
}

// NewSchema validates and builds a Schema from types given in dependency order.
func NewSchema(types ...TypeSchema) (*Schema, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("schema declares no entity types")
	}

	s := &Schema{
		types: make([]TypeSchema, 0, len(types)),
		index: make(map[EntityType]int, len(types)),
	}

	for i, ts := range types {
		if ts.Type == "" {
			return nil, fmt.Errorf("entity type at position %d has no name", i)
		}
		if _, dup := s.index[ts.Type]; dup {
			return nil, fmt.Errorf("entity type %s declared twice", ts.Type)
		}
		if len(ts.Key) == 0 {
			return nil, fmt.Errorf("entity type %s has no natural key fields", ts.Type)
		}

		seen := make(map[string]struct{}, len(ts.Key)+len(ts.Fields))
		for _, k := range ts.Key {
			if _, dup := seen[k]; dup {
				return nil, fmt.Errorf("entity type %s: field %s declared twice", ts.Type, k)
			}
			seen[k] = struct{}{}
		}

		for _, f := range ts.Fields {
			if _, dup := seen[f.Name]; dup {
				return nil, fmt.Errorf("entity type %s: field %s declared twice", ts.Type, f.Name)
			}
			seen[f.Name] = struct{}{}

			if !f.IsRef() {
				continue
			}
			pos, ok := s.index[f.Ref]
			if !ok {
				return nil, fmt.Errorf("entity type %s: field %s references %s, which is not declared before it", ts.Type, f.Name, f.Ref)
			}
			if len(s.types[pos].Key) != 1 {
				return nil, fmt.Errorf("entity type %s: field %s references %s, which has a composite key", ts.Type, f.Name, f.Ref)
			}
			if f.Kind != KindString {
				return nil, fmt.Errorf("entity type %s: reference field %s must be a string", ts.Type, f.Name)
			}
		}

		cp := TypeSchema{
			Type:   ts.Type,
			Key:    append([]string(nil), ts.Key...),
			Fields: append([]Field(nil), ts.Fields...),
		}
		s.index[ts.Type] = len(s.types)
		s.types = append(s.types, cp)
	}

	return s, nil
}

// MustSchema is like NewSchema but panics on an invalid declaration.
// It is meant for package-level declarations.
func MustSchema(types ...TypeSchema) *Schema {
	s, err := NewSchema(types...)
	if err != nil {
		panic(err)
	}
	return s
}

// Types returns the entity types in dependency order.
func (s *Schema) Types() []EntityType {
	out := make([]EntityType, len(s.types))
	for i, ts := range s.types {
		out[i] = ts.Type
	}
	return out
}

// Lookup returns the declaration of an entity type.
func (s *Schema) Lookup(t EntityType) (TypeSchema, bool) {
	pos, ok := s.index[t]
	if !ok {
		return TypeSchema{}, false
	}
	return s.types[pos], true
}

// Position returns the dependency position of t, or -1 if t is not declared.
func (s *Schema) Position(t EntityType) int {
	pos, ok := s.index[t]
	if !ok {
		return -1
	}
	return pos
}

// Dependents returns the fields of later-declared types that reference t,
// keyed by the referencing type.
func (s *Schema) Dependents(t EntityType) map[EntityType][]Field {
	out := make(map[EntityType][]Field)
	for _, ts := range s.types {
		for _, f := range ts.Refs() {
			if f.Ref == t {
				out[ts.Type] = append(out[ts.Type], f)
			}
		}
	}
	return out
}

// Equal reports whether two schemas declare the same types in the same order.
func (s *Schema) Equal(other *Schema) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil || len(s.types) != len(other.types) {
		return false
	}
	for i := range s.types {
		a, b := s.types[i], other.types[i]
		if a.Type != b.Type || strings.Join(a.Key, ",") != strings.Join(b.Key, ",") || len(a.Fields) != len(b.Fields) {
			return false
		}
		for j := range a.Fields {
			if a.Fields[j] != b.Fields[j] {
				return false
			}
		}
	}
	return true
}

// Normalize validates a raw field map for type t and splits it into its natural
// key and its normalized attributes. Every declared field must be present and
// no undeclared field may appear.
func (s *Schema) Normalize(t EntityType, values map[string]any) (NaturalKey, Attributes, error) {
	ts, ok := s.Lookup(t)
	if !ok {
		return "", nil, &SchemaError{Type: t, Reason: "entity type is not declared"}
	}

	keyParts := make([]string, len(ts.Key))
	for i, name := range ts.Key {
		raw, present := values[name]
		if !present {
			return "", nil, &SchemaError{Type: t, Field: name, Reason: "missing natural key field"}
		}
		v, err := utils.AsString(raw)
		if err != nil {
			return "", nil, &SchemaError{Type: t, Field: name, Reason: err.Error()}
		}
		if strings.Contains(v, keySeparator) {
			return "", nil, &SchemaError{Type: t, Field: name, Reason: "natural key value contains the unit separator (0x1f)"}
		}
		keyParts[i] = v
	}

	attrs, err := s.NormalizeAttributes(t, values, true)
	if err != nil {
		return "", nil, err
	}
	return NewKey(keyParts...), attrs, nil
}

// NormalizeAttributes validates attribute values for type t. Natural key fields
// in values are ignored. When complete is true every declared attribute must be
// present; otherwise values may hold any subset (as for an update payload).
func (s *Schema) NormalizeAttributes(t EntityType, values map[string]any, complete bool) (Attributes, error) {
	ts, ok := s.Lookup(t)
	if !ok {
		return nil, &SchemaError{Type: t, Reason: "entity type is not declared"}
	}

	keyFields := make(map[string]struct{}, len(ts.Key))
	for _, k := range ts.Key {
		keyFields[k] = struct{}{}
	}

	var unknown []string
	for name := range values {
		if _, isKey := keyFields[name]; isKey {
			continue
		}
		if _, declared := ts.Field(name); !declared {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &SchemaError{Type: t, Field: strings.Join(unknown, ","), Reason: "undeclared field"}
	}

	attrs := make(Attributes, len(ts.Fields))
	for _, f := range ts.Fields {
		raw, present := values[f.Name]
		if !present {
			if complete {
				return nil, &SchemaError{Type: t, Field: f.Name, Reason: "missing field"}
			}
			continue
		}
		v, err := coerce(f.Kind, raw)
		if err != nil {
			return nil, &SchemaError{Type: t, Field: f.Name, Reason: err.Error()}
		}
		attrs[f.Name] = v
	}
	return attrs, nil
}

func coerce(kind FieldKind, raw any) (any, error) {
	switch kind {
	case KindString:
		return utils.AsString(raw)
	case KindInt:
		return utils.AsInt64(raw)
	case KindBool:
		return utils.AsBool(raw)
	default:
		return nil, fmt.Errorf("unsupported field kind %s", kind)
	}
}
