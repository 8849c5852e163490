package graph

import (
	"sort"
	"strings"
)

// keySeparator joins natural key parts. It sorts below every printable
// character, so ordering encoded keys orders them by their parts.
const keySeparator = "\x1f"

// NaturalKey identifies an entity within its type independently of any
// backend-assigned id. Composite keys are encoded as a single comparable value.
type NaturalKey string

// NewKey builds a natural key from its ordered parts.
func NewKey(parts ...string) NaturalKey {
	return NaturalKey(strings.Join(parts, keySeparator))
}

// Parts returns the ordered parts of the key.
func (k NaturalKey) Parts() []string {
	return strings.Split(string(k), keySeparator)
}

// String renders the key for humans, joining composite parts with "/".
func (k NaturalKey) String() string {
	return strings.ReplaceAll(string(k), keySeparator, "/")
}

// MarshalText renders the key as text for JSON and YAML encoders.
func (k NaturalKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Attributes maps attribute names to normalized values.
type Attributes map[string]any

// Clone returns a copy of the attribute map.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// String returns the string attribute name, or "" if absent.
func (a Attributes) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Entity is one typed record of a Graph.
type Entity struct {
	// Type is the entity type.
	Type EntityType `json:"type"`
	// Key is the natural key of the entity.
	Key NaturalKey `json:"key"`
	// Attributes holds the normalized attribute values.
	Attributes Attributes `json:"attributes"`
	// BackendID is the opaque id assigned by a destination backend.
	// It is never used to match entities across graphs.
	BackendID string `json:"backend_id,omitempty"`
	// Children records ownership edges for traversal and reporting only.
	Children map[EntityType][]NaturalKey `json:"children,omitempty"`
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	out := e
	out.Attributes = e.Attributes.Clone()
	if e.Children != nil {
		out.Children = make(map[EntityType][]NaturalKey, len(e.Children))
		for t, keys := range e.Children {
			out.Children[t] = append([]NaturalKey(nil), keys...)
		}
	}
	return out
}

// Values returns the natural key fields and attributes of the entity as one map.
func (e Entity) Values(ts TypeSchema) map[string]any {
	out := make(map[string]any, len(ts.Key)+len(e.Attributes))
	for i, part := range e.Key.Parts() {
		if i < len(ts.Key) {
			out[ts.Key[i]] = part
		}
	}
	for k, v := range e.Attributes {
		out[k] = v
	}
	return out
}

func (e *Entity) addChild(t EntityType, key NaturalKey) {
	if e.Children == nil {
		e.Children = make(map[EntityType][]NaturalKey)
	}
	keys := e.Children[t]
	i := sort.Search(len(keys), func(i int) bool { return keys[i] >= key })
	if i < len(keys) && keys[i] == key {
		return
	}
	keys = append(keys, "")
	copy(keys[i+1:], keys[i:])
	keys[i] = key
	e.Children[t] = keys
}
