package snapshot

import (
	"fmt"
	"io"

	"inventory-sync/core/graph"

	"gopkg.in/yaml.v3"
)

// Encode writes g as a YAML mapping from entity type to a list of entities.
// Types appear in dependency order, entities in natural key order, and each
// entity lists its key fields before its attributes in declaration order.
func Encode(w io.Writer, g *graph.Graph) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	schema := g.Schema()

	for _, t := range schema.Types() {
		ts, _ := schema.Lookup(t)
		list := &yaml.Node{Kind: yaml.SequenceNode}
		for e := range g.All(t) {
			item := &yaml.Node{Kind: yaml.MappingNode}
			for i, part := range e.Key.Parts() {
				if err := appendPair(item, ts.Key[i], part); err != nil {
					return err
				}
			}
			for _, f := range ts.Fields {
				if err := appendPair(item, f.Name, e.Attributes[f.Name]); err != nil {
					return err
				}
			}
			list.Content = append(list.Content, item)
		}
		if len(list.Content) == 0 {
			continue
		}
		root.Content = append(root.Content, scalar(string(t)), list)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if len(root.Content) == 0 {
		root = &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
	}
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// Decode reads a snapshot written by Encode into a graph over schema.
// Unknown types or fields and duplicate keys are errors.
func Decode(r io.Reader, schema *graph.Schema) (*graph.Graph, error) {
	g := graph.New(schema)

	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return g, nil
		}
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(doc.Content) == 0 {
		return g, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("decode snapshot: line %d: expected a mapping of entity types", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		name, list := root.Content[i], root.Content[i+1]
		t := graph.EntityType(name.Value)
		if _, ok := schema.Lookup(t); !ok {
			return nil, fmt.Errorf("line %d: %w", name.Line, &graph.SchemaError{Type: t, Reason: "entity type is not declared"})
		}
		var items []map[string]any
		if err := list.Decode(&items); err != nil {
			return nil, fmt.Errorf("decode %s: line %d: %w", t, list.Line, err)
		}
		for j, values := range items {
			if _, err := g.RegisterValues(t, values, ""); err != nil {
				return nil, fmt.Errorf("%s #%d: %w", t, j+1, err)
			}
		}
	}
	return g, nil
}

func appendPair(m *yaml.Node, key string, value any) error {
	var v yaml.Node
	if err := v.Encode(value); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.Content = append(m.Content, scalar(key), &v)
	return nil
}

func scalar(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
