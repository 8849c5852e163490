// Package graph provides the typed, in-memory entity snapshot that every backend
// adapter loads and the reconcile engine compares.
//
// # Schema
//
// A Schema declares the entity types of an application in dependency order. A
// type may only reference types declared before it, so the declaration order is
// also the order in which entities can be created (and the reverse of the order
// in which they can be deleted).
//
//	schema, err := graph.NewSchema(
//	    graph.TypeSchema{Type: "manufacturer", Key: []string{"name"}, Fields: []graph.Field{
//	        {Name: "slug", Kind: graph.KindString},
//	    }},
//	    graph.TypeSchema{Type: "device_type", Key: []string{"model"}, Fields: []graph.Field{
//	        {Name: "manufacturer_name", Kind: graph.KindString, Ref: "manufacturer"},
//	    }},
//	)
//
// # Graph
//
// A Graph holds one Entity per (type, natural key). Entities are copied in and
// out, so callers never share attribute maps with the graph.
//
//	g := graph.New(schema)
//	err := g.Register(graph.Entity{Type: "manufacturer", Key: graph.NewKey("Acme"), Attributes: ...})
//	for e := range g.All("manufacturer") {
//	    fmt.Println(e.Key)
//	}
package graph
