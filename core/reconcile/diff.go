package reconcile

import (
	"sort"

	"inventory-sync/core/graph"
)

// DiffOptions controls which records Compute emits.
type DiffOptions struct {
	// SkipUnmatchedDestination suppresses delete records for entities present
	// only in the destination.
	SkipUnmatchedDestination bool
}

// Compute compares source against destination and returns the records that
// converge the destination onto the source. It does not mutate either graph,
// and identical inputs always produce an identical diff.
//
// Per entity type, in dependency order:
//   - keys only in source produce a create carrying every source attribute;
//   - keys in both produce an update carrying only the differing attributes,
//     or nothing when all attributes are equal;
//   - keys only in destination produce a delete.
func Compute(source, destination *graph.Graph, opts DiffOptions) (*Diff, error) {
	if !source.Schema().Equal(destination.Schema()) {
		return nil, ErrSchemaMismatch
	}

	schema := source.Schema()
	diff := &Diff{Types: schema.Types()}

	for _, t := range diff.Types {
		ts, _ := schema.Lookup(t)
		keys := unionKeys(source.Keys(t), destination.Keys(t))

		for _, key := range keys {
			src, srcErr := source.Get(t, key)
			dst, dstErr := destination.Get(t, key)
			inSource, inDest := srcErr == nil, dstErr == nil

			switch {
			case inSource && !inDest:
				diff.Records = append(diff.Records, Record{
					Type:       t,
					Key:        key,
					Action:     ActionCreate,
					Attributes: src.Attributes.Clone(),
					State:      StatePending,
				})

			case inSource && inDest:
				changes := compareAttributes(ts, dst.Attributes, src.Attributes)
				if len(changes) == 0 {
					continue
				}
				diff.Records = append(diff.Records, Record{
					Type:    t,
					Key:     key,
					Action:  ActionUpdate,
					Changes: changes,
					State:   StatePending,
				})

			case inDest && !opts.SkipUnmatchedDestination:
				diff.Records = append(diff.Records, Record{
					Type:       t,
					Key:        key,
					Action:     ActionDelete,
					Attributes: dst.Attributes.Clone(),
					State:      StatePending,
				})
			}
		}
	}

	return diff, nil
}

// compareAttributes returns old/new pairs for every declared field whose value
// differs. Values are normalized by the schema, so == is exact and type-aware.
func compareAttributes(ts graph.TypeSchema, current, desired graph.Attributes) map[string]Change {
	var changes map[string]Change
	for _, f := range ts.Fields {
		o, n := current[f.Name], desired[f.Name]
		if o == n {
			continue
		}
		if changes == nil {
			changes = make(map[string]Change)
		}
		changes[f.Name] = Change{Old: o, New: n}
	}
	return changes
}

// unionKeys merges two sorted key lists into one sorted, de-duplicated list.
func unionKeys(a, b []graph.NaturalKey) []graph.NaturalKey {
	out := make([]graph.NaturalKey, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
