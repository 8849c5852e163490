package reconcile

import (
	"fmt"
	"strings"

	"inventory-sync/core/graph"
)

// Action is the kind of mutation a record asks for.
type Action string

const (
	// ActionCreate creates an entity missing from the destination.
	ActionCreate Action = "create"
	// ActionUpdate updates attributes of an entity present in both graphs.
	ActionUpdate Action = "update"
	// ActionDelete deletes an entity present only in the destination.
	ActionDelete Action = "delete"
)

// State is the lifecycle state of a record. Records start pending and reach
// exactly one terminal state; a terminal record never returns to pending.
type State string

const (
	// StatePending marks a record not yet processed (or validated in a dry run).
	StatePending State = "pending"
	// StateApplied marks a record whose mutation succeeded or was already converged.
	StateApplied State = "applied"
	// StateFailed marks a record whose adapter call failed.
	StateFailed State = "failed"
	// StateSkippedDependency marks a record not attempted because an entity it
	// depends on is missing or still referenced.
	StateSkippedDependency State = "skipped_dependency"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateApplied || s == StateFailed || s == StateSkippedDependency
}

// Change is an old/new value pair for one attribute.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Record is one planned mutation. It carries value copies of the fields it
// needs and never references a live graph entity.
type Record struct {
	// Type is the entity type.
	Type graph.EntityType `json:"type"`

	// Key is the natural key of the entity.
	Key graph.NaturalKey `json:"key"`

	// Action is the mutation to perform.
	Action Action `json:"action"`

	// Attributes holds the full source attributes of a create.
	Attributes graph.Attributes `json:"attributes,omitempty"`

	// Changes holds the changed attributes of an update.
	Changes map[string]Change `json:"changes,omitempty"`

	// State is the lifecycle state.
	State State `json:"state"`

	// Error describes why the record failed or was skipped.
	Error string `json:"error,omitempty"`

	// Err is the typed error behind Error.
	Err error `json:"-"`
}

// NewValues returns the new values of an update's changed attributes.
func (r Record) NewValues() graph.Attributes {
	out := make(graph.Attributes, len(r.Changes))
	for name, c := range r.Changes {
		out[name] = c.New
	}
	return out
}

// String renders the record on one line, e.g. "update site nyc1 {slug: "nyc-1"->"nyc1"}".
func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", r.Action, r.Type, r.Key)
	if len(r.Changes) > 0 {
		names := sortedNames(r.Changes)
		parts := make([]string, len(names))
		for i, n := range names {
			parts[i] = fmt.Sprintf("%s: %#v->%#v", n, r.Changes[n].Old, r.Changes[n].New)
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(parts, ", "))
	}
	return b.String()
}

func (r Record) clone() Record {
	out := r
	out.Attributes = r.Attributes.Clone()
	if r.Changes != nil {
		out.Changes = make(map[string]Change, len(r.Changes))
		for k, v := range r.Changes {
			out.Changes[k] = v
		}
	}
	return out
}

// Diff is the ordered set of records converting a destination graph into its
// source. Records are grouped by entity type in dependency order and sorted by
// natural key within a type.
type Diff struct {
	// Types is the dependency order the diff was computed with.
	Types []graph.EntityType `json:"types"`

	// Records holds the planned mutations.
	Records []Record `json:"records"`
}

// Empty reports whether the diff holds no records.
func (d *Diff) Empty() bool {
	return d == nil || len(d.Records) == 0
}

// ByType returns copies of the records of type t, optionally filtered by action.
func (d *Diff) ByType(t graph.EntityType, actions ...Action) []Record {
	var out []Record
	for _, r := range d.Records {
		if r.Type != t {
			continue
		}
		if len(actions) > 0 && !containsAction(actions, r.Action) {
			continue
		}
		out = append(out, r.clone())
	}
	return out
}

// WithoutDeletes returns a copy of the diff with every delete record removed.
func (d *Diff) WithoutDeletes() *Diff {
	out := &Diff{Types: append([]graph.EntityType(nil), d.Types...)}
	for _, r := range d.Records {
		if r.Action != ActionDelete {
			out.Records = append(out.Records, r.clone())
		}
	}
	return out
}

// Counts returns the number of records per action.
func (d *Diff) Counts() map[Action]int {
	counts := map[Action]int{ActionCreate: 0, ActionUpdate: 0, ActionDelete: 0}
	for _, r := range d.Records {
		counts[r.Action]++
	}
	return counts
}

// Summary renders a one-line human-readable count of the diff.
func (d *Diff) Summary() string {
	c := d.Counts()
	return fmt.Sprintf("create: %d, update: %d, delete: %d", c[ActionCreate], c[ActionUpdate], c[ActionDelete])
}

// Summary provides aggregate counts of a reconcile report.
type Summary struct {
	// Creates counts create records.
	Creates int `json:"creates"`
	// Updates counts update records.
	Updates int `json:"updates"`
	// Deletes counts delete records.
	Deletes int `json:"deletes"`
	// Applied counts records in StateApplied.
	Applied int `json:"applied"`
	// Failed counts records in StateFailed.
	Failed int `json:"failed"`
	// Skipped counts records in StateSkippedDependency.
	Skipped int `json:"skipped"`
	// Pending counts records left pending (dry run only).
	Pending int `json:"pending"`
}

func summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		switch r.Action {
		case ActionCreate:
			s.Creates++
		case ActionUpdate:
			s.Updates++
		case ActionDelete:
			s.Deletes++
		}
		switch r.State {
		case StateApplied:
			s.Applied++
		case StateFailed:
			s.Failed++
		case StateSkippedDependency:
			s.Skipped++
		default:
			s.Pending++
		}
	}
	return s
}

func containsAction(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}
