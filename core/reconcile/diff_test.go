package reconcile

import (
	"encoding/json"
	"testing"

	"inventory-sync/core/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_IdenticalGraphsProduceNoRecords(t *testing.T) {
	g := buildGraph(t,
		manufacturer("DigitalOcean", "digitalocean"),
		deviceType("s-1vcpu-1gb", "DigitalOcean"),
		deviceRole("Droplet"),
		site("nyc1", "nyc1"),
		device("web1", "s-1vcpu-1gb", "Droplet", "nyc1"),
	)

	diff, err := Compute(g, g.Clone(), DiffOptions{})
	require.NoError(t, err)
	assert.True(t, diff.Empty())
}

func TestCompute_SingleAttributeChange(t *testing.T) {
	src := buildGraph(t, manufacturer("Acme", "acme"), site("nyc1", "nyc1"))
	dst := buildGraph(t, manufacturer("Acme", "acme"), site("nyc1", "nyc-1"))

	diff, err := Compute(src, dst, DiffOptions{})
	require.NoError(t, err)
	require.Len(t, diff.Records, 1)

	r := diff.Records[0]
	assert.Equal(t, ActionUpdate, r.Action)
	assert.Equal(t, tSite, r.Type)
	assert.Equal(t, graph.NewKey("nyc1"), r.Key)
	assert.Equal(t, map[string]Change{"slug": {Old: "nyc-1", New: "nyc1"}}, r.Changes)
	assert.Empty(t, r.Attributes)
	assert.Equal(t, StatePending, r.State)
	assert.Equal(t, `update site nyc1 {slug: "nyc-1"->"nyc1"}`, r.String())
}

func TestCompute_CreateCarriesFullAttributes(t *testing.T) {
	src := buildGraph(t, manufacturer("Acme", "acme"))
	dst := graph.New(testSchema)

	diff, err := Compute(src, dst, DiffOptions{})
	require.NoError(t, err)
	require.Len(t, diff.Records, 1)
	assert.Equal(t, ActionCreate, diff.Records[0].Action)
	assert.Equal(t, graph.Attributes{"description": "", "slug": "acme"}, diff.Records[0].Attributes)

	after, err := Compute(src, src.Clone(), DiffOptions{})
	require.NoError(t, err)
	assert.True(t, after.Empty())
}

func TestCompute_UnmatchedDestination(t *testing.T) {
	src := buildGraph(t,
		manufacturer("Acme", "acme"), deviceType("m1", "Acme"), deviceRole("Droplet"), site("nyc1", "nyc1"),
	)
	dst := buildGraph(t,
		manufacturer("Acme", "acme"), deviceType("m1", "Acme"), deviceRole("Droplet"), site("nyc1", "nyc1"),
		device("web1", "m1", "Droplet", "nyc1"),
	)

	diff, err := Compute(src, dst, DiffOptions{SkipUnmatchedDestination: false})
	require.NoError(t, err)
	require.Len(t, diff.Records, 1)
	assert.Equal(t, ActionDelete, diff.Records[0].Action)
	assert.Equal(t, tDevice, diff.Records[0].Type)
	assert.Equal(t, graph.NewKey("web1"), diff.Records[0].Key)

	diff, err = Compute(src, dst, DiffOptions{SkipUnmatchedDestination: true})
	require.NoError(t, err)
	assert.True(t, diff.Empty())
}

func TestCompute_DependencyOrderIgnoresLoadOrder(t *testing.T) {
	// Register the child type first; the diff must still put the parent first.
	src := graph.New(testSchema)
	_, err := src.RegisterValues(tDeviceType, map[string]any{"model": "s-1vcpu-1gb", "manufacturer_name": "DigitalOcean", "slug": "s-1vcpu-1gb"}, "")
	require.NoError(t, err)
	_, err = src.RegisterValues(tManufacturer, map[string]any{"name": "DigitalOcean", "slug": "digitalocean", "description": ""}, "")
	require.NoError(t, err)

	diff, err := Compute(src, graph.New(testSchema), DiffOptions{})
	require.NoError(t, err)
	require.Len(t, diff.Records, 2)
	assert.Equal(t, tManufacturer, diff.Records[0].Type)
	assert.Equal(t, tDeviceType, diff.Records[1].Type)
}

func TestCompute_Deterministic(t *testing.T) {
	src := buildGraph(t,
		manufacturer("Zeta", "zeta"), manufacturer("Acme", "acme"), manufacturer("Mid", "mid"),
		site("b", "b"), site("a", "a"),
	)
	dst := buildGraph(t, manufacturer("Mid", "middle"), site("c", "c"))

	first, err := Compute(src, dst, DiffOptions{})
	require.NoError(t, err)
	second, err := Compute(src.Clone(), dst.Clone(), DiffOptions{})
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	var keys []string
	for _, r := range first.Records {
		keys = append(keys, string(r.Type)+":"+r.Key.String())
	}
	assert.Equal(t, []string{"manufacturer:Acme", "manufacturer:Mid", "manufacturer:Zeta", "site:a", "site:b", "site:c"}, keys)
}

func TestCompute_DoesNotMutateInputs(t *testing.T) {
	src := buildGraph(t, site("nyc1", "nyc1"))
	dst := buildGraph(t, site("nyc1", "nyc-1"))

	diff, err := Compute(src, dst, DiffOptions{})
	require.NoError(t, err)
	diff.Records[0].Changes["slug"] = Change{Old: "x", New: "y"}

	e, err := dst.Get(tSite, graph.NewKey("nyc1"))
	require.NoError(t, err)
	assert.Equal(t, "nyc-1", e.Attributes["slug"])
}

func TestCompute_SchemaMismatch(t *testing.T) {
	other := graph.MustSchema(graph.TypeSchema{Type: tSite, Key: []string{"name"}, Fields: []graph.Field{{Name: "slug", Kind: graph.KindString}}})
	_, err := Compute(graph.New(testSchema), graph.New(other), DiffOptions{})
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestDiff_SummaryAndFilters(t *testing.T) {
	src := buildGraph(t, manufacturer("Acme", "acme"), site("nyc1", "nyc1"))
	dst := buildGraph(t, site("nyc1", "nyc-1"), site("ams3", "ams3"))

	diff, err := Compute(src, dst, DiffOptions{})
	require.NoError(t, err)
	assert.Equal(t, "create: 1, update: 1, delete: 1", diff.Summary())
	assert.Len(t, diff.ByType(tSite), 2)
	assert.Len(t, diff.ByType(tSite, ActionDelete), 1)
	assert.Equal(t, "create: 1, update: 1, delete: 0", diff.WithoutDeletes().Summary())
}
