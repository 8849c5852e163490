package dcim

import (
	"testing"

	"inventory-sync/core/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_DependencyOrder(t *testing.T) {
	assert.Equal(t, []graph.EntityType{Manufacturer, DeviceType, DeviceRole, Site, Device}, Schema.Types())
	assert.Equal(t, "model", KeyField(DeviceType))
	assert.Equal(t, "name", KeyField(Device))
	assert.Equal(t, "", KeyField("unknown"))
}

func TestLinkChildren(t *testing.T) {
	g := NewGraph()
	_, err := g.RegisterValues(Manufacturer, map[string]any{"name": "DigitalOcean", "slug": "digitalocean", "description": ""}, "1")
	require.NoError(t, err)
	_, err = g.RegisterValues(DeviceType, map[string]any{"model": "s-1vcpu-1gb", "manufacturer_name": "DigitalOcean", "slug": "s-1vcpu-1gb"}, "2")
	require.NoError(t, err)
	_, err = g.RegisterValues(DeviceRole, map[string]any{"name": "Droplet", "slug": "droplet"}, "3")
	require.NoError(t, err)
	_, err = g.RegisterValues(Site, map[string]any{"name": "New York 1", "slug": "nyc1"}, "4")
	require.NoError(t, err)
	_, err = g.RegisterValues(Device, map[string]any{
		"name": "web1", "device_type_name": "s-1vcpu-1gb", "device_role_name": "Droplet", "site_name": "missing", "status": "active",
	}, "5")
	require.NoError(t, err)

	LinkChildren(g)

	mfr, err := g.Get(Manufacturer, graph.NewKey("DigitalOcean"))
	require.NoError(t, err)
	assert.Equal(t, []graph.NaturalKey{graph.NewKey("s-1vcpu-1gb")}, mfr.Children[DeviceType])

	dt, err := g.Get(DeviceType, graph.NewKey("s-1vcpu-1gb"))
	require.NoError(t, err)
	assert.Equal(t, []graph.NaturalKey{graph.NewKey("web1")}, dt.Children[Device])

	site, err := g.Get(Site, graph.NewKey("New York 1"))
	require.NoError(t, err)
	assert.Empty(t, site.Children)
}
