package dcim

import "inventory-sync/core/graph"

// Entity types, in dependency order.
const (
	Manufacturer graph.EntityType = "manufacturer"
	DeviceType   graph.EntityType = "device_type"
	DeviceRole   graph.EntityType = "device_role"
	Site         graph.EntityType = "site"
	Device       graph.EntityType = "device"
)

// Field names.
const (
	FieldName             = "name"
	FieldModel            = "model"
	FieldSlug             = "slug"
	FieldDescription      = "description"
	FieldManufacturerName = "manufacturer_name"
	FieldDeviceTypeName   = "device_type_name"
	FieldDeviceRoleName   = "device_role_name"
	FieldSiteName         = "site_name"
	FieldStatus           = "status"
)

// Device statuses.
const (
	StatusPlanned         = "planned"
	StatusActive          = "active"
	StatusOffline         = "offline"
	StatusDecommissioning = "decommissioning"
)

// Schema is the inventory schema shared by every adapter.
var Schema = graph.MustSchema(
	graph.TypeSchema{
		Type: Manufacturer,
		Key:  []string{FieldName},
		Fields: []graph.Field{
			{Name: FieldDescription, Kind: graph.KindString},
			{Name: FieldSlug, Kind: graph.KindString},
		},
	},
	graph.TypeSchema{
		Type: DeviceType,
		Key:  []string{FieldModel},
		Fields: []graph.Field{
			{Name: FieldManufacturerName, Kind: graph.KindString, Ref: Manufacturer},
			{Name: FieldSlug, Kind: graph.KindString},
		},
	},
	graph.TypeSchema{
		Type: DeviceRole,
		Key:  []string{FieldName},
		Fields: []graph.Field{
			{Name: FieldSlug, Kind: graph.KindString},
		},
	},
	graph.TypeSchema{
		Type: Site,
		Key:  []string{FieldName},
		Fields: []graph.Field{
			{Name: FieldSlug, Kind: graph.KindString},
		},
	},
	graph.TypeSchema{
		Type: Device,
		Key:  []string{FieldName},
		Fields: []graph.Field{
			{Name: FieldDeviceTypeName, Kind: graph.KindString, Ref: DeviceType},
			{Name: FieldDeviceRoleName, Kind: graph.KindString, Ref: DeviceRole},
			{Name: FieldSiteName, Kind: graph.KindString, Ref: Site},
			{Name: FieldStatus, Kind: graph.KindString},
		},
	},
)

// NewGraph returns an empty graph over Schema.
func NewGraph() *graph.Graph {
	return graph.New(Schema)
}

// KeyField returns the single natural key field of t.
func KeyField(t graph.EntityType) string {
	ts, ok := Schema.Lookup(t)
	if !ok || len(ts.Key) == 0 {
		return ""
	}
	return ts.Key[0]
}

// Owners lists the ownership edges recorded as child references after a
// load: for each child type, the reference fields naming its owners.
var Owners = map[graph.EntityType][]string{
	DeviceType: {FieldManufacturerName},
	Device:     {FieldDeviceTypeName, FieldDeviceRoleName, FieldSiteName},
}

// LinkChildren records ownership edges for every entity in g whose owner is
// present. Missing owners are skipped.
func LinkChildren(g *graph.Graph) {
	for _, t := range Schema.Types() {
		fields, ok := Owners[t]
		if !ok {
			continue
		}
		ts, _ := Schema.Lookup(t)
		for e := range g.All(t) {
			for _, name := range fields {
				f, _ := ts.Field(name)
				_ = g.AddChild(f.Ref, graph.NewKey(e.Attributes.String(name)), t, e.Key)
			}
		}
	}
}
