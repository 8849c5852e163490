package netbox

import "encoding/json"

// ref is a nested object reference as NetBox renders it.
type ref struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Model string `json:"model,omitempty"`
	Slug  string `json:"slug,omitempty"`
}

// choice is a choice field. NetBox renders it as {"value": ..., "label": ...};
// a plain string is accepted too.
type choice struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

func (c *choice) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		c.Value = s
		return nil
	}
	type plain choice
	return json.Unmarshal(b, (*plain)(c))
}

type manufacturer struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

type deviceType struct {
	ID           int64  `json:"id"`
	Model        string `json:"model"`
	Slug         string `json:"slug"`
	Manufacturer ref    `json:"manufacturer"`
}

type deviceRole struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Color string `json:"color"`
}

type site struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type device struct {
	ID         int64   `json:"id"`
	Name       *string `json:"name"`
	DeviceType ref     `json:"device_type"`
	Role       ref     `json:"role"`
	Site       ref     `json:"site"`
	Status     choice  `json:"status"`
}

// Branch is a branch of the NetBox branching plugin.
type Branch struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	SchemaID string `json:"schema_id"`
	Status   choice `json:"status"`
}

// Ready reports whether the branch can be written to.
func (b *Branch) Ready() bool { return b.Status.Value == "ready" }

type listPage struct {
	Count   int               `json:"count"`
	Next    *string           `json:"next"`
	Results []json.RawMessage `json:"results"`
}

type created struct {
	ID int64 `json:"id"`
}

// Status is the subset of /api/status/ used for capability checks.
type Status struct {
	NetBoxVersion string            `json:"netbox-version"`
	Plugins       map[string]string `json:"plugins"`
}
