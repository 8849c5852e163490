package digitalocean

// Droplet is the subset of a droplet the inventory needs.
type Droplet struct {
	ID       int64
	Name     string
	Status   string
	SizeSlug string
	Region   Region
}

// Region is a droplet's data center region.
type Region struct {
	Name string
	Slug string
}
