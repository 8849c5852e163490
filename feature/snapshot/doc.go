// Package snapshot stores an inventory as a YAML document, in a local file or
// in an object storage bucket.
//
// The document maps each entity type to the list of its entities:
//
//	manufacturer:
//	  - name: DigitalOcean
//	    description: Cloud provider
//	    slug: digitalocean
//	site:
//	  - name: New York 1
//	    slug: nyc1
//
// The Adapter serves a snapshot as a sync source or destination. Writes are
// applied in memory and persisted by Flush once the run finishes.
package snapshot
