// Package sqlstore keeps an inventory graph in a relational database through
// GORM. Every entity is one row of the inventory_entities table, keyed by
// (entity_type, natural_key) with its attributes stored as JSON. The store
// checks references on writes and refuses to delete referenced rows, so it
// behaves like a real backend when used as a sync destination.
package sqlstore
