// Package utils provides common utility functions for the inventory-sync application.
// It includes strict value conversion used when backend payloads (JSON, YAML, SQL)
// are normalized into typed entity attributes.
package utils
