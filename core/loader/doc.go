// Package loader registers HTTP features and mounts the enabled ones.
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// The Manager keeps registration order. LoadAll skips disabled features and
// stops at the first one that fails to load.
package loader
