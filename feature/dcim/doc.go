// Package dcim declares the inventory entity types synchronized between a
// cloud provider and a DCIM system.
//
// The declaration order is the dependency order:
//
//	manufacturer -> device_type -> device_role -> site -> device
//
// A device references its device type, role and site by natural key; a device
// type references its manufacturer.
package dcim
