// Package netbox implements a destination adapter over the NetBox DCIM REST
// API, including branch selection through the NetBox branching plugin.
//
// # Identity
//
// NetBox objects are matched by natural key: manufacturers, device roles,
// sites and devices by name, device types by model. Reference attributes
// (e.g. a device's site_name) are resolved to NetBox ids from an index the
// adapter builds on load and extends with every object it creates, so objects
// created earlier in a run are visible to later creates.
//
// # Errors
//
//   - 404 responses unwrap to reconcile.ErrNotFound.
//   - 409 on delete (object protected by dependents) becomes *reconcile.ConstraintError.
//   - Unresolvable references become *reconcile.ReferenceResolutionError.
//
// # Branches
//
// EnsureBranch selects the branch every following request is sent to, via the
// X-NetBox-Branch header carrying the branch schema id. "main" selects the
// main schema. Branching requires NetBox 4.1 or later.
//
//	client, _ := netbox.NewClient(cfg.NetBox)
//	if _, err := client.EnsureBranch(ctx, "sync-2024-06", netbox.BranchOptions{Force: true}, logger); err != nil {
//	    return err
//	}
//	adapter := netbox.NewAdapter(client, logger)
package netbox
