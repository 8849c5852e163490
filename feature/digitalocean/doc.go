// Package digitalocean implements a read-only source adapter over the
// DigitalOcean API.
//
// Droplets are the only resource read. The inventory is derived from them:
//   - a single manufacturer "DigitalOcean" and a single role "Droplet";
//   - one device type per droplet size slug;
//   - one site per region, named after the region with its slug;
//   - one device per droplet, with the droplet status mapped onto a device
//     status (new -> planned, active -> active, off -> offline,
//     archive -> decommissioning).
//
// A failure on any page of the droplet listing fails the whole load.
package digitalocean
