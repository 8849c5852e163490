// Package config loads the application configuration.
//
// Values come from a .env file, when present, and from the environment. Each
// key maps to an environment variable by upper-casing it and replacing dots
// with underscores, so netbox.api_token is read from NETBOX_API_TOKEN and
// digital_ocean.api_token from DIGITAL_OCEAN_API_TOKEN.
//
// # Configuration Structure
//
// The Config struct is divided into subsections:
//   - Server: HTTP listen address, API key and timeouts
//   - Database and SQLStore: the SQL inventory backend
//   - Storage and Snapshot: YAML snapshots on disk or in an S3 bucket
//   - NetBox and DigitalOcean: API endpoints and tokens
//   - Sync and Backends: reconcile tuning and the default adapters
//   - Log: Logging level and format
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.NetBox.URL)
package config
