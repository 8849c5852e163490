package config

import (
	"reflect"
	"strings"

	"inventory-sync/core/database"
	"inventory-sync/core/logger"
	"inventory-sync/core/reconcile"
	"inventory-sync/core/server"
	"inventory-sync/core/storage"
	"inventory-sync/feature/digitalocean"
	"inventory-sync/feature/netbox"
	"inventory-sync/feature/snapshot"
	"inventory-sync/feature/sqlstore"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the object storage (e.g., S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// NetBox holds configuration for the NetBox API.
	NetBox netbox.Config `mapstructure:"netbox"`
	// DigitalOcean holds configuration for the DigitalOcean API.
	DigitalOcean digitalocean.Config `mapstructure:"digital_ocean"`
	// Snapshot holds configuration for YAML snapshots.
	Snapshot snapshot.Config `mapstructure:"snapshot"`
	// SQLStore holds configuration for the SQL inventory store.
	SQLStore sqlstore.Config `mapstructure:"sqlstore"`
	// Sync holds the reconcile tuning knobs.
	Sync reconcile.Config `mapstructure:"sync"`
	// Backends selects the default source and destination.
	Backends Backends `mapstructure:"backends"`
}

// Backends names the adapters a run uses by default.
type Backends struct {
	// Source is the source of truth (digitalocean, snapshot, sql).
	Source string `mapstructure:"source" default:"digitalocean"`
	// Destination is the backend converged onto the source (netbox, snapshot, sql).
	Destination string `mapstructure:"destination" default:"netbox"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. NETBOX_API_TOKEN -> netbox.api_token)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
