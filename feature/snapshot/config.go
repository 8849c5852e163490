package snapshot

// Store backends.
const (
	BackendFile   = "file"
	BackendObject = "object"
)

// Config holds configuration for inventory snapshots.
type Config struct {
	// Backend selects where snapshots live (file, object).
	Backend string `mapstructure:"backend" default:"file"`
	// Path is the snapshot file for the file backend.
	Path string `mapstructure:"path" default:"inventory.yaml"`
	// Object is the object name for the object backend. The bucket comes from
	// the storage configuration.
	Object string `mapstructure:"object" default:"snapshots/inventory.yaml"`
}
