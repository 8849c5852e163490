package sqlstore

// Config holds configuration for the SQL inventory store.
type Config struct {
	// AutoMigrate creates or updates the entity table during Prepare. When
	// disabled Prepare only verifies the table's columns.
	AutoMigrate bool `mapstructure:"auto_migrate" default:"true"`
}
