package netbox

// Config holds configuration for the NetBox API.
type Config struct {
	// URL is the NetBox base URL (NETBOX_URL).
	URL string `mapstructure:"url" default:"http://localhost:8000"`
	// APIToken is the API token (NETBOX_API_TOKEN).
	APIToken string `mapstructure:"api_token" default:""`
	// PageSize is the limit used when listing objects.
	PageSize int `mapstructure:"page_size" default:"250"`
	// TimeoutSeconds bounds connection setup and response headers.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// Branch is the branch to operate on; "main" selects the main schema.
	Branch string `mapstructure:"branch" default:"main"`
	// BranchTimeoutSeconds bounds the wait for a branch to become ready.
	BranchTimeoutSeconds int `mapstructure:"branch_timeout_seconds" default:"10"`
}
