package digitalocean

// Config holds configuration for the DigitalOcean API.
type Config struct {
	// APIToken is the personal access token (DIGITAL_OCEAN_API_TOKEN).
	APIToken string `mapstructure:"api_token" default:""`
	// BaseURL is the API root; request paths start with "v2/".
	BaseURL string `mapstructure:"base_url" default:"https://api.digitalocean.com/"`
	// PerPage is the page size used when listing droplets.
	PerPage int `mapstructure:"per_page" default:"200"`
	// TimeoutSeconds bounds connection setup and response headers.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
