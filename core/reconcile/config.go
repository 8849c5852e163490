package reconcile

import "time"

// Config holds the tuning knobs of a reconcile run.
type Config struct {
	// Workers bounds concurrent adapter calls within one entity type.
	Workers int `mapstructure:"workers" default:"4"`
	// TimeoutSeconds bounds each adapter call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// CacheTTLSeconds keeps loaded snapshots for this long. Zero disables caching.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" default:"0"`
}

// Timeout returns the per-call timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns the snapshot cache lifetime.
func (c Config) CacheTTL() time.Duration {
	if c.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
