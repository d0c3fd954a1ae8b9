package config

import "time"

// CacheConfig controls the tiered suggestion cache.
type CacheConfig struct {
	// Disabled skips the cache entirely; every run asks the model.
	Disabled bool `yaml:"disabled"`

	// TTL is how long a cached suggestion list stays valid. Go duration
	// string, e.g. "168h" for a week.
	TTL string `yaml:"ttl"`
}

// DefaultCacheConfig returns the cache defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: "168h"}
}

// TTLDuration parses the TTL, falling back to one week.
func (c CacheConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}
