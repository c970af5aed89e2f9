package config

import "time"

// LocatorConfig controls selector resolution and the resolved-element cache.
type LocatorConfig struct {
	// CacheSize is the maximum number of resolved elements held in the LRU
	// cache, keyed by canonicalized selector chain.
	CacheSize int `yaml:"cache_size"`

	// CacheTTL is how long a cached resolution is trusted before it is
	// treated as a miss and re-resolved. Zero disables expiry.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// MaxAttempts is the default number of resolution attempts for a
	// locator before giving up with an element-not-found error.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryDelay is the delay between resolution attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// DefaultTimeout bounds how long find_element/wait_for_element will
	// retry before failing, when the caller does not specify one.
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

func applyLocatorDefaults(cfg *LocatorConfig) {
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 10 * time.Second
	}
}

func validateLocatorConfig(cfg LocatorConfig) []string {
	var issues []string
	if cfg.CacheSize < 0 {
		issues = append(issues, "locator.cache_size must be >= 0")
	}
	if cfg.MaxAttempts < 1 {
		issues = append(issues, "locator.max_attempts must be >= 1")
	}
	return issues
}
