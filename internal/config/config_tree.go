package config

// TreeConfig controls UI tree extraction and its batched property cache.
type TreeConfig struct {
	// MaxDepth bounds how many levels get_window_tree descends. Zero means
	// unlimited.
	MaxDepth int `yaml:"max_depth"`

	// MaxNodes caps the number of nodes a single extraction will return,
	// to protect against runaway trees in misbehaving applications.
	MaxNodes int `yaml:"max_nodes"`

	// PropertyBatchSize is the number of elements whose properties are
	// pre-fetched together in a single cross-process batch during extraction.
	PropertyBatchSize int `yaml:"property_batch_size"`
}

func applyTreeDefaults(cfg *TreeConfig) {
	if cfg.MaxNodes == 0 {
		cfg.MaxNodes = 5000
	}
	if cfg.PropertyBatchSize == 0 {
		cfg.PropertyBatchSize = 64
	}
}

func validateTreeConfig(cfg TreeConfig) []string {
	var issues []string
	if cfg.MaxDepth < 0 {
		issues = append(issues, "tree.max_depth must be >= 0")
	}
	if cfg.MaxNodes < 1 {
		issues = append(issues, "tree.max_nodes must be >= 1")
	}
	if cfg.PropertyBatchSize < 1 {
		issues = append(issues, "tree.property_batch_size must be >= 1")
	}
	return issues
}
