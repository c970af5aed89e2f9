package config

import "time"

// WorkflowConfig controls default execution behavior for declarative
// workflow runs, applied when a step does not override them.
type WorkflowConfig struct {
	// MaxSteps bounds the total number of steps a single workflow may
	// execute, counting fallback steps, as a runaway guard.
	MaxSteps int `yaml:"max_steps"`

	// DefaultStepTimeout bounds how long a single step may run before it
	// is treated as failed and its retry/fallback policy takes over.
	DefaultStepTimeout time.Duration `yaml:"default_step_timeout"`

	// Retry is the default retry policy applied to a step's retry_config
	// when the workflow definition does not specify one.
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig mirrors internal/backoff.BackoffPolicy in YAML-friendly form.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Factor      float64       `yaml:"factor"`
	Jitter      float64       `yaml:"jitter"`
}

func applyWorkflowDefaults(cfg *WorkflowConfig) {
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = 500
	}
	if cfg.DefaultStepTimeout == 0 {
		cfg.DefaultStepTimeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialWait == 0 {
		cfg.Retry.InitialWait = 250 * time.Millisecond
	}
	if cfg.Retry.MaxWait == 0 {
		cfg.Retry.MaxWait = 5 * time.Second
	}
	if cfg.Retry.Factor == 0 {
		cfg.Retry.Factor = 2
	}
	if cfg.Retry.Jitter == 0 {
		cfg.Retry.Jitter = 0.2
	}
}

func validateWorkflowConfig(cfg WorkflowConfig) []string {
	var issues []string
	if cfg.MaxSteps < 1 {
		issues = append(issues, "workflow.max_steps must be >= 1")
	}
	if cfg.Retry.MaxAttempts < 1 {
		issues = append(issues, "workflow.retry.max_attempts must be >= 1")
	}
	if cfg.Retry.Factor < 1 {
		issues = append(issues, "workflow.retry.factor must be >= 1")
	}
	if cfg.Retry.Jitter < 0 || cfg.Retry.Jitter > 1 {
		issues = append(issues, "workflow.retry.jitter must be between 0 and 1")
	}
	return issues
}
