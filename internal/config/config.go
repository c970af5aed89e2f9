package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level configuration for the desktop automation server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Concurrency   ConcurrencyConfig   `yaml:"concurrency"`
	Platform      PlatformConfig      `yaml:"platform"`
	Locator       LocatorConfig       `yaml:"locator"`
	Tree          TreeConfig          `yaml:"tree"`
	Workflow      WorkflowConfig      `yaml:"workflow"`
	Artifacts     ArtifactConfig      `yaml:"artifacts"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the MCP transport the server listens on.
type ServerConfig struct {
	// Transport selects how MCP requests are carried: "stdio", "http", or "sse".
	Transport string `yaml:"transport"`

	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// AuthConfig configures bearer-token authentication for the HTTP/SSE transports.
// stdio transport is trusted by virtue of process ownership and ignores this.
type AuthConfig struct {
	// BearerToken, when set, is required on the Authorization header of every
	// HTTP/SSE request. Empty disables authentication (stdio-only deployments).
	BearerToken string `yaml:"bearer_token"`

	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// ConcurrencyConfig bounds how many tool calls may execute against the
// platform accessibility APIs at once.
type ConcurrencyConfig struct {
	// MaxActiveOperations is the size of the semaphore gating concurrent
	// element/tree/tool operations. Most accessibility backends are not
	// safe for unbounded concurrent access from a single process.
	MaxActiveOperations int `yaml:"max_active_operations"`

	// GateWaitTimeout bounds how long a request waits for a free slot
	// before failing with a resource-exhausted error.
	GateWaitTimeout time.Duration `yaml:"gate_wait_timeout"`
}

// PlatformConfig controls platform engine selection and screen capture.
type PlatformConfig struct {
	// Engine overrides automatic OS detection: "windows", "macos", "linux", or "auto".
	Engine string `yaml:"engine"`

	// ScreenshotFormat is the image encoding used by capture_screen: "png" or "jpeg".
	ScreenshotFormat string `yaml:"screenshot_format"`

	// HighlightOverlay enables the transient on-screen action overlay
	// (internal/overlay) that shows a status box naming the action and
	// element as click_element/type_into_element/press_key run, for
	// visual debugging. Off by default.
	HighlightOverlay bool `yaml:"highlight_overlay"`
}

// Load reads, expands, and validates a configuration file. The format is
// selected by file extension (loader.go): ".json" and ".json5" decode
// through json5 (a superset of JSON permitting comments and trailing
// commas), anything else decodes as YAML. $include directives are resolved
// before the result is unmarshalled into Config.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyAuthDefaults(&cfg.Auth)
	applyConcurrencyDefaults(&cfg.Concurrency)
	applyPlatformDefaults(&cfg.Platform)
	applyLocatorDefaults(&cfg.Locator)
	applyTreeDefaults(&cfg.Tree)
	applyWorkflowDefaults(&cfg.Workflow)
	applyArtifactDefaults(&cfg.Artifacts)
	applyLoggingDefaults(&cfg.Logging)
	applyObservabilityDefaults(&cfg.Observability)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Transport == "" {
		cfg.Transport = "stdio"
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 7420
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.TokenExpiry == 0 {
		cfg.TokenExpiry = 24 * time.Hour
	}
}

func applyConcurrencyDefaults(cfg *ConcurrencyConfig) {
	if cfg.MaxActiveOperations == 0 {
		cfg.MaxActiveOperations = 4
	}
	if cfg.GateWaitTimeout == 0 {
		cfg.GateWaitTimeout = 30 * time.Second
	}
}

func applyPlatformDefaults(cfg *PlatformConfig) {
	if cfg.Engine == "" {
		cfg.Engine = "auto"
	}
	if cfg.ScreenshotFormat == "" {
		cfg.ScreenshotFormat = "png"
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if value := strings.TrimSpace(os.Getenv("DESKMCP_TRANSPORT")); value != "" {
		cfg.Server.Transport = value
	}
	if value := strings.TrimSpace(os.Getenv("DESKMCP_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("DESKMCP_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("DESKMCP_METRICS_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("DESKMCP_BEARER_TOKEN")); value != "" {
		cfg.Auth.BearerToken = value
	}
	if value := strings.TrimSpace(os.Getenv("DESKMCP_PLATFORM_ENGINE")); value != "" {
		cfg.Platform.Engine = value
	}

	// External interface contract: MCP_AUTH_TOKEN and MCP_MAX_CONCURRENT name
	// the auth token and concurrency limit the way any MCP client deployment
	// scripting against this server expects, independent of the DESKMCP_*
	// internal overrides above. Both are honored; when both are set, these
	// take precedence since they are the externally documented names.
	if value := strings.TrimSpace(os.Getenv("MCP_AUTH_TOKEN")); value != "" {
		cfg.Auth.BearerToken = value
	}
	if value := strings.TrimSpace(os.Getenv("MCP_MAX_CONCURRENT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Concurrency.MaxActiveOperations = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); value != "" {
		cfg.Observability.Tracing.Endpoint = value
	}
	if value := strings.TrimSpace(os.Getenv("OTEL_SDK_ENABLED")); value != "" {
		cfg.Observability.Tracing.Enabled = value != "false" && value != "0"
	}
}

// ConfigValidationError aggregates every validation issue found in a config
// so the caller can report all of them at once instead of one at a time.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if !validTransport(cfg.Server.Transport) {
		issues = append(issues, "server.transport must be \"stdio\", \"http\", or \"sse\"")
	}
	if cfg.Server.HTTPPort < 0 || cfg.Server.HTTPPort > 65535 {
		issues = append(issues, "server.http_port must be between 0 and 65535")
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		issues = append(issues, "server.metrics_port must be between 0 and 65535")
	}
	if cfg.Concurrency.MaxActiveOperations < 1 {
		issues = append(issues, "concurrency.max_active_operations must be >= 1")
	}
	if !validPlatformEngine(cfg.Platform.Engine) {
		issues = append(issues, "platform.engine must be \"auto\", \"windows\", \"macos\", or \"linux\"")
	}
	if !validScreenshotFormat(cfg.Platform.ScreenshotFormat) {
		issues = append(issues, "platform.screenshot_format must be \"png\" or \"jpeg\"")
	}

	issues = append(issues, validateLocatorConfig(cfg.Locator)...)
	issues = append(issues, validateTreeConfig(cfg.Tree)...)
	issues = append(issues, validateWorkflowConfig(cfg.Workflow)...)
	issues = append(issues, validateArtifactConfig(cfg.Artifacts)...)
	issues = append(issues, pluginValidationIssues(cfg)...)

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

func validTransport(transport string) bool {
	switch transport {
	case "stdio", "http", "sse":
		return true
	default:
		return false
	}
}

func validPlatformEngine(engine string) bool {
	switch engine {
	case "auto", "windows", "macos", "linux":
		return true
	default:
		return false
	}
}

func validScreenshotFormat(format string) bool {
	switch format {
	case "png", "jpeg":
		return true
	default:
		return false
	}
}
