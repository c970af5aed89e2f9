package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	return writeTempConfigNamed(t, "config.yaml", contents)
}

func writeTempConfigNamed(t *testing.T, filename, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "server:\n  transport: stdio\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPPort != 7420 {
		t.Errorf("Server.HTTPPort = %d, want 7420", cfg.Server.HTTPPort)
	}
	if cfg.Concurrency.MaxActiveOperations != 4 {
		t.Errorf("Concurrency.MaxActiveOperations = %d, want 4", cfg.Concurrency.MaxActiveOperations)
	}
	if cfg.Locator.CacheSize != 256 {
		t.Errorf("Locator.CacheSize = %d, want 256", cfg.Locator.CacheSize)
	}
	if cfg.Workflow.Retry.MaxAttempts != 3 {
		t.Errorf("Workflow.Retry.MaxAttempts = %d, want 3", cfg.Workflow.Retry.MaxAttempts)
	}
	if cfg.Platform.Engine != "auto" {
		t.Errorf("Platform.Engine = %q, want auto", cfg.Platform.Engine)
	}
	if cfg.Artifacts.Directory != "artifacts" {
		t.Errorf("Artifacts.Directory = %q, want artifacts", cfg.Artifacts.Directory)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, "server:\n  bogus_field: true\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error for unknown field, got nil")
	}
}

func TestLoadRejectsInvalidTransport(t *testing.T) {
	path := writeTempConfig(t, "server:\n  transport: carrier-pigeon\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected error for invalid transport, got nil")
	}
	if _, ok := err.(*ConfigValidationError); !ok {
		t.Fatalf("Load() error type = %T, want *ConfigValidationError", err)
	}
}

func TestLoadAcceptsJSON5(t *testing.T) {
	path := writeTempConfigNamed(t, "config.json5", `{
		// trailing commas and comments are both fine in json5
		server: {
			transport: "http",
			http_port: 8123,
		},
		platform: {
			engine: "linux",
		},
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Transport != "http" {
		t.Errorf("Server.Transport = %q, want http", cfg.Server.Transport)
	}
	if cfg.Server.HTTPPort != 8123 {
		t.Errorf("Server.HTTPPort = %d, want 8123", cfg.Server.HTTPPort)
	}
	if cfg.Platform.Engine != "linux" {
		t.Errorf("Platform.Engine = %q, want linux", cfg.Platform.Engine)
	}
	// defaults still apply to fields the json5 document left unset
	if cfg.Concurrency.MaxActiveOperations != 4 {
		t.Errorf("Concurrency.MaxActiveOperations = %d, want default 4", cfg.Concurrency.MaxActiveOperations)
	}
}

func TestLoadAcceptsPlainJSON(t *testing.T) {
	path := writeTempConfigNamed(t, "config.json", `{"server": {"transport": "stdio"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Transport != "stdio" {
		t.Errorf("Server.Transport = %q, want stdio", cfg.Server.Transport)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("DESKMCP_TEST_TOKEN", "secret-token")
	path := writeTempConfig(t, "auth:\n  bearer_token: ${DESKMCP_TEST_TOKEN}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.BearerToken != "secret-token" {
		t.Errorf("Auth.BearerToken = %q, want secret-token", cfg.Auth.BearerToken)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DESKMCP_HOST", "0.0.0.0")
	t.Setenv("DESKMCP_HTTP_PORT", "9999")

	path := writeTempConfig(t, "server:\n  host: 127.0.0.1\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want override 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.HTTPPort != 9999 {
		t.Errorf("Server.HTTPPort = %d, want override 9999", cfg.Server.HTTPPort)
	}
}

func TestValidateConfigAggregatesIssues(t *testing.T) {
	cfg := &Config{
		Server:      ServerConfig{Transport: "carrier-pigeon", HTTPPort: -1},
		Concurrency: ConcurrencyConfig{MaxActiveOperations: 0},
		Platform:    PlatformConfig{Engine: "bogus", ScreenshotFormat: "bmp"},
	}

	err := validateConfig(cfg)
	if err == nil {
		t.Fatal("validateConfig() expected error, got nil")
	}
	vErr, ok := err.(*ConfigValidationError)
	if !ok {
		t.Fatalf("error type = %T, want *ConfigValidationError", err)
	}
	if len(vErr.Issues) < 4 {
		t.Errorf("Issues count = %d, want >= 4, got %v", len(vErr.Issues), vErr.Issues)
	}
}

func TestWorkflowRetryDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.Workflow.Retry.InitialWait != 250*time.Millisecond {
		t.Errorf("InitialWait = %v, want 250ms", cfg.Workflow.Retry.InitialWait)
	}
	if cfg.Workflow.Retry.MaxWait != 5*time.Second {
		t.Errorf("MaxWait = %v, want 5s", cfg.Workflow.Retry.MaxWait)
	}
	if cfg.Workflow.Retry.Factor != 2 {
		t.Errorf("Factor = %v, want 2", cfg.Workflow.Retry.Factor)
	}
	if cfg.Workflow.Retry.Jitter != 0.2 {
		t.Errorf("Jitter = %v, want 0.2", cfg.Workflow.Retry.Jitter)
	}
}
