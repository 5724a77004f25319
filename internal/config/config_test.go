package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KMSGW_AUTH__API_KEY", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Backend.BaseURL != "http://localhost:9000" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("Backend.Timeout = %v, want 30s", cfg.Backend.Timeout)
	}
	if cfg.Backend.MaxRetries != 3 {
		t.Errorf("Backend.MaxRetries = %d, want 3", cfg.Backend.MaxRetries)
	}
	if cfg.Backend.BackoffBase != 500*time.Millisecond {
		t.Errorf("Backend.BackoffBase = %v, want 500ms", cfg.Backend.BackoffBase)
	}
	if cfg.RateLimit.PerMinute != 100 {
		t.Errorf("RateLimit.PerMinute = %d, want 100", cfg.RateLimit.PerMinute)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %q/%q, want info/json", cfg.Log.Level, cfg.Log.Format)
	}
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
auth:
  api_key: file-secret
backend:
  base_url: http://kms.internal:9000
  max_retries: 5
ratelimit:
  per_minute: 30
storage:
  type: sqlite
  sqlite:
    path: /tmp/keys.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.APIKey != "file-secret" {
		t.Errorf("Auth.APIKey = %q", cfg.Auth.APIKey)
	}
	if cfg.Backend.BaseURL != "http://kms.internal:9000" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.MaxRetries != 5 {
		t.Errorf("Backend.MaxRetries = %d, want 5", cfg.Backend.MaxRetries)
	}
	if cfg.RateLimit.PerMinute != 30 {
		t.Errorf("RateLimit.PerMinute = %d, want 30", cfg.RateLimit.PerMinute)
	}
	if cfg.Storage.SQLite.Path != "/tmp/keys.db" {
		t.Errorf("Storage.SQLite.Path = %q", cfg.Storage.SQLite.Path)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  api_key: file-secret
backend:
  base_url: http://from-file:9000
`)
	t.Setenv("KMSGW_BACKEND__BASE_URL", "http://from-env:9000")
	t.Setenv("KMSGW_SERVER__PORT", "8080")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://from-env:9000" {
		t.Errorf("Backend.BaseURL = %q, want env value", cfg.Backend.BaseURL)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestAPIKeySubstitution(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  api_key: ${GATEWAY_SECRET}
`)
	t.Setenv("GATEWAY_SECRET", "from-environment")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.APIKey != "from-environment" {
		t.Errorf("Auth.APIKey = %q, want substituted value", cfg.Auth.APIKey)
	}
}

func TestMissingAPIKeyFailsValidation(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected validation error for missing api_key")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("err = %v, want mention of api_key", err)
	}
}

func TestValidationRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "port out of range",
			yaml: "server:\n  port: 70000\nauth:\n  api_key: s\n",
			want: "port",
		},
		{
			name: "negative retries",
			yaml: "auth:\n  api_key: s\nbackend:\n  max_retries: -1\n",
			want: "max_retries",
		},
		{
			name: "zero rate limit",
			yaml: "auth:\n  api_key: s\nratelimit:\n  per_minute: 0\n",
			want: "per_minute",
		},
		{
			name: "unknown storage type",
			yaml: "auth:\n  api_key: s\nstorage:\n  type: postgres\n",
			want: "storage.type",
		},
		{
			name: "unknown log level",
			yaml: "auth:\n  api_key: s\nlog:\n  level: verbose\n",
			want: "log.level",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
