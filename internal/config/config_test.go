package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DBPath == "" {
		t.Error("expected a default database path")
	}
	if cfg.MaxBatchSize != 50 {
		t.Errorf("max batch size = %d, want 50", cfg.MaxBatchSize)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("max retries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
	if cfg.BaseDelay() != time.Second {
		t.Errorf("base delay = %v, want 1s", cfg.BaseDelay())
	}
	if cfg.MaxDelay() != 5*time.Minute {
		t.Errorf("max delay = %v, want 5m", cfg.MaxDelay())
	}
	if cfg.PullInterval() != time.Minute {
		t.Errorf("pull interval = %v, want 1m", cfg.PullInterval())
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Timeout())
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxBatchSize != 50 {
		t.Errorf("max batch size = %d, want default", cfg.MaxBatchSize)
	}
}

func TestLoad_OverlaysFileOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `base_url: https://api.example.com
tenant_id: shop-42
max_batch_size: 10
pull_interval_ms: 5000
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.BaseURL != "https://api.example.com" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.TenantID != "shop-42" {
		t.Errorf("tenant id = %q", cfg.TenantID)
	}
	if cfg.MaxBatchSize != 10 {
		t.Errorf("max batch size = %d, want 10", cfg.MaxBatchSize)
	}
	if cfg.PullInterval() != 5*time.Second {
		t.Errorf("pull interval = %v, want 5s", cfg.PullInterval())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}

	// Fields absent from the file keep their defaults.
	if cfg.MaxRetries != 5 {
		t.Errorf("max retries = %d, want default 5", cfg.MaxRetries)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("base_url: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"complete", Config{BaseURL: "https://api.example.com", TenantID: "shop-42"}, false},
		{"missing base url", Config{TenantID: "shop-42"}, true},
		{"missing tenant id", Config{BaseURL: "https://api.example.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
