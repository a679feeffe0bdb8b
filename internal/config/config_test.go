package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 2 {
		t.Errorf("Version = %d, want 2", cfg.Version)
	}

	if cfg.Server.Port <= 0 {
		t.Error("Server.Port should be positive")
	}
	if cfg.Server.Host == "" {
		t.Error("Server.Host should not be empty")
	}

	// Cache lifetimes
	if cfg.TTL.CatalogSeconds != 300 {
		t.Errorf("TTL.CatalogSeconds = %d, want 300", cfg.TTL.CatalogSeconds)
	}
	if cfg.TTL.TaxonomySeconds != 600 {
		t.Errorf("TTL.TaxonomySeconds = %d, want 600", cfg.TTL.TaxonomySeconds)
	}
	if cfg.TTL.SignalsSeconds != 3600 {
		t.Errorf("TTL.SignalsSeconds = %d, want 3600", cfg.TTL.SignalsSeconds)
	}

	// Fetch budgets are criticality ordered: catalog > taxonomy > signals > content
	if !(cfg.Timeouts.CatalogMs > cfg.Timeouts.TaxonomyMs &&
		cfg.Timeouts.TaxonomyMs > cfg.Timeouts.SignalsMs &&
		cfg.Timeouts.SignalsMs > cfg.Timeouts.ContentMs) {
		t.Errorf("timeouts should be criticality ordered, got catalog=%d taxonomy=%d signals=%d content=%d",
			cfg.Timeouts.CatalogMs, cfg.Timeouts.TaxonomyMs, cfg.Timeouts.SignalsMs, cfg.Timeouts.ContentMs)
	}

	// Budget settings
	if cfg.Budget.MaxChunks != 500 {
		t.Errorf("Budget.MaxChunks = %d, want 500", cfg.Budget.MaxChunks)
	}
	if cfg.Budget.EmbedBatchSize != 16 {
		t.Errorf("Budget.EmbedBatchSize = %d, want 16", cfg.Budget.EmbedBatchSize)
	}
	if cfg.Budget.TopK != 5 {
		t.Errorf("Budget.TopK = %d, want 5", cfg.Budget.TopK)
	}
	if cfg.Budget.MaxDescriptionChars != 500 {
		t.Errorf("Budget.MaxDescriptionChars = %d, want 500", cfg.Budget.MaxDescriptionChars)
	}

	if cfg.Session.TTLMinutes <= 0 {
		t.Error("Session.TTLMinutes should be positive")
	}

	if cfg.Logging.Format != "human" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "human")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"version 1 unsupported", func(c *Config) { c.Version = 1 }, true},
		{"version 0 unsupported", func(c *Config) { c.Version = 0 }, true},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"batch size zero", func(c *Config) { c.Budget.EmbedBatchSize = 0 }, true},
		{"topK zero", func(c *Config) { c.Budget.TopK = 0 }, true},
		{"chunk cap zero", func(c *Config) { c.Budget.MaxChunks = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"json format valid", func(c *Config) { c.Logging.Format = "json" }, false},
		{"debug level valid", func(c *Config) { c.Logging.Level = "debug" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr && err == nil {
				t.Error("Validate() should return error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() returned unexpected error: %v", err)
			}

			if err != nil {
				if _, ok := err.(*ConfigError); !ok {
					t.Errorf("Validate() error type = %T, want *ConfigError", err)
				}
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{
		Field:   "version",
		Message: "unsupported config version",
	}

	got := err.Error()
	want := "config error in field 'version': unsupported config version"

	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestLoadConfig_Default(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	// Should return default config when no config file exists
	if cfg.Version != 2 {
		t.Errorf("Version = %d, want 2 (default)", cfg.Version)
	}
	if cfg.TTL.CatalogSeconds != 300 {
		t.Errorf("TTL.CatalogSeconds = %d, want 300 (default)", cfg.TTL.CatalogSeconds)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	mkbDir := filepath.Join(tmpDir, ".mkb")
	if err := os.MkdirAll(mkbDir, 0755); err != nil {
		t.Fatalf("Failed to create .mkb dir: %v", err)
	}

	configContent := `{
		"version": 2,
		"sources": {
			"catalogUrl": "https://api.example.com/products",
			"taxonomyUrl": "https://api.example.com/categories"
		},
		"ttl": {
			"catalogSeconds": 120
		},
		"budget": {
			"topK": 8
		}
	}`

	configPath := filepath.Join(mkbDir, "config.json")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Sources.CatalogURL != "https://api.example.com/products" {
		t.Errorf("Sources.CatalogURL = %q, want configured value", cfg.Sources.CatalogURL)
	}
	if cfg.TTL.CatalogSeconds != 120 {
		t.Errorf("TTL.CatalogSeconds = %d, want 120", cfg.TTL.CatalogSeconds)
	}
	if cfg.Budget.TopK != 8 {
		t.Errorf("Budget.TopK = %d, want 8", cfg.Budget.TopK)
	}
}

func TestLoadConfigWithDetails(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		tmpDir := t.TempDir()

		_, details, err := LoadConfigWithDetails(tmpDir)
		if err != nil {
			t.Fatalf("LoadConfigWithDetails() error = %v", err)
		}
		if details.UsedFile {
			t.Error("UsedFile should be false when no config file exists")
		}
	})

	t.Run("with file", func(t *testing.T) {
		tmpDir := t.TempDir()
		mkbDir := filepath.Join(tmpDir, ".mkb")
		if err := os.MkdirAll(mkbDir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(mkbDir, "config.json"), []byte(`{"version": 2}`), 0644); err != nil {
			t.Fatal(err)
		}

		_, details, err := LoadConfigWithDetails(tmpDir)
		if err != nil {
			t.Fatalf("LoadConfigWithDetails() error = %v", err)
		}
		if !details.UsedFile {
			t.Error("UsedFile should be true when a config file exists")
		}
		if details.Path == "" {
			t.Error("Path should be set when a config file was read")
		}
	})
}

func TestEnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		variable string
		value    string
		check    func(*Config) bool
	}{
		{"log level", "MKB_LOG_LEVEL", "debug", func(c *Config) bool { return c.Logging.Level == "debug" }},
		{"log format", "MKB_LOG_FORMAT", "json", func(c *Config) bool { return c.Logging.Format == "json" }},
		{"host", "MKB_HOST", "0.0.0.0", func(c *Config) bool { return c.Server.Host == "0.0.0.0" }},
		{"port", "MKB_PORT", "9999", func(c *Config) bool { return c.Server.Port == 9999 }},
		{"catalog url", "MKB_CATALOG_URL", "https://x/p", func(c *Config) bool { return c.Sources.CatalogURL == "https://x/p" }},
		{"ai endpoint", "MKB_AI_ENDPOINT", "https://ai.example.com", func(c *Config) bool { return c.AI.Endpoint == "https://ai.example.com" }},
		{"api key", "MKB_AI_API_KEY", "sk-test", func(c *Config) bool { return c.AI.APIKey == "sk-test" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.variable, tt.value)

			cfg := DefaultConfig()
			overrides := applyEnvOverrides(cfg)

			if !tt.check(cfg) {
				t.Errorf("override %s=%s was not applied", tt.variable, tt.value)
			}

			found := false
			for _, o := range overrides {
				if o.Variable == tt.variable {
					found = true
					// The API key value must never be echoed back.
					if tt.variable == "MKB_AI_API_KEY" && o.Value != "****" {
						t.Errorf("API key override value = %q, want masked", o.Value)
					}
				}
			}
			if !found {
				t.Errorf("override %s not recorded", tt.variable)
			}
		})
	}
}

func TestEnvOverrides_BadPort(t *testing.T) {
	t.Setenv("MKB_PORT", "not-a-number")

	cfg := DefaultConfig()
	overrides := applyEnvOverrides(cfg)

	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("Port = %d, want default when override is unparseable", cfg.Server.Port)
	}
	for _, o := range overrides {
		if o.Variable == "MKB_PORT" {
			t.Error("unparseable port override should not be recorded")
		}
	}
}

func TestConfig_Save(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Budget.TopK = 7
	cfg.AI.APIKey = "sk-secret"

	err := cfg.Save(tmpDir)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ".mkb", "config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}

	// Secrets never land on disk.
	if strings.Contains(string(data), "sk-secret") {
		t.Error("Save() must not write the API key to disk")
	}

	loaded, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfig() after save error = %v", err)
	}

	if loaded.Budget.TopK != 7 {
		t.Errorf("Loaded Budget.TopK = %d, want 7", loaded.Budget.TopK)
	}
}
