package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config represents the complete MKB configuration (v2 schema)
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Server   ServerConfig   `json:"server" mapstructure:"server"`
	Sources  SourcesConfig  `json:"sources" mapstructure:"sources"`
	AI       AIConfig       `json:"ai" mapstructure:"ai"`
	TTL      TTLConfig      `json:"ttl" mapstructure:"ttl"`
	Timeouts TimeoutsConfig `json:"timeouts" mapstructure:"timeouts"`
	Budget   BudgetConfig   `json:"budget" mapstructure:"budget"`
	Session  SessionConfig  `json:"session" mapstructure:"session"`
	Playbook PlaybookConfig `json:"playbook" mapstructure:"playbook"`
	Scrape   ScrapeConfig   `json:"scrape" mapstructure:"scrape"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// SourcesConfig contains upstream data source configuration
type SourcesConfig struct {
	CatalogURL     string `json:"catalogUrl" mapstructure:"catalogUrl"`
	SignalsURL     string `json:"signalsUrl" mapstructure:"signalsUrl"`
	TaxonomyURL    string `json:"taxonomyUrl" mapstructure:"taxonomyUrl"`
	OEMURL         string `json:"oemUrl" mapstructure:"oemUrl"`
	ListingBaseURL string `json:"listingBaseUrl" mapstructure:"listingBaseUrl"`
	PageSize       int    `json:"pageSize" mapstructure:"pageSize"`
	MaxPages       int    `json:"maxPages" mapstructure:"maxPages"`
}

// AIConfig contains completion and embedding service configuration.
// The API key is environment-only and never written to the config file.
type AIConfig struct {
	Endpoint             string `json:"endpoint" mapstructure:"endpoint"`
	APIKey               string `json:"-" mapstructure:"-"`
	APIVersion           string `json:"apiVersion" mapstructure:"apiVersion"`
	CompletionDeployment string `json:"completionDeployment" mapstructure:"completionDeployment"`
	EmbeddingDeployment  string `json:"embeddingDeployment" mapstructure:"embeddingDeployment"`
}

// TTLConfig contains cache lifetime configuration, in seconds
type TTLConfig struct {
	CatalogSeconds    int `json:"catalogSeconds" mapstructure:"catalogSeconds"`
	TaxonomySeconds   int `json:"taxonomySeconds" mapstructure:"taxonomySeconds"`
	SignalsSeconds    int `json:"signalsSeconds" mapstructure:"signalsSeconds"`
	KnowledgeSeconds  int `json:"knowledgeSeconds" mapstructure:"knowledgeSeconds"`
	ContentSeconds    int `json:"contentSeconds" mapstructure:"contentSeconds"`
	IndexStaleSeconds int `json:"indexStaleSeconds" mapstructure:"indexStaleSeconds"`
}

// TimeoutsConfig contains per-source fetch budgets, in milliseconds.
// Budgets are criticality-ordered: the catalog gets the longest budget,
// scraped editorial content the shortest.
type TimeoutsConfig struct {
	CatalogMs    int `json:"catalogMs" mapstructure:"catalogMs"`
	TaxonomyMs   int `json:"taxonomyMs" mapstructure:"taxonomyMs"`
	SignalsMs    int `json:"signalsMs" mapstructure:"signalsMs"`
	ContentMs    int `json:"contentMs" mapstructure:"contentMs"`
	CompletionMs int `json:"completionMs" mapstructure:"completionMs"`
	EmbeddingMs  int `json:"embeddingMs" mapstructure:"embeddingMs"`
	IndexBuildMs int `json:"indexBuildMs" mapstructure:"indexBuildMs"`
}

// BudgetConfig contains context block size limits
type BudgetConfig struct {
	MaxProductsPerSection int `json:"maxProductsPerSection" mapstructure:"maxProductsPerSection"`
	MaxSemanticMatches    int `json:"maxSemanticMatches" mapstructure:"maxSemanticMatches"`
	MaxBlockBytes         int `json:"maxBlockBytes" mapstructure:"maxBlockBytes"`
	MaxChunks             int `json:"maxChunks" mapstructure:"maxChunks"`
	MaxDescriptionChars   int `json:"maxDescriptionChars" mapstructure:"maxDescriptionChars"`
	EmbedBatchSize        int `json:"embedBatchSize" mapstructure:"embedBatchSize"`
	EmbedBatchDelayMs     int `json:"embedBatchDelayMs" mapstructure:"embedBatchDelayMs"`
	TopK                  int `json:"topK" mapstructure:"topK"`
}

// SessionConfig contains conversation session configuration
type SessionConfig struct {
	TTLMinutes  int `json:"ttlMinutes" mapstructure:"ttlMinutes"`
	MaxMessages int `json:"maxMessages" mapstructure:"maxMessages"`
}

// PlaybookConfig points at the sales playbook declaration file
type PlaybookConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// ScrapeConfig contains editorial content scraping configuration
type ScrapeConfig struct {
	SourcesPath     string `json:"sourcesPath" mapstructure:"sourcesPath"`
	UserAgent       string `json:"userAgent" mapstructure:"userAgent"`
	MaxContentChars int    `json:"maxContentChars" mapstructure:"maxContentChars"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 2,
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8460,
		},
		Sources: SourcesConfig{
			CatalogURL:     "",
			SignalsURL:     "",
			TaxonomyURL:    "",
			OEMURL:         "",
			ListingBaseURL: "https://marketplace.example.com",
			PageSize:       100,
			MaxPages:       20,
		},
		AI: AIConfig{
			Endpoint:             "",
			APIVersion:           "2024-02-01",
			CompletionDeployment: "gpt-4o-mini",
			EmbeddingDeployment:  "text-embedding-3-small",
		},
		TTL: TTLConfig{
			CatalogSeconds:    300,
			TaxonomySeconds:   600,
			SignalsSeconds:    3600,
			KnowledgeSeconds:  300,
			ContentSeconds:    1800,
			IndexStaleSeconds: 3600,
		},
		Timeouts: TimeoutsConfig{
			CatalogMs:    3000,
			TaxonomyMs:   2000,
			SignalsMs:    1500,
			ContentMs:    1000,
			CompletionMs: 30000,
			EmbeddingMs:  10000,
			IndexBuildMs: 45000,
		},
		Budget: BudgetConfig{
			MaxProductsPerSection: 8,
			MaxSemanticMatches:    5,
			MaxBlockBytes:         16000,
			MaxChunks:             500,
			MaxDescriptionChars:   500,
			EmbedBatchSize:        16,
			EmbedBatchDelayMs:     200,
			TopK:                  5,
		},
		Session: SessionConfig{
			TTLMinutes:  30,
			MaxMessages: 40,
		},
		Playbook: PlaybookConfig{
			Path: "",
		},
		Scrape: ScrapeConfig{
			SourcesPath:     "",
			UserAgent:       "mkb-content-fetcher/1.0",
			MaxContentChars: 4000,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Override records a single environment variable override applied on load
type Override struct {
	Variable string
	Field    string
	Value    string
}

// LoadDetails describes where the loaded configuration came from
type LoadDetails struct {
	Path      string     // config file path, empty when defaults were used
	UsedFile  bool       // true when a config file was read
	Overrides []Override // environment overrides applied after the file
}

// LoadConfig loads configuration from .mkb/config.json under baseDir,
// falling back to defaults when no file exists, then applies MKB_*
// environment overrides.
func LoadConfig(baseDir string) (*Config, error) {
	cfg, _, err := LoadConfigWithDetails(baseDir)
	return cfg, err
}

// LoadConfigWithDetails is LoadConfig plus provenance for logging.
func LoadConfigWithDetails(baseDir string) (*Config, *LoadDetails, error) {
	v := viper.New()

	details := &LoadDetails{}

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(baseDir, ".mkb"))

	cfg := DefaultConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, err
		}
	} else {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, nil, err
		}
		details.Path = v.ConfigFileUsed()
		details.UsedFile = true
	}

	details.Overrides = applyEnvOverrides(cfg)
	return cfg, details, nil
}

// applyEnvOverrides applies MKB_* environment variables over the loaded
// configuration and reports every override it performed. Secrets (the AI
// API key) only ever enter through this path.
func applyEnvOverrides(cfg *Config) []Override {
	var applied []Override

	override := func(variable, field string, apply func(val string) bool) {
		val, ok := os.LookupEnv(variable)
		if !ok || val == "" {
			return
		}
		if apply(val) {
			shown := val
			if variable == "MKB_AI_API_KEY" {
				shown = "****"
			}
			applied = append(applied, Override{Variable: variable, Field: field, Value: shown})
		}
	}

	override("MKB_HOST", "server.host", func(val string) bool {
		cfg.Server.Host = val
		return true
	})
	override("MKB_PORT", "server.port", func(val string) bool {
		port, err := strconv.Atoi(val)
		if err != nil {
			return false
		}
		cfg.Server.Port = port
		return true
	})
	override("MKB_CATALOG_URL", "sources.catalogUrl", func(val string) bool {
		cfg.Sources.CatalogURL = val
		return true
	})
	override("MKB_SIGNALS_URL", "sources.signalsUrl", func(val string) bool {
		cfg.Sources.SignalsURL = val
		return true
	})
	override("MKB_TAXONOMY_URL", "sources.taxonomyUrl", func(val string) bool {
		cfg.Sources.TaxonomyURL = val
		return true
	})
	override("MKB_OEM_URL", "sources.oemUrl", func(val string) bool {
		cfg.Sources.OEMURL = val
		return true
	})
	override("MKB_LISTING_BASE_URL", "sources.listingBaseUrl", func(val string) bool {
		cfg.Sources.ListingBaseURL = val
		return true
	})
	override("MKB_AI_ENDPOINT", "ai.endpoint", func(val string) bool {
		cfg.AI.Endpoint = val
		return true
	})
	override("MKB_AI_API_KEY", "ai.apiKey", func(val string) bool {
		cfg.AI.APIKey = val
		return true
	})
	override("MKB_AI_COMPLETION_DEPLOYMENT", "ai.completionDeployment", func(val string) bool {
		cfg.AI.CompletionDeployment = val
		return true
	})
	override("MKB_AI_EMBEDDING_DEPLOYMENT", "ai.embeddingDeployment", func(val string) bool {
		cfg.AI.EmbeddingDeployment = val
		return true
	})
	override("MKB_LOG_LEVEL", "logging.level", func(val string) bool {
		cfg.Logging.Level = val
		return true
	})
	override("MKB_LOG_FORMAT", "logging.format", func(val string) bool {
		cfg.Logging.Format = val
		return true
	})

	return applied
}

// Save writes the configuration to .mkb/config.json under baseDir
func (c *Config) Save(baseDir string) error {
	dir := filepath.Join(baseDir, ".mkb")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 2 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: fmt.Sprintf("port %d out of range", c.Server.Port)}
	}
	if c.Budget.EmbedBatchSize < 1 {
		return &ConfigError{Field: "budget.embedBatchSize", Message: "batch size must be at least 1"}
	}
	if c.Budget.TopK < 1 {
		return &ConfigError{Field: "budget.topK", Message: "topK must be at least 1"}
	}
	if c.Budget.MaxChunks < 1 {
		return &ConfigError{Field: "budget.maxChunks", Message: "chunk cap must be at least 1"}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: "unknown level " + c.Logging.Level}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "unknown format " + c.Logging.Format}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
