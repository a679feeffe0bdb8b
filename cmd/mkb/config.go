package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mkb/internal/config"
)

var (
	configFormat    string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage MKB configuration",
	Long:  "View and manage MKB configuration stored in .mkb/config.json",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write the default configuration to .mkb/config.json in the current
directory. Edit the file afterwards to point at your marketplace sources
and AI deployment.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective MKB configuration after file and environment
overrides.

Examples:
  mkb config show                  # Pretty-print current config
  mkb config show --format json    # Raw JSON output`,
	Run: runConfigShow,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Long:  "Display all supported MKB environment variable overrides",
	Run:   runConfigEnv,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	configShowCmd.Flags().StringVar(&configFormat, "format", "human", "Output format (json, human)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	baseDir := mustGetBaseDir()
	path := filepath.Join(baseDir, ".mkb", "config.json")

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(baseDir); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Set sources.catalogUrl and friends, or export MKB_CATALOG_URL etc.")
	return nil
}

// ConfigShowResponse is the response format for config show
type ConfigShowResponse struct {
	ConfigPath   string            `json:"configPath,omitempty"`
	UsedDefaults bool              `json:"usedDefaults"`
	EnvOverrides []config.Override `json:"envOverrides,omitempty"`
	Config       *config.Config    `json:"config"`
}

func runConfigShow(cmd *cobra.Command, args []string) {
	baseDir := mustGetBaseDir()

	// Load config with details
	cfg, details, err := config.LoadConfigWithDetails(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if configFormat == "json" {
		outputConfigJSON(cfg, details)
	} else {
		outputConfigHuman(cfg, details)
	}
}

func outputConfigJSON(cfg *config.Config, details *config.LoadDetails) {
	response := ConfigShowResponse{
		ConfigPath:   details.Path,
		UsedDefaults: !details.UsedFile,
		EnvOverrides: details.Overrides,
		Config:       cfg,
	}

	output, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(output))
}

func outputConfigHuman(cfg *config.Config, details *config.LoadDetails) {
	defaults := config.DefaultConfig()

	// Header
	fmt.Println("MKB Configuration")
	fmt.Println(strings.Repeat("─", 50))

	// Source info
	if details.UsedFile {
		fmt.Printf("Source: %s\n", details.Path)
	} else {
		fmt.Println("Source: defaults (no config file found)")
	}

	// Env overrides
	if len(details.Overrides) > 0 {
		fmt.Println("\nEnvironment Overrides:")
		for _, ov := range details.Overrides {
			fmt.Printf("  %s=%s → %s\n", ov.Variable, ov.Value, ov.Field)
		}
	}

	fmt.Println("\nserver:")
	printConfigSection("  host", cfg.Server.Host, defaults.Server.Host)
	printConfigSection("  port", cfg.Server.Port, defaults.Server.Port)

	fmt.Println("\nsources:")
	printConfigSection("  catalogUrl", valueOrUnset(cfg.Sources.CatalogURL), "unset")
	printConfigSection("  signalsUrl", valueOrUnset(cfg.Sources.SignalsURL), "unset")
	printConfigSection("  taxonomyUrl", valueOrUnset(cfg.Sources.TaxonomyURL), "unset")
	printConfigSection("  oemUrl", valueOrUnset(cfg.Sources.OEMURL), "unset")
	printConfigSection("  listingBaseUrl", valueOrUnset(cfg.Sources.ListingBaseURL), "unset")
	printConfigSection("  pageSize", cfg.Sources.PageSize, defaults.Sources.PageSize)

	fmt.Println("\nai:")
	printConfigSection("  endpoint", valueOrUnset(cfg.AI.Endpoint), "unset")
	apiKey := "unset"
	if cfg.AI.APIKey != "" {
		apiKey = "****"
	}
	printConfigSection("  apiKey", apiKey, "unset")
	printConfigSection("  completionDeployment", cfg.AI.CompletionDeployment, defaults.AI.CompletionDeployment)
	printConfigSection("  embeddingDeployment", cfg.AI.EmbeddingDeployment, defaults.AI.EmbeddingDeployment)

	fmt.Println("\nttl (seconds):")
	printConfigSection("  catalog", cfg.TTL.CatalogSeconds, defaults.TTL.CatalogSeconds)
	printConfigSection("  taxonomy", cfg.TTL.TaxonomySeconds, defaults.TTL.TaxonomySeconds)
	printConfigSection("  signals", cfg.TTL.SignalsSeconds, defaults.TTL.SignalsSeconds)
	printConfigSection("  knowledge", cfg.TTL.KnowledgeSeconds, defaults.TTL.KnowledgeSeconds)
	printConfigSection("  content", cfg.TTL.ContentSeconds, defaults.TTL.ContentSeconds)
	printConfigSection("  indexStale", cfg.TTL.IndexStaleSeconds, defaults.TTL.IndexStaleSeconds)

	fmt.Println("\nbudget:")
	printConfigSection("  maxProductsPerSection", cfg.Budget.MaxProductsPerSection, defaults.Budget.MaxProductsPerSection)
	printConfigSection("  maxSemanticMatches", cfg.Budget.MaxSemanticMatches, defaults.Budget.MaxSemanticMatches)
	printConfigSection("  maxBlockBytes", cfg.Budget.MaxBlockBytes, defaults.Budget.MaxBlockBytes)
	printConfigSection("  maxChunks", cfg.Budget.MaxChunks, defaults.Budget.MaxChunks)
	printConfigSection("  topK", cfg.Budget.TopK, defaults.Budget.TopK)

	fmt.Println("\nsession:")
	printConfigSection("  ttlMinutes", cfg.Session.TTLMinutes, defaults.Session.TTLMinutes)
	printConfigSection("  maxMessages", cfg.Session.MaxMessages, defaults.Session.MaxMessages)

	fmt.Println("\nplaybook:")
	printConfigSection("  path", valueOrUnset(cfg.Playbook.Path), "unset")

	fmt.Println("\nscrape:")
	printConfigSection("  sourcesPath", valueOrUnset(cfg.Scrape.SourcesPath), "unset")
	printConfigSection("  userAgent", cfg.Scrape.UserAgent, defaults.Scrape.UserAgent)
	printConfigSection("  maxContentChars", cfg.Scrape.MaxContentChars, defaults.Scrape.MaxContentChars)

	fmt.Println("\nlogging:")
	printConfigSection("  level", cfg.Logging.Level, defaults.Logging.Level)
	printConfigSection("  format", cfg.Logging.Format, defaults.Logging.Format)

	fmt.Println()
	fmt.Println("Use 'mkb config show --format json' for full configuration")
	fmt.Println("Use 'mkb config env' to see supported environment variables")
}

func printConfigSection(name string, value, defaultValue interface{}) {
	modified := ""
	if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", defaultValue) {
		modified = fmt.Sprintf(" (default: %v)", defaultValue)
	}
	fmt.Printf("%s: %v%s\n", name, value, modified)
}

func valueOrUnset(value string) string {
	if value == "" {
		return "unset"
	}
	return value
}

func runConfigEnv(cmd *cobra.Command, args []string) {
	fmt.Println("Supported MKB Environment Variables")
	fmt.Println(strings.Repeat("─", 50))
	fmt.Println()

	// Group by category
	categories := map[string][]envVarInfo{
		"Server": {
			{"MKB_HOST", "Host to bind the HTTP server to", "string"},
			{"MKB_PORT", "HTTP server port", "int"},
		},
		"Sources": {
			{"MKB_CATALOG_URL", "Product catalog endpoint", "string"},
			{"MKB_SIGNALS_URL", "Marketplace signals endpoint", "string"},
			{"MKB_TAXONOMY_URL", "Category taxonomy endpoint", "string"},
			{"MKB_OEM_URL", "OEM directory endpoint", "string"},
			{"MKB_LISTING_BASE_URL", "Base URL for product listing links", "string"},
		},
		"AI": {
			{"MKB_AI_ENDPOINT", "Azure OpenAI endpoint", "string"},
			{"MKB_AI_API_KEY", "Azure OpenAI API key", "string"},
			{"MKB_AI_COMPLETION_DEPLOYMENT", "Completion deployment name", "string"},
			{"MKB_AI_EMBEDDING_DEPLOYMENT", "Embedding deployment name", "string"},
		},
		"Logging": {
			{"MKB_LOG_LEVEL", "Log level (debug, info, warn, error)", "string"},
			{"MKB_LOG_FORMAT", "Log format (human, json)", "string"},
		},
	}

	order := []string{"Server", "Sources", "AI", "Logging"}
	for _, cat := range order {
		vars := categories[cat]
		fmt.Printf("%s:\n", cat)
		for _, v := range vars {
			fmt.Printf("  %-30s %s (%s)\n", v.name, v.desc, v.varType)
		}
		fmt.Println()
	}

	fmt.Println("Example usage:")
	fmt.Println("  MKB_CATALOG_URL=https://market.example.com/api/products mkb serve")
	fmt.Println("  MKB_LOG_LEVEL=debug mkb serve")
	fmt.Println("  MKB_AI_ENDPOINT=https://my-rg.openai.azure.com mkb index --rebuild")
}

type envVarInfo struct {
	name    string
	desc    string
	varType string
}
