package main

import (
	"mkb/internal/version"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mkb",
	Short: "MKB - Marketplace Knowledge Backend",
	Long: `MKB (Marketplace Knowledge Backend) assembles freshness-aware sales context
for a product marketplace: it caches the live catalog and taxonomy, classifies
customer intent and funnel stage, and builds the context block a chat model
grounds its answers in.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("MKB version {{.Version}}\n")
}
