package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	indexRebuild bool
	indexFormat  string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Show or rebuild the semantic index",
	Long: `Show the state of the semantic product index. With --rebuild, drop the
index and re-embed the current catalog through the configured embedding
deployment.

The index requires an AI endpoint (set ai.endpoint in .mkb/config.json or
MKB_AI_ENDPOINT). Without one, semantic retrieval stays disabled and the
pipeline falls back to keyword matching.

Examples:
  mkb index             # Show index state
  mkb index --rebuild   # Re-embed the catalog`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "Drop and rebuild the index from the current catalog")
	indexCmd.Flags().StringVar(&indexFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	logger := newLogger(indexFormat)

	baseDir := mustGetBaseDir()
	rt := mustGetRuntime(baseDir, logger)

	if rt.index == nil {
		fmt.Println("Semantic index: not configured (no AI endpoint)")
		return nil
	}

	if indexRebuild {
		timeout := time.Duration(rt.cfg.Timeouts.IndexBuildMs) * time.Millisecond
		ctx, cancel := context.WithTimeout(newContext(), timeout)
		defer cancel()

		fmt.Println("Rebuilding semantic index...")
		start := time.Now()
		if err := rt.assembler.RebuildIndex(ctx); err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}
		fmt.Printf("Rebuilt in %dms\n\n", time.Since(start).Milliseconds())
	}

	stats := rt.index.Stats()
	cliResponse := &IndexStatusCLI{
		Ready:     stats.Ready,
		Building:  stats.Building,
		Chunks:    stats.Chunks,
		Stale:     stats.Stale,
		LastError: stats.LastError,
	}
	if !stats.BuiltAt.IsZero() {
		cliResponse.BuiltAt = stats.BuiltAt.Format(time.RFC3339)
	}

	output, err := FormatResponse(cliResponse, OutputFormat(indexFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
	return nil
}

func (r *IndexStatusCLI) renderHuman() string {
	state := "not built"
	switch {
	case r.Building:
		state = "building"
	case r.Ready && r.Stale:
		state = "ready (stale)"
	case r.Ready:
		state = "ready"
	}
	out := fmt.Sprintf("Semantic index: %s\nChunks: %d\n", state, r.Chunks)
	if r.BuiltAt != "" {
		out += fmt.Sprintf("Built at: %s\n", r.BuiltAt)
	}
	if r.LastError != "" {
		out += fmt.Sprintf("Last error: %s\n", r.LastError)
	}
	return out
}
