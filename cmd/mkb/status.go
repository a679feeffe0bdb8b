package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mkb/internal/cache"
	"mkb/internal/version"
)

var (
	statusFormat string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show MKB pipeline status",
	Long:  "Display the current state of the source caches, the semantic index, the completion circuit, and active sessions",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(statusFormat)

	baseDir := mustGetBaseDir()
	rt := mustGetRuntime(baseDir, logger)
	ctx := newContext()

	status := rt.assembler.Status()

	// Convert to CLI response format
	cliResponse := &StatusResponseCLI{
		MkbVersion: version.Version,
		Blocks:     tierStatus("blocks", status.Blocks),
		Sessions:   rt.sessions.Len(),
		Healthy:    rt.assembler.Ready(ctx),
	}
	for _, tier := range []string{"products", "signals"} {
		cliResponse.Sources = append(cliResponse.Sources, tierStatus(tier, status.Catalog[tier]))
	}
	cliResponse.Sources = append(cliResponse.Sources, tierStatus("taxonomy", status.Taxonomy))
	if status.Content != nil {
		cliResponse.Sources = append(cliResponse.Sources, tierStatus("content", *status.Content))
	}
	if status.Index != nil {
		cliResponse.Index = &IndexStatusCLI{
			Ready:     status.Index.Ready,
			Building:  status.Index.Building,
			Chunks:    status.Index.Chunks,
			Stale:     status.Index.Stale,
			LastError: status.Index.LastError,
		}
		if !status.Index.BuiltAt.IsZero() {
			cliResponse.Index.BuiltAt = status.Index.BuiltAt.Format(time.RFC3339)
		}
	}
	breaker := rt.pipeline.CircuitStats()
	cliResponse.Completion = &CompletionStatusCLI{
		State:    breaker.State,
		Failures: breaker.Failures,
	}

	// Format and output
	output, err := FormatResponse(cliResponse, OutputFormat(statusFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)

	duration := time.Since(start).Milliseconds()
	if statusFormat == "human" {
		fmt.Printf("\n(Status took %dms)\n", duration)
	}
}

// StatusResponseCLI contains the complete pipeline status for CLI output
type StatusResponseCLI struct {
	MkbVersion string               `json:"mkbVersion"`
	Sources    []TierStatusCLI      `json:"sources"`
	Blocks     TierStatusCLI        `json:"blocks"`
	Index      *IndexStatusCLI      `json:"index,omitempty"`
	Completion *CompletionStatusCLI `json:"completion,omitempty"`
	Sessions   int                  `json:"sessions"`
	Healthy    bool                 `json:"healthy"`
}

// TierStatusCLI describes one cache tier
type TierStatusCLI struct {
	Tier        string `json:"tier"`
	Filled      bool   `json:"filled"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	StaleServes int64  `json:"staleServes"`
	Errors      int64  `json:"errors"`
	LastFill    string `json:"lastFill,omitempty"`
}

// IndexStatusCLI describes the semantic index state
type IndexStatusCLI struct {
	Ready     bool   `json:"ready"`
	Building  bool   `json:"building"`
	Chunks    int    `json:"chunks"`
	Stale     bool   `json:"stale"`
	BuiltAt   string `json:"builtAt,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// CompletionStatusCLI describes the completion circuit breaker
type CompletionStatusCLI struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

func tierStatus(tier string, stats cache.Stats) TierStatusCLI {
	t := TierStatusCLI{
		Tier:        tier,
		Filled:      stats.Filled,
		Hits:        stats.Hits,
		Misses:      stats.Misses,
		StaleServes: stats.StaleServes,
		Errors:      stats.Errors,
	}
	if !stats.LastFill.IsZero() {
		t.LastFill = stats.LastFill.Format(time.RFC3339)
	}
	return t
}

func (r *StatusResponseCLI) renderHuman() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("MKB v%s\n", r.MkbVersion))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if r.Healthy {
		b.WriteString("Pipeline: healthy\n\n")
	} else {
		b.WriteString("Pipeline: NOT READY (catalog source unreachable)\n\n")
	}

	b.WriteString("Sources:\n")
	for _, s := range r.Sources {
		b.WriteString("  " + renderTier(s))
	}
	b.WriteString("\nBlocks:\n")
	b.WriteString("  " + renderTier(r.Blocks))

	if r.Index != nil {
		b.WriteString("\nSemantic index:\n")
		state := "not built"
		switch {
		case r.Index.Building:
			state = "building"
		case r.Index.Ready && r.Index.Stale:
			state = "ready (stale)"
		case r.Index.Ready:
			state = "ready"
		}
		b.WriteString(fmt.Sprintf("  %s, %d chunks\n", state, r.Index.Chunks))
		if r.Index.BuiltAt != "" {
			b.WriteString(fmt.Sprintf("  built at %s\n", r.Index.BuiltAt))
		}
		if r.Index.LastError != "" {
			b.WriteString(fmt.Sprintf("  ! last error: %s\n", r.Index.LastError))
		}
	} else {
		b.WriteString("\nSemantic index: not configured\n")
	}

	if r.Completion != nil {
		b.WriteString(fmt.Sprintf("\nCompletion circuit: %s", r.Completion.State))
		if r.Completion.Failures > 0 {
			b.WriteString(fmt.Sprintf(" (%d recent failures)", r.Completion.Failures))
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("\nActive sessions: %d\n", r.Sessions))

	return b.String()
}

func renderTier(t TierStatusCLI) string {
	fill := "cold"
	if t.Filled {
		fill = "warm"
	}
	line := fmt.Sprintf("%-10s %s  hits=%d misses=%d stale=%d errors=%d",
		t.Tier, fill, t.Hits, t.Misses, t.StaleServes, t.Errors)
	if t.LastFill != "" {
		line += "  filled " + t.LastFill
	}
	return line + "\n"
}
