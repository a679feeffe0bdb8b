package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mkb/internal/assembler"
	"mkb/internal/funnel"
	"mkb/internal/intent"
)

var (
	contextFullCatalog bool
	contextHistoryLen  int
	contextFormat      string
)

var contextCmd = &cobra.Command{
	Use:   "context <query>",
	Short: "Assemble a context block for a query",
	Long: `Assemble the grounding block a chat completion would receive for a
customer query: resolved intent, funnel stage, catalog sections, and
semantic matches, with per-source freshness.

Examples:
  mkb context "I need a CRM"
  mkb context "something for accounting" --full-catalog
  mkb context "tell me more about it" --history 4`,
	Args: cobra.ExactArgs(1),
	Run:  runContext,
}

func init() {
	contextCmd.Flags().BoolVar(&contextFullCatalog, "full-catalog", false, "Include the complete product enumeration in the block")
	contextCmd.Flags().IntVar(&contextHistoryLen, "history", 0, "Conversation length to classify the funnel stage against")
	contextCmd.Flags().StringVar(&contextFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) {
	start := time.Now()
	logger := newLogger(contextFormat)
	query := args[0]

	baseDir := mustGetBaseDir()
	rt := mustGetRuntime(baseDir, logger)
	ctx := newContext()

	// Assemble the block through the shared pipeline
	res := rt.assembler.Assemble(ctx, query, contextHistoryLen, assembler.Options{
		IncludeFullCatalog: contextFullCatalog,
	})

	// Convert to CLI response format
	cliResponse := convertContextResponse(query, res)

	// Format and output
	output, err := FormatResponse(cliResponse, OutputFormat(contextFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)

	duration := time.Since(start).Milliseconds()
	if contextFormat == "human" {
		fmt.Printf("\n(Assembly took %dms)\n", duration)
	}
}

// ContextResponseCLI contains one assembled block for CLI output
type ContextResponseCLI struct {
	Query    string                   `json:"query"`
	Block    string                   `json:"block"`
	Intent   intent.Intent            `json:"intent"`
	Stage    funnel.State             `json:"stage"`
	Sources  []assembler.SourceReport `json:"sources"`
	Cache    assembler.CacheReport    `json:"cache"`
	Warnings []string                 `json:"warnings,omitempty"`
}

func convertContextResponse(query string, res assembler.Result) *ContextResponseCLI {
	return &ContextResponseCLI{
		Query:    query,
		Block:    res.Block,
		Intent:   res.Intent,
		Stage:    res.Stage,
		Sources:  res.Trace.Sources,
		Cache:    res.Trace.Cache,
		Warnings: res.Trace.Warnings,
	}
}

func (r *ContextResponseCLI) renderHuman() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Query: %s\n", r.Query))

	if r.Intent.Resolved() {
		var parts []string
		if r.Intent.CategoryID != "" {
			parts = append(parts, fmt.Sprintf("category %s (%s)", r.Intent.CategoryName, r.Intent.CategoryID))
		}
		if r.Intent.OEMID != "" {
			parts = append(parts, fmt.Sprintf("vendor %s (%s)", r.Intent.OEMName, r.Intent.OEMID))
		}
		b.WriteString(fmt.Sprintf("Intent: %s, confidence %.2f\n", strings.Join(parts, ", "), r.Intent.Confidence))
	} else {
		b.WriteString("Intent: unresolved\n")
	}
	b.WriteString(fmt.Sprintf("Stage: %s\n", r.Stage.Stage))

	b.WriteString("Sources:\n")
	for _, s := range r.Sources {
		line := fmt.Sprintf("  %-10s %s", s.Name, s.Status)
		if s.Age != "" {
			line += fmt.Sprintf(" (age %s)", s.Age)
		}
		if s.Error != "" {
			line += "  ! " + s.Error
		}
		b.WriteString(line + "\n")
	}
	if r.Cache.Hit {
		b.WriteString(fmt.Sprintf("Block cache: hit (age %s)\n", r.Cache.Age))
	} else {
		b.WriteString("Block cache: miss\n")
	}

	for _, w := range r.Warnings {
		b.WriteString("Warning: " + w + "\n")
	}

	b.WriteString(strings.Repeat("-", 60) + "\n")
	b.WriteString(r.Block)
	if !strings.HasSuffix(r.Block, "\n") {
		b.WriteString("\n")
	}

	return b.String()
}
