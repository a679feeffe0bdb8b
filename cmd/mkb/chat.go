package main

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"mkb/internal/logging"
	"mkb/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive sales chat",
	Long: `Start an interactive chat over the in-process pipeline. Every turn
assembles a fresh context block and answers through the configured
completion service, with the funnel stage shown as the conversation
progresses.

Requires an AI endpoint (ai.endpoint in .mkb/config.json or
MKB_AI_ENDPOINT).`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal, so component logs are discarded.
	logger := logging.NewLogger(logging.Config{
		Format: logging.HumanFormat,
		Level:  logging.ErrorLevel,
		Output: io.Discard,
	})

	baseDir := mustGetBaseDir()
	rt := mustGetRuntime(baseDir, logger)

	if !rt.pipeline.Configured() {
		return fmt.Errorf("no completion service configured: set ai.endpoint in .mkb/config.json or export MKB_AI_ENDPOINT")
	}

	timeout := time.Duration(rt.cfg.Timeouts.CompletionMs) * time.Millisecond
	m := tui.New(rt.pipeline, timeout)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	return nil
}
