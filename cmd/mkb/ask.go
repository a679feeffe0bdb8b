package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	askShowContext bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a one-shot question",
	Long: `Assemble context for a question and answer it through the configured
completion service. The command runs a single turn with no session.

Examples:
  mkb ask "what do you have for invoicing?"
  mkb ask "is there a CRM that integrates with email?" --show-context`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askShowContext, "show-context", false, "Print the assembled context block before the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	logger := newLogger("human")
	question := args[0]

	baseDir := mustGetBaseDir()
	rt := mustGetRuntime(baseDir, logger)

	timeout := time.Duration(rt.cfg.Timeouts.CompletionMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(newContext(), timeout)
	defer cancel()

	reply, err := rt.pipeline.Answer(ctx, question, nil)
	if askShowContext {
		fmt.Println(reply.Context.Block)
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("completion failed: %w", err)
	}

	fmt.Println(reply.Text)

	for _, w := range reply.Context.Trace.Warnings {
		fmt.Fprintln(os.Stderr, "warning: "+w)
	}
	return nil
}
