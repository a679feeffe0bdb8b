// Package chat runs the answer pipeline: assemble context for the
// user's message, then ask the completion service for a reply with
// that context as the system prompt.
package chat

import (
	"context"
	"strings"
	"time"

	"mkb/internal/ai"
	"mkb/internal/assembler"
	"mkb/internal/errors"
	"mkb/internal/funnel"
	"mkb/internal/logging"
)

// Reply is one answered turn. Context is always populated, even when
// the completion call failed, so callers can fall back to showing the
// assembled block.
type Reply struct {
	Text    string
	Context assembler.Result
}

// Circuit breaker defaults for the completion service.
const (
	breakerFailureThreshold = 5
	breakerSuccessThreshold = 2
	breakerCooloff          = 30 * time.Second
)

// Pipeline wires context assembly to the completion service.
type Pipeline struct {
	assembler *assembler.Assembler
	completer ai.Completer
	breaker   *CircuitBreaker
	logger    *logging.Logger
}

// New creates a pipeline. A nil completer is allowed; Answer then
// returns COMPLETION_FAILED alongside the assembled context.
func New(asm *assembler.Assembler, completer ai.Completer, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		assembler: asm,
		completer: completer,
		breaker:   NewCircuitBreaker(breakerFailureThreshold, breakerSuccessThreshold, breakerCooloff),
		logger:    logger,
	}
}

// Configured reports whether a completion service is wired in.
func (p *Pipeline) Configured() bool {
	return p.completer != nil
}

// Answer assembles context for message and asks the completion service
// for a reply. history is the prior conversation, oldest first; it
// feeds both stage classification and the completion call.
func (p *Pipeline) Answer(ctx context.Context, message string, history []ai.Message) (Reply, error) {
	res := p.assembler.Assemble(ctx, message, len(history), assembler.Options{})
	reply := Reply{Context: res}

	if p.completer == nil {
		return reply, errors.New(errors.CompletionFailed, "no completion service is configured", nil)
	}
	if !p.breaker.Allow() {
		return reply, errors.New(errors.CompletionFailed, "completion service circuit is open", nil)
	}

	messages := make([]ai.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: message})

	text, err := p.completer.Complete(ctx, SystemPrompt(res), messages)
	if err != nil {
		p.breaker.RecordFailure()
		p.logger.Error("completion failed", map[string]interface{}{
			"error":   err.Error(),
			"stage":   string(res.Stage.Stage),
			"circuit": p.breaker.State().String(),
		})
		return reply, errors.New(errors.CompletionFailed, "completion service request failed", err)
	}
	p.breaker.RecordSuccess()

	reply.Text = strings.TrimSpace(text)
	return reply, nil
}

// CircuitStats reports the completion circuit breaker state for the
// status surface.
func (p *Pipeline) CircuitStats() CircuitBreakerStats {
	return p.breaker.Stats()
}

// Assemble exposes plain context assembly for callers that want the
// block without a completion call.
func (p *Pipeline) Assemble(ctx context.Context, query string, historyLen int, opts assembler.Options) assembler.Result {
	return p.assembler.Assemble(ctx, query, historyLen, opts)
}

// SystemPrompt renders a completion system prompt from one assembled
// result: a short role preamble, the context block, then the stage
// directive the model should act on.
func SystemPrompt(res assembler.Result) string {
	var b strings.Builder
	b.WriteString("You are a sales assistant for a SaaS product marketplace. ")
	b.WriteString("Ground every answer in the context below. ")
	b.WriteString("If the context does not cover the question, say so instead of inventing products.\n\n")
	b.WriteString(res.Block)
	b.WriteString("\n\n")
	b.WriteString(stageDirective(res.Stage))
	return b.String()
}

// stageDirective turns the classified stage into instructions for the
// model.
func stageDirective(st funnel.State) string {
	g := st.Guide
	var b strings.Builder
	b.WriteString("Follow this stage guidance (")
	b.WriteString(string(st.Stage))
	b.WriteString("):\n")
	b.WriteString("Goal: ")
	b.WriteString(g.Goal)
	b.WriteString("\nNext action: ")
	b.WriteString(g.NextAction)
	if g.Instructions != "" {
		b.WriteString("\nInstructions: ")
		b.WriteString(g.Instructions)
	}
	return b.String()
}
