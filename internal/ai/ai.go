// Package ai holds the completion and embedding service clients. Both
// are small interfaces so the pipeline runs against fakes in tests and
// degrades cleanly when no service is configured.
package ai

import "context"

// Message roles understood by the completion service.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer generates a reply from a system prompt and a conversation.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// Embedder turns a batch of texts into one vector per text, in input
// order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}
