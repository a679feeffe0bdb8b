package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"mkb/internal/errors"
	"mkb/internal/logging"
	"mkb/internal/provider"
)

// ClientConfig configures the AI client. When APIVersion is set the
// client speaks the deployment-in-path dialect with an api-key header;
// otherwise it speaks plain OpenAI with a bearer token and a model
// field.
type ClientConfig struct {
	Endpoint             string
	APIKey               string
	APIVersion           string
	CompletionDeployment string
	EmbeddingDeployment  string
}

// Client talks to an OpenAI-compatible service over the shared
// provider transport. It implements Completer and Embedder.
type Client struct {
	transport *provider.Client
	cfg       ClientConfig
	logger    *logging.Logger
}

// NewClient creates an AI client. An unconfigured endpoint is allowed;
// calls then fail with a typed error and the pipeline degrades.
func NewClient(transport *provider.Client, cfg ClientConfig, logger *logging.Logger) *Client {
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{transport: transport, cfg: cfg, logger: logger}
}

// Configured reports whether an endpoint is set at all.
func (c *Client) Configured() bool {
	return c.cfg.Endpoint != ""
}

type completionRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the system prompt and conversation to the completion
// deployment and returns the generated text.
func (c *Client) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	if !c.Configured() {
		return "", errors.New(errors.CompletionFailed, "no AI endpoint configured", nil)
	}

	payload := completionRequest{Messages: make([]Message, 0, len(messages)+1)}
	if system != "" {
		payload.Messages = append(payload.Messages, Message{Role: RoleSystem, Content: system})
	}
	payload.Messages = append(payload.Messages, messages...)

	url := c.completionURL()
	if c.cfg.APIVersion == "" {
		payload.Model = c.cfg.CompletionDeployment
	}

	body, err := c.transport.PostJSON(ctx, url, c.authHeaders(), payload)
	if err != nil {
		return "", errors.New(errors.CompletionFailed, "completion request failed", err)
	}

	var out completionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", errors.New(errors.CompletionFailed, "completion response did not parse", err)
	}
	if out.Error != nil {
		return "", errors.New(errors.CompletionFailed, out.Error.Message, nil)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", errors.New(errors.CompletionFailed, "completion returned no choices", nil)
	}

	text := out.Choices[0].Message.Content
	c.logger.Debug("completion generated", map[string]interface{}{
		"messages": len(payload.Messages),
		"chars":    len(text),
	})
	return text, nil
}

type embeddingRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	// Bare single-vector shape some compatible servers answer with.
	Embedding []float64 `json:"embedding"`
}

// EmbedBatch embeds texts in one call. Vectors come back in input
// order; a response with fewer vectors than inputs is returned
// truncated so the caller can index the aligned prefix.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if !c.Configured() {
		return nil, errors.New(errors.EmbeddingsUnavailable, "no AI endpoint configured", nil)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	payload := embeddingRequest{Input: texts}
	url := c.embeddingURL()
	if c.cfg.APIVersion == "" {
		payload.Model = c.cfg.EmbeddingDeployment
	}

	body, err := c.transport.PostJSON(ctx, url, c.authHeaders(), payload)
	if err != nil {
		return nil, errors.New(errors.EmbeddingsUnavailable, "embedding request failed", err)
	}

	var out embeddingResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.New(errors.EmbeddingsUnavailable, "embedding response did not parse", err)
	}

	if len(out.Data) > 0 {
		// Index fields are authoritative when present; a stable sort
		// keeps document order when the server omits them.
		sort.SliceStable(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
		vectors := make([][]float64, 0, len(out.Data))
		for _, d := range out.Data {
			vectors = append(vectors, d.Embedding)
		}
		if len(vectors) > len(texts) {
			vectors = vectors[:len(texts)]
		}
		c.logger.Debug("embeddings generated", map[string]interface{}{
			"texts":   len(texts),
			"vectors": len(vectors),
		})
		return vectors, nil
	}

	if len(out.Embedding) > 0 {
		return [][]float64{out.Embedding}, nil
	}

	return nil, errors.New(errors.EmbeddingsUnavailable, "embedding response carried no vectors", nil)
}

func (c *Client) completionURL() string {
	if c.cfg.APIVersion != "" {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			c.cfg.Endpoint, c.cfg.CompletionDeployment, c.cfg.APIVersion)
	}
	return c.cfg.Endpoint + "/chat/completions"
}

func (c *Client) embeddingURL() string {
	if c.cfg.APIVersion != "" {
		return fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
			c.cfg.Endpoint, c.cfg.EmbeddingDeployment, c.cfg.APIVersion)
	}
	return c.cfg.Endpoint + "/embeddings"
}

func (c *Client) authHeaders() map[string]string {
	if c.cfg.APIKey == "" {
		return nil
	}
	if c.cfg.APIVersion != "" {
		return map[string]string{"api-key": c.cfg.APIKey}
	}
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}
