package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/papercomputeco/chatrelay/pkg/completion"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// OllamaProvider implements completion.Provider against a local Ollama server.
type OllamaProvider struct {
	client *api.Client
}

// NewOllamaProvider creates an Ollama provider. An empty baseURL selects
// http://localhost:11434.
func NewOllamaProvider(baseURL string) (*OllamaProvider, error) {
	if baseURL == "" {
		baseURL = KnownProviders["ollama"].BaseURL
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &OllamaProvider{
		client: api.NewClient(parsed, http.DefaultClient),
	}, nil
}

// Name implements completion.Provider.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Complete implements completion.Provider with streaming disabled, so the
// response callback fires once with the whole reply.
func (p *OllamaProvider) Complete(ctx context.Context, req completion.Request) (*completion.Completion, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: ConvertToOllamaMessages(req.Turns),
		Stream:   &stream,
	}

	out := &completion.Completion{Model: req.Model}
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		if resp.Model != "" {
			out.Model = resp.Model
		}
		out.Candidates = append(out.Candidates, resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	return out, nil
}

// ConvertToOllamaMessages maps turns to Ollama messages, preserving order.
func ConvertToOllamaMessages(turns llm.Conversation) []api.Message {
	result := make([]api.Message, len(turns))
	for i, t := range turns {
		result[i] = api.Message{
			Role:    string(t.Role),
			Content: t.Content,
		}
	}
	return result
}
