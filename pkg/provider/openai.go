package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/papercomputeco/chatrelay/pkg/completion"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions API through
// the official OpenAI Go SDK.
type OpenAIProvider struct {
	client    openai.Client
	name      string
	maxTokens int
}

// NewOpenAIProvider creates a provider reporting itself as name.
//
// Returns an error if the API key or the base URL is missing.
func NewOpenAIProvider(name, baseURL, apiKey string, maxTokens int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingAPIKey)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingBaseURL)
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)

	return &OpenAIProvider{
		client:    client,
		name:      name,
		maxTokens: maxTokens,
	}, nil
}

// Name implements completion.Provider.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Complete implements completion.Provider with one non-streaming request.
// Every returned choice becomes a candidate, in choice order.
func (p *OpenAIProvider) Complete(ctx context.Context, req completion.Request) (*completion.Completion, error) {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(req.Turns),
		Model:    openai.ChatModel(req.Model),
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(p.maxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	candidates := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		candidates = append(candidates, choice.Message.Content)
	}

	return &completion.Completion{
		Model:      resp.Model,
		Candidates: candidates,
	}, nil
}

// ConvertToOpenAIMessages maps turns to OpenAI message params, preserving order.
func ConvertToOpenAIMessages(turns llm.Conversation) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(turns))
	for i, t := range turns {
		switch t.Role {
		case llm.RoleSystem:
			result[i] = openai.SystemMessage(t.Content)
		case llm.RoleAssistant:
			result[i] = openai.AssistantMessage(t.Content)
		default:
			result[i] = openai.UserMessage(t.Content)
		}
	}
	return result
}
