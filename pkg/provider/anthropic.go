package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/papercomputeco/chatrelay/pkg/completion"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// defaultAnthropicMaxTokens is sent when no limit is configured; the
// Messages API requires one.
const defaultAnthropicMaxTokens = 4096

// AnthropicProvider implements completion.Provider with the Anthropic SDK.
type AnthropicProvider struct {
	client    anthropic.Client
	maxTokens int64
}

// NewAnthropicProvider creates an Anthropic provider. The API key is required.
func NewAnthropicProvider(baseURL, apiKey string, maxTokens int) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	if baseURL == "" {
		baseURL = KnownProviders["anthropic"].BaseURL
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)

	return &AnthropicProvider{
		client:    client,
		maxTokens: int64(maxTokens),
	}, nil
}

// Name implements completion.Provider.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete implements completion.Provider. The Messages API yields a single
// message; its text blocks are joined into one candidate.
func (p *AnthropicProvider) Complete(ctx context.Context, req completion.Request) (*completion.Completion, error) {
	messages, system := convertToAnthropicMessages(req.Turns)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: p.maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("messages: %w", err)
	}

	var text strings.Builder
	var sawText bool
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
			sawText = true
		}
	}

	out := &completion.Completion{Model: string(msg.Model)}
	if sawText {
		out.Candidates = []string{text.String()}
	}
	return out, nil
}

// convertToAnthropicMessages splits system turns into the separate system
// parameter and maps the rest in order.
func convertToAnthropicMessages(turns llm.Conversation) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(turns))

	for _, t := range turns {
		switch t.Role {
		case llm.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: t.Content})
		case llm.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		}
	}

	return messages, system
}
