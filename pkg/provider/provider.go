// Package provider implements completion.Provider for the hosted and local
// LLM services chatrelay can talk to.
//
// Every provider performs exactly one request per Complete call: SDK-level
// retries are disabled so a failed call surfaces to the caller unchanged.
//
// # Providers
//
//   - OpenAIProvider: any OpenAI-compatible chat completions API (Groq,
//     OpenAI, OpenRouter, Together, DeepSeek, or a custom base URL)
//   - AnthropicProvider: the Anthropic Messages API
//   - OllamaProvider: a local Ollama server
//   - EchoProvider: answers "You said: <message>" without any network call
//
// # Usage
//
//	p, err := provider.New(provider.Config{
//	    Name:   "groq",
//	    APIKey: os.Getenv("GROQ_API_KEY"),
//	})
//	if err != nil {
//	    // handle error
//	}
//	invoker := completion.NewInvoker(p, "openai/gpt-oss-20b", 0)
package provider

import (
	"errors"
	"fmt"
	"sort"

	"github.com/papercomputeco/chatrelay/pkg/completion"
)

// Kind selects the client implementation behind a provider name.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindOllama    Kind = "ollama"
	KindEcho      Kind = "echo"
)

// Preset describes a named provider.
type Preset struct {
	Kind    Kind
	BaseURL string

	// APIKeyEnv is the conventional environment variable holding the
	// provider's credential, if any.
	APIKeyEnv string

	// DefaultModel is used when no model is configured.
	DefaultModel string
}

// KnownProviders maps provider names to their client kind and default base URL.
// "custom" is an OpenAI-compatible endpoint whose base URL must be configured.
var KnownProviders = map[string]Preset{
	"groq":       {Kind: KindOpenAI, BaseURL: "https://api.groq.com/openai/v1", APIKeyEnv: "GROQ_API_KEY", DefaultModel: "openai/gpt-oss-20b"},
	"openai":     {Kind: KindOpenAI, BaseURL: "https://api.openai.com/v1", APIKeyEnv: "OPENAI_API_KEY", DefaultModel: "gpt-4o-mini"},
	"openrouter": {Kind: KindOpenAI, BaseURL: "https://openrouter.ai/api/v1", APIKeyEnv: "OPENROUTER_API_KEY", DefaultModel: "openai/gpt-oss-20b"},
	"together":   {Kind: KindOpenAI, BaseURL: "https://api.together.xyz/v1", APIKeyEnv: "TOGETHER_API_KEY", DefaultModel: "openai/gpt-oss-20b"},
	"deepseek":   {Kind: KindOpenAI, BaseURL: "https://api.deepseek.com/v1", APIKeyEnv: "DEEPSEEK_API_KEY", DefaultModel: "deepseek-chat"},
	"custom":     {Kind: KindOpenAI},
	"anthropic":  {Kind: KindAnthropic, BaseURL: "https://api.anthropic.com", APIKeyEnv: "ANTHROPIC_API_KEY", DefaultModel: "claude-3-5-haiku-latest"},
	"ollama":     {Kind: KindOllama, BaseURL: "http://localhost:11434", DefaultModel: "llama3.1"},
	"echo":       {Kind: KindEcho, DefaultModel: "echo"},
}

var (
	// ErrUnknownProvider is returned for names missing from KnownProviders.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingAPIKey is returned when a hosted provider has no credential.
	ErrMissingAPIKey = errors.New("API key is required")

	// ErrMissingBaseURL is returned when the custom provider has no base URL.
	ErrMissingBaseURL = errors.New("base URL is required")
)

// Config holds provider construction settings.
type Config struct {
	Name      string // key of KnownProviders
	BaseURL   string // overrides the preset base URL
	APIKey    string // unused for ollama and echo
	MaxTokens int    // upper bound on generated tokens, 0 for the provider default
}

// New builds the provider named by cfg.Name.
func New(cfg Config) (completion.Provider, error) {
	preset, ok := KnownProviders[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownProvider, cfg.Name, Names())
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = preset.BaseURL
	}

	switch preset.Kind {
	case KindOpenAI:
		return NewOpenAIProvider(cfg.Name, baseURL, cfg.APIKey, cfg.MaxTokens)
	case KindAnthropic:
		return NewAnthropicProvider(baseURL, cfg.APIKey, cfg.MaxTokens)
	case KindOllama:
		return NewOllamaProvider(baseURL)
	case KindEcho:
		return NewEchoProvider(), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, cfg.Name)
	}
}

// DefaultModel returns the preset model for name, or "" when the provider
// has none (custom) or is unknown.
func DefaultModel(name string) string {
	return KnownProviders[name].DefaultModel
}

// RequiresAPIKey reports whether the named provider needs a credential.
func RequiresAPIKey(name string) bool {
	preset, ok := KnownProviders[name]
	if !ok {
		return false
	}
	return preset.Kind == KindOpenAI || preset.Kind == KindAnthropic
}

// Names returns the known provider names in sorted order.
func Names() []string {
	names := make([]string, 0, len(KnownProviders))
	for name := range KnownProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
