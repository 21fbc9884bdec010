// Package completion turns a conversation plus one new user message into a
// single synchronous call against a text-completion provider.
package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/observability"
)

// DefaultTimeout bounds a provider call when no timeout is configured.
const DefaultTimeout = 2 * time.Minute

var (
	// ErrEmptyMessage is returned when the new user message is blank.
	ErrEmptyMessage = errors.New("message must not be empty")

	// ErrNoCandidates is returned when the provider answers without any candidate.
	ErrNoCandidates = errors.New("provider returned no candidates")
)

// Request is what a provider receives: the full ordered turn sequence and
// the model to run it against.
type Request struct {
	Model string
	Turns llm.Conversation
}

// Completion is a provider answer. Candidates are in the provider's order.
type Completion struct {
	Model      string
	Candidates []string
}

// Provider is a remote text-completion service. Implementations must be
// safe for concurrent use.
type Provider interface {
	// Complete performs exactly one call to the service.
	Complete(ctx context.Context, req Request) (*Completion, error)

	// Name returns the provider identifier (e.g. "groq", "anthropic").
	Name() string
}

// ProviderError wraps any failure of the provider call.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Invoker appends the new user turn to a history and asks the provider for
// the reply.
type Invoker struct {
	provider Provider
	model    string
	timeout  time.Duration
}

// NewInvoker creates an invoker bound to one provider and model. A zero or
// negative timeout selects DefaultTimeout.
func NewInvoker(provider Provider, model string, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{
		provider: provider,
		model:    model,
		timeout:  timeout,
	}
}

// Model returns the fixed model identifier sent with every call.
func (i *Invoker) Model() string {
	return i.model
}

// Provider returns the provider name.
func (i *Invoker) Provider() string {
	return i.provider.Name()
}

// Invoke submits history followed by {user, message} and returns the text
// of the first candidate. The history slice is not modified.
func (i *Invoker) Invoke(ctx context.Context, history llm.Conversation, message string) (string, error) {
	if message == "" {
		return "", ErrEmptyMessage
	}

	turns := llm.Normalize(history).With(llm.UserTurn(message))

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	ctx, span := observability.StartCompletionSpan(ctx, i.provider.Name(), i.model, len(turns))
	defer span.End()

	resp, err := i.provider.Complete(ctx, Request{Model: i.model, Turns: turns})
	if err == nil && (resp == nil || len(resp.Candidates) == 0) {
		err = ErrNoCandidates
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		err = &ProviderError{Provider: i.provider.Name(), Err: err}
		observability.RecordError(span, err)
		return "", err
	}

	observability.RecordError(span, nil)
	return resp.Candidates[0], nil
}
