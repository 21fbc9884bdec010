package provider

import (
	"context"

	"github.com/papercomputeco/chatrelay/pkg/completion"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// EchoProvider repeats the last user turn back. It needs no credentials and
// makes no network calls.
type EchoProvider struct{}

func NewEchoProvider() *EchoProvider {
	return &EchoProvider{}
}

func (p *EchoProvider) Name() string {
	return "echo"
}

func (p *EchoProvider) Complete(_ context.Context, req completion.Request) (*completion.Completion, error) {
	var last string
	for i := len(req.Turns) - 1; i >= 0; i-- {
		if req.Turns[i].Role == llm.RoleUser {
			last = req.Turns[i].Content
			break
		}
	}

	return &completion.Completion{
		Model:      req.Model,
		Candidates: []string{"You said: " + last},
	}, nil
}
