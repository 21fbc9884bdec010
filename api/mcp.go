package api

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// ToolName is the MCP tool that runs one chat turn.
const ToolName = "chat"

// ChatInput is the argument object of the chat tool.
type ChatInput struct {
	Message string     `json:"message" jsonschema:"the new user message"`
	History []llm.Turn `json:"history,omitempty" jsonschema:"earlier turns, oldest first, each with role user or assistant"`
}

// ChatOutput is the structured result of the chat tool.
type ChatOutput struct {
	Reply string `json:"reply" jsonschema:"the assistant reply"`
}

// NewMCPServer exposes service as an MCP server with a single chat tool.
func NewMCPServer(service ChatService, logger *zap.Logger) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "chatrelay",
		Version: "v0.1.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolName,
		Description: "Send a message, with optional prior history, to the configured LLM and return its reply.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ChatInput) (*mcp.CallToolResult, ChatOutput, error) {
		resp, err := service.Reply(ctx, llm.ChatRequest{
			Message: in.Message,
			History: llm.Conversation(in.History),
		})
		if err != nil {
			status, body := errorResponse(err)
			logger.Warn("mcp chat tool failed", zap.Int("status", status), zap.Error(err))
			return nil, ChatOutput{}, errors.New(body.Error)
		}
		return nil, ChatOutput{Reply: resp.Reply}, nil
	})

	return server
}
