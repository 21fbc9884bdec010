package mcpcmder

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/cmd/chatrelay/bootstrap"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

const mcpLongDesc string = `Serve the chat tool over MCP on standard input and output.

Lets an MCP client (an editor or agent) spawn chatrelay as a
subprocess and call the "chat" tool. Logs go to standard error
because standard output carries the protocol.

Example MCP client entry:
  {"command": "chatrelay", "args": ["mcp", "--provider", "groq"]}`

const mcpShortDesc string = "Serve the chat tool over MCP stdio"

type mcpCommander struct {
	flags bootstrap.Flags
}

func NewMCPCmd() *cobra.Command {
	cmder := &mcpCommander{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	bootstrap.AddConfigFlags(cmd, &cmder.flags)
	bootstrap.AddProviderFlags(cmd, &cmder.flags)

	return cmd
}

func (c *mcpCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return err
	}

	log := logger.NewLogger(logger.Options{Debug: cfg.Debug, JSON: true, Output: cmd.ErrOrStderr()})
	defer log.Sync()

	stack, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := stack.Close(closeCtx); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	server := api.NewMCPServer(stack.Service, log)
	log.Info("serving MCP over stdio")

	return server.Run(ctx, &mcp.StdioTransport{})
}
