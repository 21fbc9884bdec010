package servecmder

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/cmd/chatrelay/bootstrap"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

const serveLongDesc string = `Run the chat HTTP backend.

POST /chat accepts {"message": "...", "history": [...]} and answers
{"reply": "..."}. Every successful turn is appended to the configured
chat log in the background. The same flow is exposed as an MCP tool
at /mcp.

Credentials come from the environment: GROQ_API_KEY (or the
provider's own variable, or CHATRELAY_PROVIDER_API_KEY), and
SUPABASE_URL / SUPABASE_KEY for the supabase log sink.

Examples:
  chatrelay serve
  chatrelay serve --listen :9000 --provider anthropic --model claude-sonnet-4-5
  chatrelay serve --provider echo --log-sink none`

const serveShortDesc string = "Run the chat HTTP backend"

type serveCommander struct {
	flags      bootstrap.Flags
	listenAddr string
	jsonLogs   bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	bootstrap.AddConfigFlags(cmd, &cmder.flags)
	bootstrap.AddProviderFlags(cmd, &cmder.flags)
	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", "", "Address to listen on (default :8000)")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write logs as JSON lines")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return err
	}
	if c.listenAddr != "" {
		cfg.Server.ListenAddr = c.listenAddr
	}

	log := logger.NewLogger(logger.Options{Debug: cfg.Debug, JSON: c.jsonLogs, Output: cmd.ErrOrStderr()})
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

	srv, err := api.NewServer(api.Config{
		ListenAddr: cfg.Server.ListenAddr,
		DisableMCP: cfg.Server.DisableMCP,
	}, stack.Service, log)
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", cfg.Server.ListenAddr, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "chatrelay listening on %s (provider %s, model %s)\n",
		listener.Addr().String(), cfg.Provider.Name, cfg.Provider.Model)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.RunWithListener(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down chat server")
		if err := srv.ShutdownWithTimeout(10 * time.Second); err != nil {
			return fmt.Errorf("could not shut down server: %w", err)
		}
		return nil
	}
}
