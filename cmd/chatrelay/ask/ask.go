package askcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/cmd/chatrelay/bootstrap"
	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/transport"
)

const askLongDesc string = `Send one message and print the reply.

The reply (or an "Error: ..." line) is always printed. The exit
status is non-zero when no reply was produced, so scripts can tell
a connection failure or HTTP error apart from a normal answer.

History is read from a JSON file holding an array of
{"role", "content"} objects or [user, assistant] pairs.

Examples:
  chatrelay ask "Hello!"
  chatrelay ask --history turns.json "What did I just say?"
  chatrelay ask --direct --provider echo "Hello!"`

const askShortDesc string = "Send one message and print the reply"

type askCommander struct {
	flags       bootstrap.Flags
	apiURL      string
	direct      bool
	historyPath string
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:          "ask <message>",
		Short:        askShortDesc,
		Long:         askLongDesc,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	bootstrap.AddConfigFlags(cmd, &cmder.flags)
	bootstrap.AddProviderFlags(cmd, &cmder.flags)
	cmd.Flags().StringVar(&cmder.apiURL, "api", "", "chatrelay server chat endpoint (default http://localhost:8000/chat)")
	cmd.Flags().BoolVar(&cmder.direct, "direct", false, "Call the provider directly instead of a chatrelay server")
	cmd.Flags().StringVar(&cmder.historyPath, "history", "", "JSON file with the preceding turns")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, message string) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return err
	}

	history, err := readHistory(c.historyPath)
	if err != nil {
		return err
	}

	if c.direct {
		return c.runDirect(ctx, cmd, cfg, history, message)
	}

	endpoint := cfg.Client.APIURL
	if c.apiURL != "" {
		endpoint = c.apiURL
	}
	client, err := transport.NewClient(endpoint, cfg.Client.Timeout)
	if err != nil {
		return err
	}

	res := client.Send(ctx, message, history)
	fmt.Fprintln(cmd.OutOrStdout(), res.Text())
	if !res.OK() {
		return fmt.Errorf("no reply (%s)", res.Kind)
	}
	return nil
}

func (c *askCommander) runDirect(ctx context.Context, cmd *cobra.Command, cfg *config.Config, history llm.Conversation, message string) error {
	// Logs would interleave with the reply, so they are only shown on request.
	log := zap.NewNop()
	if cfg.Debug {
		log = logger.NewLogger(logger.Options{Debug: true, Output: cmd.ErrOrStderr()})
	}

	stack, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = stack.Close(closeCtx)
	}()

	resp, err := stack.Service.Reply(ctx, llm.ChatRequest{Message: message, History: history})
	if err != nil {
		log.Error("chat turn failed", zap.Error(err))
		fmt.Fprintln(cmd.OutOrStdout(), chat.DisplayError(err))
		return fmt.Errorf("no reply (%s)", chat.ErrorMessage(err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Reply)
	return nil
}

func readHistory(path string) (llm.Conversation, error) {
	if path == "" {
		return llm.Conversation{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read history: %w", err)
	}

	var history llm.Conversation
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("could not parse history %s: %w", path, err)
	}
	return history, nil
}
