package chatcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/cmd/chatrelay/bootstrap"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/transport"
	"github.com/papercomputeco/chatrelay/pkg/tui"
)

const chatLongDesc string = `Chat in the terminal.

By default every turn is posted to a running chatrelay server
(see "chatrelay serve"), which calls the LLM provider and logs the
turn. With --direct the provider is called from this process and
turns are logged from here.

When standard input is not a terminal, each input line is sent as
one message and each reply is printed on its own line.

Examples:
  chatrelay chat
  chatrelay chat --api http://192.168.1.42:8000/chat
  chatrelay chat --direct
  chatrelay chat --direct --provider echo
  echo "Hello!" | chatrelay chat`

const chatShortDesc string = "Chat with the LLM in the terminal"

type chatCommander struct {
	flags      bootstrap.Flags
	apiURL     string
	direct     bool
	logFile    string
	noMarkdown bool
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	bootstrap.AddConfigFlags(cmd, &cmder.flags)
	bootstrap.AddProviderFlags(cmd, &cmder.flags)
	cmd.Flags().StringVar(&cmder.apiURL, "api", "", "chatrelay server chat endpoint (default http://localhost:8000/chat)")
	cmd.Flags().BoolVar(&cmder.direct, "direct", false, "Call the provider directly instead of a chatrelay server")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Write logs to this file (default: discard)")
	cmd.Flags().BoolVar(&cmder.noMarkdown, "no-markdown", false, "Show replies as plain text")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return err
	}

	log, closeLog, err := logger.NewFileLogger(c.logFile, cfg.Debug)
	if err != nil {
		return fmt.Errorf("could not open log file: %w", err)
	}
	defer closeLog()
	defer log.Sync()

	var responder tui.Responder
	var description string

	if c.direct {
		stack, err := bootstrap.Build(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := stack.Close(closeCtx); err != nil {
				log.Warn("chat log not fully flushed", zap.Error(err))
			}
		}()

		responder = stack.Service
		description = fmt.Sprintf("terminal → %s (%s)", cfg.Provider.Name, cfg.Provider.Model)
	} else {
		endpoint := cfg.Client.APIURL
		if c.apiURL != "" {
			endpoint = c.apiURL
		}
		client, err := transport.NewClient(endpoint, cfg.Client.Timeout)
		if err != nil {
			return err
		}

		responder = client
		description = "terminal → chatrelay API → LLM provider"
		log.Info("chatting through server", zap.String("endpoint", client.Endpoint()))
	}

	in := cmd.InOrStdin()
	if !isTerminal(in) {
		return tui.RunLines(ctx, in, cmd.OutOrStdout(), responder)
	}

	return tui.Run(tui.Options{
		Title:         tui.DefaultTitle,
		Description:   description,
		Responder:     responder,
		MarkdownStyle: c.markdownStyle(),
	})
}

func (c *chatCommander) markdownStyle() string {
	if c.noMarkdown {
		return ""
	}
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
