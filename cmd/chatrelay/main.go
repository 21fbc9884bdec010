package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/ask"
	chatcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/chat"
	configcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/config"
	logcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/log"
	mcpcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/mcp"
	servecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve"
)

const rootLongDesc string = `chatrelay connects a chat interface to a hosted LLM.

Run "chatrelay serve" for the HTTP backend, then "chatrelay chat" to
talk to it from the terminal. "chatrelay chat --direct" skips the
backend and calls the provider from the terminal process.`

func main() {
	root := &cobra.Command{
		Use:          "chatrelay",
		Short:        "Chat with an LLM through an optional HTTP backend",
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	root.AddCommand(
		servecmder.NewServeCmd(),
		chatcmder.NewChatCmd(),
		askcmder.NewAskCmd(),
		mcpcmder.NewMCPCmd(),
		logcmder.NewLogCmd(),
		configcmder.NewConfigCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
