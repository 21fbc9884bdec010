// Package bootstrap turns command-line flags and configuration into the
// running pieces shared by chatrelay's subcommands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/chatlog"
	"github.com/papercomputeco/chatrelay/pkg/completion"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/observability"
	"github.com/papercomputeco/chatrelay/pkg/provider"
)

// Flags are the options every subcommand understands.
type Flags struct {
	ConfigPath string
	Debug      bool

	Provider string
	Model    string
	LogSink  string
}

// AddConfigFlags registers --config and --debug on cmd.
func AddConfigFlags(cmd *cobra.Command, f *Flags) {
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "", "Path to a TOML config file (default: ./chatrelay.toml if present)")
	cmd.Flags().BoolVar(&f.Debug, "debug", false, "Enable debug logging")
}

// AddProviderFlags registers the completion provider overrides on cmd.
func AddProviderFlags(cmd *cobra.Command, f *Flags) {
	cmd.Flags().StringVarP(&f.Provider, "provider", "p", "", fmt.Sprintf("Completion provider %v", provider.Names()))
	cmd.Flags().StringVarP(&f.Model, "model", "m", "", "Model identifier sent with every completion")
	cmd.Flags().StringVar(&f.LogSink, "log-sink", "", "Chat log store: none, sqlite or supabase")
}

// Load reads the configuration and applies flag overrides.
func (f *Flags) Load() (*config.Config, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}

	if f.Debug {
		cfg.Debug = true
	}
	if f.Provider != "" && f.Provider != cfg.Provider.Name {
		// Credentials, base URL and model loaded for the configured provider
		// do not carry over to another one.
		cfg.Provider.Name = f.Provider
		cfg.Provider.BaseURL = ""
		cfg.Provider.APIKey = config.ProviderKeyFromEnv(f.Provider)
		cfg.Provider.Model = provider.DefaultModel(f.Provider)
	}
	if f.Model != "" {
		cfg.Provider.Model = f.Model
	}
	if f.LogSink != "" {
		cfg.Log.Sink = f.LogSink
	}

	return cfg, nil
}

// Stack is a ready-to-use chat service and the resources behind it.
type Stack struct {
	Service    *chat.Service
	Invoker    *completion.Invoker
	Dispatcher *chatlog.Dispatcher
	Tracing    *observability.TracerProvider

	logger *zap.Logger
}

// Build validates cfg and wires provider, invoker, log sink, dispatcher and
// tracing into a chat service.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tp, err := observability.InitTracing(ctx, cfg.Tracing.Observability())
	if err != nil {
		return nil, fmt.Errorf("could not initialize tracing: %w", err)
	}

	p, err := provider.New(cfg.Provider.Factory())
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("could not create provider: %w", err)
	}

	sink, err := cfg.OpenSink()
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("could not open %s chat log: %w", cfg.Log.Sink, err)
	}

	invoker := completion.NewInvoker(p, cfg.Provider.Model, cfg.Server.CompletionTimeout)
	dispatcher := chatlog.NewDispatcher(sink, cfg.Log.Dispatcher(), logger)

	logger.Info("chat stack ready",
		zap.String("provider", p.Name()),
		zap.String("model", cfg.Provider.Model),
		zap.String("log_sink", sink.Name()),
		zap.Bool("tracing", cfg.Tracing.OTLPEndpoint != ""),
	)

	return &Stack{
		Service:    chat.NewService(invoker, dispatcher, logger),
		Invoker:    invoker,
		Dispatcher: dispatcher,
		Tracing:    tp,
		logger:     logger,
	}, nil
}

// Close drains the chat log and flushes traces.
func (s *Stack) Close(ctx context.Context) error {
	return errors.Join(
		s.Dispatcher.Close(ctx),
		s.Tracing.Shutdown(ctx),
	)
}
