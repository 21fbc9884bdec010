// Package config loads chatrelay settings from an optional TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/pkg/chatlog"
	"github.com/papercomputeco/chatrelay/pkg/observability"
	"github.com/papercomputeco/chatrelay/pkg/provider"
)

const (
	// DefaultFileName is read from the working directory when no explicit
	// config path is given.
	DefaultFileName = "chatrelay.toml"

	// EnvPrefix prefixes every environment override, e.g.
	// CHATRELAY_PROVIDER_MODEL.
	EnvPrefix = "CHATRELAY"
)

// Log sink names.
const (
	SinkNone     = "none"
	SinkSQLite   = "sqlite"
	SinkSupabase = "supabase"
)

// Config holds all application configuration.
type Config struct {
	Debug    bool           `mapstructure:"debug"`
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Log      LogConfig      `mapstructure:"log"`
	Client   ClientConfig   `mapstructure:"client"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	CompletionTimeout time.Duration `mapstructure:"completion_timeout"`
	DisableMCP        bool          `mapstructure:"disable_mcp"`
}

type ProviderConfig struct {
	Name      string `mapstructure:"name"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// Factory returns the settings provider.New expects.
func (c ProviderConfig) Factory() provider.Config {
	return provider.Config{
		Name:      c.Name,
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey,
		MaxTokens: c.MaxTokens,
	}
}

type LogConfig struct {
	// Sink is one of none, sqlite or supabase.
	Sink         string        `mapstructure:"sink"`
	SQLitePath   string        `mapstructure:"sqlite_path"`
	SupabaseURL  string        `mapstructure:"supabase_url"`
	SupabaseKey  string        `mapstructure:"supabase_key"`
	Table        string        `mapstructure:"table"`
	QueueSize    int           `mapstructure:"queue_size"`
	Workers      int           `mapstructure:"workers"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Dispatcher returns the background writer settings.
func (c LogConfig) Dispatcher() chatlog.DispatcherConfig {
	return chatlog.DispatcherConfig{
		QueueSize:    c.QueueSize,
		Workers:      c.Workers,
		WriteTimeout: c.WriteTimeout,
	}
}

type ClientConfig struct {
	APIURL  string        `mapstructure:"api_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// Observability returns the settings observability.InitTracing expects.
func (c TracingConfig) Observability() *observability.TracingConfig {
	return &observability.TracingConfig{
		ServiceName:  c.ServiceName,
		OTLPEndpoint: c.OTLPEndpoint,
		SampleRate:   c.SampleRate,
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:        ":8000",
			CompletionTimeout: 2 * time.Minute,
		},
		Provider: ProviderConfig{
			Name:  "groq",
			Model: provider.DefaultModel("groq"),
		},
		Log: LogConfig{
			Sink:         SinkSQLite,
			SQLitePath:   "chatrelay.db",
			Table:        chatlog.DefaultTable,
			QueueSize:    256,
			Workers:      1,
			WriteTimeout: 10 * time.Second,
		},
		Client: ClientConfig{
			APIURL:  "http://localhost:8000/chat",
			Timeout: 5 * time.Minute,
		},
		Tracing: TracingConfig{
			ServiceName: "chatrelay",
			SampleRate:  1.0,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("debug", d.Debug)

	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.completion_timeout", d.Server.CompletionTimeout)
	v.SetDefault("server.disable_mcp", d.Server.DisableMCP)

	v.SetDefault("provider.name", d.Provider.Name)
	// An unset model follows the configured provider; see Load.
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.max_tokens", 0)

	v.SetDefault("log.sink", d.Log.Sink)
	v.SetDefault("log.sqlite_path", d.Log.SQLitePath)
	v.SetDefault("log.supabase_url", "")
	v.SetDefault("log.supabase_key", "")
	v.SetDefault("log.table", d.Log.Table)
	v.SetDefault("log.queue_size", d.Log.QueueSize)
	v.SetDefault("log.workers", d.Log.Workers)
	v.SetDefault("log.write_timeout", d.Log.WriteTimeout)

	v.SetDefault("client.api_url", d.Client.APIURL)
	v.SetDefault("client.timeout", d.Client.Timeout)

	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}

// Load reads configuration from path (or DefaultFileName in the working
// directory when path is empty and the file exists) and the environment.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by the hosted Supabase client libraries.
	if err := v.BindEnv("log.supabase_url", EnvPrefix+"_LOG_SUPABASE_URL", "SUPABASE_URL"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}
	if err := v.BindEnv("log.supabase_key", EnvPrefix+"_LOG_SUPABASE_KEY", "SUPABASE_KEY"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if _, err := os.Stat(DefaultFileName); err == nil {
		v.SetConfigFile(DefaultFileName)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = ProviderKeyFromEnv(cfg.Provider.Name)
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = provider.DefaultModel(cfg.Provider.Name)
	}

	return &cfg, nil
}

// ProviderKeyFromEnv returns CHATRELAY_PROVIDER_API_KEY if set, otherwise
// the provider's conventional variable (e.g. GROQ_API_KEY for groq).
func ProviderKeyFromEnv(name string) string {
	if key := os.Getenv(EnvPrefix + "_PROVIDER_API_KEY"); key != "" {
		return key
	}
	if preset, ok := provider.KnownProviders[name]; ok && preset.APIKeyEnv != "" {
		return os.Getenv(preset.APIKeyEnv)
	}
	return ""
}

// Validate checks everything a server needs: a usable provider and log sink.
func (c *Config) Validate() error {
	return errors.Join(c.ValidateProvider(), c.ValidateLog())
}

// ValidateProvider checks the provider section.
func (c *Config) ValidateProvider() error {
	var errs []error

	preset, ok := provider.KnownProviders[c.Provider.Name]
	switch {
	case !ok:
		errs = append(errs, fmt.Errorf("provider.name: %w %q (known: %s)",
			provider.ErrUnknownProvider, c.Provider.Name, strings.Join(provider.Names(), ", ")))
	case provider.RequiresAPIKey(c.Provider.Name) && c.Provider.APIKey == "":
		hint := EnvPrefix + "_PROVIDER_API_KEY"
		if preset.APIKeyEnv != "" {
			hint += " or " + preset.APIKeyEnv
		}
		errs = append(errs, fmt.Errorf("provider.api_key: %w for %s (set %s)",
			provider.ErrMissingAPIKey, c.Provider.Name, hint))
	case ok && preset.BaseURL == "" && preset.Kind != provider.KindEcho && c.Provider.BaseURL == "":
		errs = append(errs, fmt.Errorf("provider.base_url: %w for %s", provider.ErrMissingBaseURL, c.Provider.Name))
	}

	if c.Provider.Model == "" {
		errs = append(errs, errors.New("provider.model is required"))
	}
	if c.Provider.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("provider.max_tokens %d is negative", c.Provider.MaxTokens))
	}
	if c.Server.CompletionTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.completion_timeout %s is negative", c.Server.CompletionTimeout))
	}

	return errors.Join(errs...)
}

// ValidateLog checks the log section.
func (c *Config) ValidateLog() error {
	var errs []error

	switch c.Log.Sink {
	case SinkNone:
	case SinkSQLite:
		if c.Log.SQLitePath == "" {
			errs = append(errs, errors.New("log.sqlite_path is required for the sqlite sink"))
		}
	case SinkSupabase:
		if c.Log.SupabaseURL == "" {
			errs = append(errs, errors.New("log.supabase_url is required for the supabase sink (set SUPABASE_URL)"))
		}
		if c.Log.SupabaseKey == "" {
			errs = append(errs, errors.New("log.supabase_key is required for the supabase sink (set SUPABASE_KEY)"))
		}
	default:
		errs = append(errs, fmt.Errorf("log.sink %q must be one of %s, %s, %s", c.Log.Sink, SinkNone, SinkSQLite, SinkSupabase))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate %.2f is outside [0, 1]", c.Tracing.SampleRate))
	}

	return errors.Join(errs...)
}

// OpenSink builds the configured log sink.
func (c *Config) OpenSink() (chatlog.Sink, error) {
	switch c.Log.Sink {
	case SinkNone, "":
		return chatlog.NopSink{}, nil
	case SinkSQLite:
		return chatlog.NewSQLiteSink(c.Log.SQLitePath, c.Log.Table)
	case SinkSupabase:
		return chatlog.NewSupabaseSink(c.Log.SupabaseURL, c.Log.SupabaseKey, c.Log.Table)
	default:
		return nil, fmt.Errorf("unknown log sink %q", c.Log.Sink)
	}
}

// fileConfig is the on-disk shape written by WriteDefault. Credentials are
// left out so a generated file can be committed.
type fileConfig struct {
	Debug    bool         `toml:"debug"`
	Server   fileServer   `toml:"server"`
	Provider fileProvider `toml:"provider"`
	Log      fileLog      `toml:"log"`
	Client   fileClient   `toml:"client"`
	Tracing  fileTracing  `toml:"tracing"`
}

type fileServer struct {
	ListenAddr        string `toml:"listen_addr"`
	CompletionTimeout string `toml:"completion_timeout"`
	DisableMCP        bool   `toml:"disable_mcp"`
}

type fileProvider struct {
	Name      string `toml:"name"`
	Model     string `toml:"model"`
	BaseURL   string `toml:"base_url"`
	MaxTokens int    `toml:"max_tokens"`
}

type fileLog struct {
	Sink         string `toml:"sink"`
	SQLitePath   string `toml:"sqlite_path"`
	SupabaseURL  string `toml:"supabase_url"`
	Table        string `toml:"table"`
	QueueSize    int    `toml:"queue_size"`
	Workers      int    `toml:"workers"`
	WriteTimeout string `toml:"write_timeout"`
}

type fileClient struct {
	APIURL  string `toml:"api_url"`
	Timeout string `toml:"timeout"`
}

type fileTracing struct {
	OTLPEndpoint string  `toml:"otlp_endpoint"`
	ServiceName  string  `toml:"service_name"`
	SampleRate   float64 `toml:"sample_rate"`
}

func toFile(c *Config) fileConfig {
	return fileConfig{
		Debug: c.Debug,
		Server: fileServer{
			ListenAddr:        c.Server.ListenAddr,
			CompletionTimeout: c.Server.CompletionTimeout.String(),
			DisableMCP:        c.Server.DisableMCP,
		},
		Provider: fileProvider{
			Name:      c.Provider.Name,
			Model:     c.Provider.Model,
			BaseURL:   c.Provider.BaseURL,
			MaxTokens: c.Provider.MaxTokens,
		},
		Log: fileLog{
			Sink:         c.Log.Sink,
			SQLitePath:   c.Log.SQLitePath,
			SupabaseURL:  c.Log.SupabaseURL,
			Table:        c.Log.Table,
			QueueSize:    c.Log.QueueSize,
			Workers:      c.Log.Workers,
			WriteTimeout: c.Log.WriteTimeout.String(),
		},
		Client: fileClient{
			APIURL:  c.Client.APIURL,
			Timeout: c.Client.Timeout.String(),
		},
		Tracing: fileTracing{
			OTLPEndpoint: c.Tracing.OTLPEndpoint,
			ServiceName:  c.Tracing.ServiceName,
			SampleRate:   c.Tracing.SampleRate,
		},
	}
}

// ErrFileExists is returned by WriteDefault when path exists and force is
// not set.
var ErrFileExists = errors.New("config file already exists")

// WriteDefault writes the built-in configuration to path as TOML.
func WriteDefault(path string, force bool) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrFileExists, path)
		}
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "# chatrelay configuration. Credentials come from the environment:"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f, "# GROQ_API_KEY (or CHATRELAY_PROVIDER_API_KEY), SUPABASE_URL, SUPABASE_KEY."); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(f); err != nil {
		return err
	}

	if err := toml.NewEncoder(f).Encode(toFile(Default())); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return f.Close()
}
