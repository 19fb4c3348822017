package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dusk-indust/vlab/internal/completion"
	"github.com/dusk-indust/vlab/internal/config"
	"github.com/dusk-indust/vlab/internal/orchestrator"
	"github.com/dusk-indust/vlab/internal/project"
	"github.com/dusk-indust/vlab/internal/session"
)

// version is set by goreleaser at build time.
var version = "dev"

// errNoAPIKey is returned by the completion client when no key is configured.
var errNoAPIKey = errors.New("completion: no API key configured (set VLAB_OPENAI_API_KEY or OPENAI_API_KEY)")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries the settings shared by all commands.
type app struct {
	v *viper.Viper
}

func newApp() *app {
	v := viper.New()
	v.SetEnvPrefix("VLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &app{v: v}
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vlab",
		Short: "Virtual lab for nanobody project planning",
		Long: `vlab runs a panel of expert agents over a project brief.
- Phase 1 extracts the target, timeline, budget and goal for confirmation.
- Phase 2 consults the Immunologist, ML Specialist and Computational Biologist in turn,
  lets the Principal Investigator pick a strategy and prices a workflow.
The HTTP API and the MCP tools pause at both checkpoints; 'vlab run' runs straight through.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringP("config-dir", "C", ".", "directory containing vlab.yml")
	pf.String("model", "", "completion model")
	pf.Float64("temperature", 0, "sampling temperature")
	pf.Int("max-tokens", 0, "maximum tokens per completion")
	pf.String("base-url", "", "OpenAI-compatible API base URL")
	pf.Duration("request-timeout", 0, "timeout per completion request")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	for _, name := range []string{"config-dir", "model", "temperature", "max-tokens", "base-url", "request-timeout", "log-level"} {
		_ = a.v.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(a.serveCmd())
	root.AddCommand(a.mcpCmd())
	root.AddCommand(a.runCmd())
	root.AddCommand(a.initCmd())
	root.AddCommand(versionCmd())
	return root
}

// settings loads vlab.yml and applies flag and environment overrides.
func (a *app) settings() (*config.Config, error) {
	cfg, err := config.Load(a.v.GetString("config-dir"))
	if err != nil {
		return nil, err
	}
	if a.v.IsSet("model") {
		cfg.Model = a.v.GetString("model")
	}
	if a.v.IsSet("temperature") {
		cfg.Temperature = a.v.GetFloat64("temperature")
	}
	if a.v.IsSet("max-tokens") {
		cfg.MaxTokens = a.v.GetInt("max-tokens")
	}
	if a.v.IsSet("base-url") {
		cfg.BaseURL = a.v.GetString("base-url")
	}
	if a.v.IsSet("request-timeout") {
		cfg.RequestTimeout = config.Duration(a.v.GetDuration("request-timeout"))
	}
	if a.v.IsSet("log-level") {
		cfg.LogLevel = a.v.GetString("log-level")
	}
	if a.v.IsSet("addr") {
		cfg.Addr = a.v.GetString("addr")
	}
	if a.v.IsSet("allowed-origins") {
		cfg.AllowedOrigins = a.v.GetStringSlice("allowed-origins")
	}
	if a.v.IsSet("min-brief-chars") {
		cfg.MinBriefChars = a.v.GetInt("min-brief-chars")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// apiKey returns the configured completion API key, if any.
func (a *app) apiKey() string {
	if key := a.v.GetString("openai-api-key"); key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, _ := cfg.Level()
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// completionClient builds the OpenAI client, or a client that fails every
// call when no key is configured.
func (a *app) completionClient(cfg *config.Config) (completion.Client, bool) {
	key := a.apiKey()
	if key == "" {
		return completion.ClientFunc(func(context.Context, string) (string, error) {
			return "", errNoAPIKey
		}), false
	}
	return completion.NewOpenAIClient(key,
		completion.WithModel(cfg.Model),
		completion.WithTemperature(float32(cfg.Temperature)),
		completion.WithMaxTokens(cfg.MaxTokens),
		completion.WithTimeout(cfg.Timeout()),
		completion.WithBaseURL(cfg.BaseURL),
	), true
}

// wire builds the lab and the project service from cfg.
func wire(client completion.Client, cfg *config.Config, logger *slog.Logger) (*orchestrator.Lab, *project.Service) {
	lab := orchestrator.NewLab(client, orchestrator.WithLogger(logger))
	svc := project.NewService(lab, session.NewStore(),
		project.WithLogger(logger),
		project.WithMinChars(cfg.MinBriefChars),
	)
	return lab, svc
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
