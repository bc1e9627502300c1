package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/AmmannChristian/go-oauth2http/httpclient"
	"github.com/AmmannChristian/go-oauth2http/internal/config"
	"github.com/AmmannChristian/go-oauth2http/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return New().Run(ctx, args)
}

// New returns the root command.
func New() *cli.Command {
	return &cli.Command{
		Name:  "oauth2http",
		Usage: "Send HTTP requests authorized with OAuth2 client credentials",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML configuration file",
				Sources: cli.EnvVars(config.EnvPrefix + "CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: "text",
			},
		},
		Commands: []*cli.Command{
			requestCommand(),
			streamCommand(),
			secretCommand(),
		},
	}
}

// loadConfig reads the layered configuration. Log flags given on the
// command line take precedence over file and environment values.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	overrides := map[string]any{}
	if cmd.IsSet("log-level") {
		overrides["log.level"] = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		overrides["log.format"] = cmd.String("log-format")
	}

	cfg, err := config.Load(config.Options{
		Path:      cmd.String("config"),
		Environ:   os.Environ,
		Overrides: overrides,
		Secrets:   config.NewKeyring(),
	})
	if err != nil {
		return nil, err
	}

	if err := instrument(cmd, cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	return cfg, nil
}

// instrument sets up slog on the command's error writer.
func instrument(cmd *cli.Command, levelName, format string) error {
	level, err := observability.ParseLevel(levelName)
	if err != nil {
		return err
	}
	if err := observability.Instrument(cmd.Root().ErrWriter, level, format); err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	return nil
}

// newClient builds an authorized client from cfg. Streaming clients have no
// overall timeout so long-lived responses are not cut off.
func newClient(cfg *config.Config, streaming bool) (*httpclient.Client, error) {
	oauth2Cfg, err := cfg.OAuth2Config()
	if err != nil {
		return nil, err
	}

	timeout := cfg.API.Timeout
	if streaming {
		timeout = 0
	}

	builder := httpclient.NewBuilder().
		WithOAuth2(oauth2Cfg, cfg.CacheOptions()...).
		WithBaseAddress(cfg.API.BaseAddress, cfg.QueryValues()).
		WithTimeout(timeout).
		WithLogger(observability.LibraryLogger(slog.LevelDebug))

	if cfg.TLS.Enabled() {
		builder.WithTLS(cfg.TLS.CAFile, cfg.TLS.CertFile, cfg.TLS.KeyFile)
	}
	if cfg.TLS.InsecureSkipVerify {
		builder.WithInsecureSkipVerify()
	}
	if !cfg.API.Redirects {
		builder.WithoutRedirects()
	}
	if cfg.API.RequestID {
		builder.WithRequestID()
	}

	return builder.Build()
}
