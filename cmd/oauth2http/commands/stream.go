package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/AmmannChristian/go-oauth2http/jsonstream"
)

// streamCommand returns the 'stream' subcommand.
func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "GET a JSON array or NDJSON stream and print one element per line",
		ArgsUsage: "<uri>",
		Action:    streamAction,
	}
}

func streamAction(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.Args().First()
	if uri == "" {
		return fmt.Errorf("stream: missing <uri>")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := newClient(cfg, true)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	out := cmd.Root().Writer
	var line bytes.Buffer
	for elem, err := range jsonstream.Get[json.RawMessage](ctx, client, uri) {
		if err != nil {
			return fmt.Errorf("stream: %w", err)
		}

		line.Reset()
		if err := json.Compact(&line, elem); err != nil {
			return fmt.Errorf("stream: %w", err)
		}
		line.WriteByte('\n')
		if _, err := out.Write(line.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
