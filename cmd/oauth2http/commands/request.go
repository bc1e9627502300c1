package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/AmmannChristian/go-oauth2http/httpclient"
)

// requestCommand returns the 'request' subcommand.
func requestCommand() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Usage:     "Send one authorized request and print the response",
		ArgsUsage: "<uri>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "method",
				Aliases: []string{"X"},
				Usage:   "HTTP method",
				Value:   http.MethodGet,
			},
			&cli.StringSliceFlag{
				Name:    "header",
				Aliases: []string{"H"},
				Usage:   "request header as 'Name: value' (repeatable)",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "request body; @path reads a file, @- reads stdin",
			},
			&cli.BoolFlag{
				Name:  "fail",
				Usage: "exit with an error on non-2xx responses",
			},
		},
		Action: requestAction,
	}
}

func requestAction(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.Args().First()
	if uri == "" {
		return fmt.Errorf("request: missing <uri>")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := newClient(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	body, err := readData(cmd.String("data"), cmd.Root().Reader)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(cmd.String("method")), uri, body)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	for _, h := range cmd.StringSlice("header") {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return fmt.Errorf("request: malformed header %q", h)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	slog.DebugContext(ctx, "sending request", "method", req.Method, "uri", uri)

	resp, err := client.Send(req, httpclient.ResponseHeadersRead)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out := cmd.Root().Writer
	fmt.Fprintf(out, "%s %s\n", resp.Proto, resp.Status)
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("request: read response: %w", err)
	}

	if cmd.Bool("fail") && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return fmt.Errorf("request: server returned %s", resp.Status)
	}
	return nil
}

// readData resolves the --data value into a request body.
func readData(data string, stdin io.Reader) (io.Reader, error) {
	switch {
	case data == "":
		return nil, nil
	case data == "@-":
		if stdin == nil {
			stdin = os.Stdin
		}
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("request: read stdin: %w", err)
		}
		return bytes.NewReader(b), nil
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("request: read body file: %w", err)
		}
		return bytes.NewReader(b), nil
	default:
		return strings.NewReader(data), nil
	}
}
