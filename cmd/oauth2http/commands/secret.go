package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/AmmannChristian/go-oauth2http/internal/config"
)

// secretCommand returns the 'secret' subcommand for managing client secrets.
func secretCommand() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "Manage client secrets in the OS keyring",
		Commands: []*cli.Command{
			{
				Name:   "set",
				Usage:  "Store a client secret (read from the terminal or stdin)",
				Flags:  []cli.Flag{clientIDFlag()},
				Action: secretSetAction,
			},
			{
				Name:   "delete",
				Usage:  "Remove a stored client secret",
				Flags:  []cli.Flag{clientIDFlag()},
				Action: secretDeleteAction,
			},
		},
	}
}

func clientIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "client-id",
		Usage:    "OAuth2 client id the secret belongs to",
		Required: true,
		Sources:  cli.EnvVars(config.EnvPrefix + "OAUTH2__CLIENT_ID"),
	}
}

func secretSetAction(ctx context.Context, cmd *cli.Command) error {
	if err := instrument(cmd, cmd.String("log-level"), cmd.String("log-format")); err != nil {
		return err
	}

	secret, err := readSecret(ctx, cmd.Root().Reader, cmd.Root().ErrWriter, "Client secret: ")
	if err != nil {
		return err
	}

	if err := config.NewKeyring().Set(cmd.String("client-id"), secret); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	fmt.Fprintf(cmd.Root().Writer, "Secret stored for client %q\n", cmd.String("client-id"))
	return nil
}

func secretDeleteAction(_ context.Context, cmd *cli.Command) error {
	if err := instrument(cmd, cmd.String("log-level"), cmd.String("log-format")); err != nil {
		return err
	}

	err := config.NewKeyring().Delete(cmd.String("client-id"))
	if errors.Is(err, config.ErrSecretNotFound) {
		fmt.Fprintf(cmd.Root().Writer, "No secret stored for client %q\n", cmd.String("client-id"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	fmt.Fprintf(cmd.Root().Writer, "Secret deleted for client %q\n", cmd.String("client-id"))
	return nil
}

// readSecret prompts without echo when in is a terminal and otherwise reads
// the first line of in.
func readSecret(ctx context.Context, in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return readSecureInput(ctx, f, prompt, label)
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecureInput reads user input with hidden display and context cancellation support.
// term.ReadPassword has no context support, so the read runs in a goroutine.
func readSecureInput(ctx context.Context, f *os.File, prompt io.Writer, label string) (string, error) {
	fmt.Fprint(prompt, label)
	defer fmt.Fprintln(prompt)

	type result struct {
		value string
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		inputBytes, err := term.ReadPassword(int(f.Fd()))
		resultCh <- result{value: string(inputBytes), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return res.value, nil
	}
}
