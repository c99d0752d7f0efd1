package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/claudebridge/claudebridge/internal/keystore"
)

// authCommand returns the 'auth' subcommand for managing the backend API key.
func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the backend API key",
		Commands: []*cli.Command{
			{
				Name:   "set",
				Usage:  "Store the backend API key in the OS keyring",
				Action: authSetAction,
			},
			{
				Name:   "show",
				Usage:  "Show whether a key is stored (never prints the key)",
				Action: authShowAction,
			},
			{
				Name:   "clear",
				Usage:  "Remove the stored backend API key",
				Action: authClearAction,
			},
		},
	}
}

func authSetAction(ctx context.Context, cmd *cli.Command) error {
	key, err := readSecureInput(ctx, "Enter backend API key: ")
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if err := keystore.New().Set(key); err != nil {
		return err
	}

	fmt.Println("API key saved to OS keyring")
	return nil
}

func authShowAction(ctx context.Context, cmd *cli.Command) error {
	_, err := keystore.New().Get()
	if err != nil {
		fmt.Println("No API key stored")
		return nil
	}
	fmt.Println("An API key is stored")
	return nil
}

func authClearAction(ctx context.Context, cmd *cli.Command) error {
	if err := keystore.New().Clear(); err != nil {
		return err
	}
	fmt.Println("API key cleared")
	return nil
}

// readSecureInput reads user input with hidden display and context cancellation support.
// Goroutine+select pattern required because term.ReadPassword has no native context support.
func readSecureInput(ctx context.Context, prompt string) (string, error) {
	fmt.Print(prompt)
	defer fmt.Println()

	type result struct {
		value string
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		inputBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
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
