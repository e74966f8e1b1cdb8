package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ashureev/leadintel/internal/domain"
)

func newCredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credential",
		Aliases: []string{"cred"},
		Short:   "Manage provider bearer tokens",
	}

	setCmd := &cobra.Command{
		Use:   "set <provider> <token>",
		Short: "Store the token for a provider",
		Long: `Stores the bearer token for a provider, replacing any previous value.

Providers:
  chat-provider        chat completions
  inference-provider   hosted model inference`,
		Args: cobra.ExactArgs(2),
		RunE: runCredentialSet,
	}

	getCmd := &cobra.Command{
		Use:   "get [provider]",
		Short: "Show whether tokens are configured",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCredentialGet,
	}

	cmd.AddCommand(setCmd, getCmd)
	return cmd
}

func parseProvider(s string) (domain.Provider, error) {
	p := domain.Provider(s)
	if !p.Known() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

func runCredentialSet(cmd *cobra.Command, args []string) error {
	p, err := parseProvider(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.creds.Set(cmd.Context(), p, args[1]); err != nil {
		return fmt.Errorf("save %s token: %w", p, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s token saved\n", color.GreenString("✓"), p)
	return nil
}

func runCredentialGet(cmd *cobra.Command, args []string) error {
	providers := domain.Providers()
	if len(args) == 1 {
		p, err := parseProvider(args[0])
		if err != nil {
			return err
		}
		providers = []domain.Provider{p}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	for _, p := range providers {
		token := a.creds.Get(cmd.Context(), p)
		if token == "" {
			fmt.Fprintf(out, "%s %s: not configured\n", color.RedString("✗"), p)
			continue
		}
		fmt.Fprintf(out, "%s %s: %s\n", color.GreenString("✓"), p, maskToken(token))
	}
	return nil
}

// maskToken keeps the last four characters of token.
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}
