package main

import (
	"errors"
	"fmt"

	"github.com/marcelsud/webhook-proxy/proxy"
	"github.com/spf13/cobra"
)

var registerBaseURL string

var registerCmd = &cobra.Command{
	Use:   "register <discord-webhook-url>",
	Short: "Register a webhook and print its proxy URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerBaseURL, "base-url", "", "scheme://host of the public proxy (default PUBLIC_BASE_URL or http://localhost:PORT)")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	base := registerBaseURL
	if base == "" {
		base = s.cfg.PublicBaseURL
	}
	if base == "" {
		base = "http://localhost:" + s.cfg.Port
	}

	proxyURL, err := s.service.Register(ctx, args[0], base)
	if errors.Is(err, proxy.ErrInvalidInput) {
		return fmt.Errorf("%q is not a Discord webhook URL (must start with %s)", args[0], proxy.DiscordWebhookPrefix)
	}
	if err != nil {
		return fmt.Errorf("registering webhook: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), proxyURL)
	return nil
}
