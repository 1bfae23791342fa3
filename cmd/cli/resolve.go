package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/marcelsud/webhook-proxy/proxy"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <proxy-id|proxy-url>",
	Short: "Print the Discord webhook URL behind a proxy id",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

// idFromArg accepts a bare id or a full proxy URL
func idFromArg(arg string) string {
	if i := strings.LastIndex(arg, proxy.ProxyPath); i >= 0 {
		arg = arg[i+len(proxy.ProxyPath):]
	}
	return strings.Trim(arg, "/")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	id := idFromArg(args[0])
	if id == "" {
		return proxy.ErrMissingIdentifier
	}
	webhookURL, err := s.backends.Store.Get(ctx, proxy.Key(id))
	if errors.Is(err, proxy.ErrNotFound) {
		return fmt.Errorf("no mapping for %s", id)
	}
	if err != nil {
		return fmt.Errorf("reading mapping: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), webhookURL)
	return nil
}
