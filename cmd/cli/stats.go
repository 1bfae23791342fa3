package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the configured backends and how many mappings they hold",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Environment:  %s\n", s.cfg.AppEnv)
	fmt.Fprintf(out, "Store:        %s\n", s.cfg.StoreBackend)
	fmt.Fprintf(out, "Rate limits:  %s\n", s.cfg.RateLimitBackend)

	counter := s.backends.Counter()
	if counter == nil {
		fmt.Fprintln(out, "Mappings:     unavailable")
		return nil
	}
	n, err := counter.CountMappings(ctx)
	if err != nil {
		return fmt.Errorf("counting mappings: %w", err)
	}
	fmt.Fprintf(out, "Mappings:     %d\n", n)
	return nil
}
