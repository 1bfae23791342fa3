package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sendData string

var sendCmd = &cobra.Command{
	Use:   "send <proxy-id|proxy-url>",
	Short: "Relay a JSON payload through a proxy id, as POST /api/proxy/<id> would",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendData, "data", "d", `{}`, "JSON payload to relay")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	if !json.Valid([]byte(sendData)) {
		return fmt.Errorf("--data is not valid JSON")
	}

	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	if err := s.service.Forward(ctx, idFromArg(args[0]), []byte(sendData)); err != nil {
		return fmt.Errorf("forwarding: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "delivered")
	return nil
}
