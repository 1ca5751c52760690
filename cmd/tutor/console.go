package main

import (
	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-tutor/internal/console"
)

func newConsoleCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "console SESSION_ID",
		Short: "Join a session from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return console.Run(cmd.Context(), url, args[0])
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://localhost:8000/learning-interface", "learning interface websocket URL")
	return cmd
}
