// Command tutor serves live tutoring sessions and ships a terminal client
// for them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-tutor/internal/logging"
)

var logger = logging.NewLogger("github.com/koscakluka/ema-tutor/cmd/tutor")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "tutor",
		Short:         "Live tutoring sessions over websockets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("TUTOR_CONFIG"), "YAML config file")

	cmd.AddCommand(newServeCmd(opts), newSeedCmd(opts), newConsoleCmd())
	return cmd
}
