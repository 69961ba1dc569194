// Command pushmodel serves the built-in example models and makes one-shot
// calls against a running server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pushmodel-dev/pushmodel/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pushmodel",
		Short: "Push-model state sync over JSON-RPC",
		Long: `pushmodel serves a shared data model over WebSocket and HTTP.

Clients call methods with JSON-RPC 2.0 requests, subscribe to parts of
the model with SUB and UNSUB, and receive every change as a batch of
JSON patches in a PUB notification.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		serveCmd(),
		callCmd(),
		benchCmd(),
		versionCmd(),
	)
	return cmd
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
