package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "passforge",
	Short: "Session and profile reconciliation service",
	Long: `passforge validates identity-provider sessions, loads the matching user
profile and serves the reconciled auth state to browsers and reverse proxies.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, healthcheckCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
