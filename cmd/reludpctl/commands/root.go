// Package commands implements the reludpctl CLI commands.
package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient talks to the daemon's admin JSON API.
	httpClient = &http.Client{Timeout: 5 * time.Second}

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the admin API address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for reludpctl.
var rootCmd = &cobra.Command{
	Use:   "reludpctl",
	Short: "CLI client for the reludpd daemon",
	Long:  "reludpctl talks to reludpd's admin JSON API to inspect connections.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:7780",
		"reludpd admin API address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(connectionsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// baseURL returns the admin API's base URL built from serverAddr.
func baseURL() string {
	return "http://" + serverAddr
}
