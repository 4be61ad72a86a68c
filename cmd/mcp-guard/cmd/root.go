// Package cmd provides the CLI commands for mcp-guard.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/mcp-guard/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcp-guard",
	Short: "mcp-guard - guarded MCP tool server",
	Long: `mcp-guard serves Model Context Protocol tools behind an admission gate.

Every HTTP request passes security headers, request logging, origin checks,
per-client rate limiting and bearer authentication before it reaches the
MCP endpoint. Tool arguments are validated and rejected inputs are recorded
in a bounded security event log.

Quick start:
  1. Create a config file: mcp-guard.yaml
  2. Run: mcp-guard start

Configuration:
  Config is loaded from mcp-guard.yaml in the current directory,
  $HOME/.mcp-guard/, or /etc/mcp-guard/.

  Environment variables can override config values with the MCP_GUARD_ prefix.
  Example: MCP_GUARD_SERVER_HTTP_ADDR=:9090

Commands:
  start       Start the server
  stop        Stop the running server
  config      Print the effective configuration
  hash-key    Generate an argon2id hash for an API key
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mcp-guard.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
