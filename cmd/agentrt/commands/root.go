// Package commands provides the agentrt CLI's command tree.
package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentrt/runtime/internal/config"
	"github.com/agentrt/runtime/internal/logging"
)

var (
	// Version information set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	configPath string
	printLogs  bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "agentrt",
	Short: "Agent session runtime",
	Long: `agentrt runs the Agent Session Runtime: a process that owns one
event-sourced state machine per conversation, drives it against an LLM
and a workspace of tools, and exposes the result over an HTTP/SSE RPC
surface.

Run 'agentrt serve' to start the server.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.DefaultConfig()
		logCfg.Pretty = printLogs
		logCfg.Output = os.Stderr

		// A config file's own logLevel takes effect unless the operator
		// passed --log-level explicitly; the flag's "info" default would
		// otherwise always win over a configured level.
		if cmd.Flags().Changed("log-level") {
			logCfg.Level = logging.ParseLevel(logLevel)
		} else if cfg, err := config.Load(configPath); err == nil && cfg.LogLevel != "" {
			logCfg.Level = logging.ParseLevel(cfg.LogLevel)
			// Logs live alongside this runtime's own event store and
			// session storage rather than under a hardcoded /tmp: the
			// teacher's logging package has no notion of a data
			// directory to anchor them to, but this runtime's Config
			// always does.
			logCfg.LogDir = filepath.Join(cfg.DataDir, "logs")
			logCfg.LogToFile = true
		} else {
			logCfg.Level = logging.ParseLevel(logLevel)
		}

		logging.Init(logCfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to agentrt config file")
	rootCmd.PersistentFlags().BoolVar(&printLogs, "pretty", false, "Print human-readable logs instead of JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")

	rootCmd.SetVersionTemplate("agentrt " + Version + " (" + BuildTime + ")\n")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
