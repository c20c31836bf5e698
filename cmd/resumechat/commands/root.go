// Package commands defines all Cobra CLI commands for the resumechat binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/resumechat/internal/audit"
	"github.com/54b3r/resumechat/internal/config"
	"github.com/54b3r/resumechat/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "resumechat",
		Short: "Upload resumes, then ask questions about them",
		Long: `resumechat ingests batches of PDF resumes into a vector store and answers
natural-language questions about the most recent batch through a tool-using
chat agent.

The system runs as three processes from this one binary:
  resumechat serve          HTTP API: /upload, /chat, /batches/{id}
  resumechat worker         background ingestion of uploaded batches
  resumechat search-server  MCP semantic search tool used by the agent

Configuration comes from environment variables, optionally seeded from a
.env file and a YAML config file (~/.resumechat/config.yaml). Environment
variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.resumechat/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file; missing files are ignored")

	root.AddCommand(
		NewServeCmd(),
		NewWorkerCmd(),
		NewSearchServerCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewVersionCmd(),
	)

	return root
}
