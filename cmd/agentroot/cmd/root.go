// Package cmd provides the CLI commands for the agentroot server.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agentroot/agentroot/internal/logging"
	"github.com/agentroot/agentroot/pkg/version"
)

// Debug logging flag, shared across the persistent pre/post run hooks.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the agentroot CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentroot",
		Short: "Local-first RAG MCP server for developers",
		Long: `agentroot provides hybrid search (BM25 + semantic) over indexed
collections of code, documents, and other content for AI coding assistants.

It runs entirely locally. Run 'agentroot serve' to start the MCP server,
or 'agentroot search <query>' to query an existing index from the shell.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("agentroot version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.agentroot/logs/")
	cmd.PersistentFlags().String("data-dir", "", "Directory holding the SQLite store (default: .agentroot in the project root)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables debug file logging if --debug was passed. The MCP
// transport on stdio requires stdout stay clean of anything but JSON-RPC, so
// logging here always goes to file, never stderr-only defaults.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
