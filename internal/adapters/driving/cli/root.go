// Package cli implements the docquery command tree. Commands talk to
// the core through the driving ProjectService port; wiring happens in
// cmd/docquery.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docquery/internal/core/ports/driving"
	"github.com/custodia-labs/docquery/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

// projectService is injected by SetService before Execute runs.
var projectService driving.ProjectService

var rootCmd = &cobra.Command{
	Use:   "docquery",
	Short: "Project-scoped document Q&A",
	Long: `docquery groups documents into projects, indexes them for semantic
retrieval and answers questions grounded in their content, with
citations. Projects index either on this machine (local backend) or in
the managed file-search service (remote backend).`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging to stderr")
}

// SetService injects the project service used by all commands.
func SetService(svc driving.ProjectService) {
	projectService = svc
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
