package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docquery/internal/logger"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask [project-id] [question]",
	Short: "Ask a question grounded in a project's documents",
	Long: `Retrieves the most relevant passages from the project's documents,
generates an answer grounded in them and lists the source documents.`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages to retrieve (default 3)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	logger.Section("Retrieval")
	result, err := projectService.Query(context.Background(), args[0], args[1], askTopK)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	cmd.Println(result.Answer)
	if len(result.Citations) > 0 {
		cmd.Println()
		cmd.Printf("Sources: %s\n", strings.Join(result.Citations, ", "))
	}
	logger.Debug("Query answered in %dms", result.LatencyMs)
	return nil
}
