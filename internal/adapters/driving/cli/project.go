package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

var (
	projectBackend string
	projectJSON    bool
	promptClear    bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  `Create, list and delete projects, and set per-project prompts.`,
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new project",
	Long: `Creates a project and provisions its retrieval store.
The --backend flag selects where documents are indexed: "local" keeps
everything on this machine, "remote" uses the managed file-search
service.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectCreate,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete [project-id]",
	Short: "Delete a project and all its indexed content",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

var projectPromptCmd = &cobra.Command{
	Use:   "prompt [project-id] [text]",
	Short: "Set the project's system prompt",
	Long: `Stores a system prompt that shapes how questions against this
project are answered. Use --clear to remove it.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runProjectPrompt,
}

func init() {
	projectCreateCmd.Flags().StringVarP(&projectBackend, "backend", "b", "local", "retrieval backend (local or remote)")
	projectListCmd.Flags().BoolVar(&projectJSON, "json", false, "output as JSON")
	projectPromptCmd.Flags().BoolVar(&promptClear, "clear", false, "remove the project's system prompt")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectPromptCmd)
	rootCmd.AddCommand(projectCmd)
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	kind, err := domain.ParseBackendKind(projectBackend)
	if err != nil {
		return err
	}

	summary, err := projectService.CreateProject(context.Background(), args[0], kind)
	if err != nil {
		return fmt.Errorf("create project failed: %w", err)
	}

	cmd.Printf("Created project %q\n", summary.DisplayName)
	cmd.Printf("  ID:      %s\n", summary.ID)
	cmd.Printf("  Backend: %s\n", summary.Backend)
	return nil
}

func runProjectList(cmd *cobra.Command, _ []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	summaries, err := projectService.ListProjects(context.Background())
	if err != nil {
		return fmt.Errorf("list projects failed: %w", err)
	}

	if projectJSON {
		data, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal projects: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(summaries) == 0 {
		cmd.Println("No projects found.")
		return nil
	}

	cmd.Println("Projects:")
	for _, summary := range summaries {
		cmd.Printf("  %s  [%s, %d documents]\n", summary.DisplayName, summary.Backend, summary.DocumentCount)
		cmd.Printf("    ID: %s\n", summary.ID)
	}
	return nil
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	if err := projectService.DeleteProject(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete project failed: %w", err)
	}
	cmd.Printf("Deleted project %s\n", args[0])
	return nil
}

func runProjectPrompt(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	if promptClear {
		if err := projectService.SetPrompt(context.Background(), args[0], ""); err != nil {
			return fmt.Errorf("clear prompt failed: %w", err)
		}
		cmd.Printf("Cleared prompt for %s\n", args[0])
		return nil
	}

	if len(args) < 2 {
		return errors.New("prompt text required (or pass --clear)")
	}
	if err := projectService.SetPrompt(context.Background(), args[0], args[1]); err != nil {
		return fmt.Errorf("set prompt failed: %w", err)
	}
	cmd.Printf("Set prompt for %s\n", args[0])
	return nil
}
