package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docquery/internal/core/domain"
)

func TestProjectCmd_Use(t *testing.T) {
	assert.Equal(t, "project", projectCmd.Use)
}

func TestProjectCmd_HasSubcommands(t *testing.T) {
	commands := projectCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "create")
	assert.Contains(t, commandNames, "list")
	assert.Contains(t, commandNames, "delete")
	assert.Contains(t, commandNames, "prompt")
}

func TestProjectCreateCmd_HasBackendFlag(t *testing.T) {
	flag := projectCreateCmd.Flags().Lookup("backend")
	require.NotNil(t, flag, "backend flag should exist")
	assert.Equal(t, "b", flag.Shorthand)
	assert.Equal(t, "local", flag.DefValue)
}

func TestProjectCreateCmd_RequiresName(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"project", "create"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestProjectCreateCmd_Executes(t *testing.T) {
	_, cleanup := setupTestService()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"project", "create", "My Notes"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "My Notes")
	assert.Contains(t, buf.String(), "local")
}

func TestProjectCreateCmd_RejectsUnknownBackend(t *testing.T) {
	_, cleanup := setupTestService()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"project", "create", "x", "--backend", "cloud"})
	defer func() {
		rootCmd.SetArgs(nil)
		projectBackend = "local"
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProjectListCmd_Empty(t *testing.T) {
	_, cleanup := setupTestService()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"project", "list"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No projects found.")
}

func TestProjectListCmd_ShowsProjects(t *testing.T) {
	stub, cleanup := setupTestService()
	defer cleanup()
	stub.summaries = []domain.ProjectSummary{
		{ID: "local_1", DisplayName: "Notes", Backend: domain.BackendLocal, CreatedAt: time.Now(), DocumentCount: 2},
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"project", "list"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Notes")
	assert.Contains(t, buf.String(), "local_1")
	assert.Contains(t, buf.String(), "2 documents")
}

func TestProjectDeleteCmd_Executes(t *testing.T) {
	_, cleanup := setupTestService()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"project", "delete", "local_1"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Deleted project local_1")
}

func TestProjectPromptCmd_Sets(t *testing.T) {
	stub, cleanup := setupTestService()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"project", "prompt", "local_1", "Answer tersely."})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, "Answer tersely.", stub.lastPrompt)
}

func TestProjectPromptCmd_Clears(t *testing.T) {
	stub, cleanup := setupTestService()
	defer cleanup()
	stub.lastPrompt = "old"

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"project", "prompt", "local_1", "--clear"})
	defer func() {
		rootCmd.SetArgs(nil)
		promptClear = false
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Empty(t, stub.lastPrompt)
}
