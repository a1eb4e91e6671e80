package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docquery/internal/logger"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage project documents",
	Long:  `Upload, list and delete the documents indexed in a project.`,
}

var documentUploadCmd = &cobra.Command{
	Use:   "upload [project-id] [file]",
	Short: "Upload and index a document",
	Long: `Reads the file, extracts its text and indexes it into the project.
Supported formats: .pdf, .txt, .text, .md, .markdown.`,
	Args: cobra.ExactArgs(2),
	RunE: runDocumentUpload,
}

var documentListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List documents in a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentList,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [project-id] [name]",
	Short: "Delete a document and its indexed content",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentDelete,
}

func init() {
	documentCmd.AddCommand(documentUploadCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentUpload(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	path := args[1]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	name := filepath.Base(path)
	logger.Section("Indexing")
	summary, err := projectService.UploadDocument(context.Background(), args[0], name, content)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	if summary.ChunkCount > 0 {
		cmd.Printf("Indexed %s (%d chunks)\n", summary.Name, summary.ChunkCount)
	} else {
		cmd.Printf("Indexed %s\n", summary.Name)
	}
	return nil
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	docs, err := projectService.ListDocuments(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("list documents failed: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents indexed.")
		return nil
	}

	cmd.Printf("Documents in %s:\n", args[0])
	for _, doc := range docs {
		if doc.ChunkCount > 0 {
			cmd.Printf("  %s  (%d chunks, indexed %s)\n", doc.Name, doc.ChunkCount, doc.IndexedAt.Format("2006-01-02 15:04"))
		} else {
			cmd.Printf("  %s  (indexed %s)\n", doc.Name, doc.IndexedAt.Format("2006-01-02 15:04"))
		}
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if projectService == nil {
		return errors.New("project service not configured")
	}

	if err := projectService.DeleteDocument(context.Background(), args[0], args[1]); err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	cmd.Printf("Deleted %s from %s\n", args[1], args[0])
	return nil
}
