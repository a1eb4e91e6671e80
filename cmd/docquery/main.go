// Command docquery is the project-scoped document Q&A tool.
package main

import (
	"fmt"
	"os"
	"time"

	localbackend "github.com/custodia-labs/docquery/internal/adapters/driven/backend/local"
	remotebackend "github.com/custodia-labs/docquery/internal/adapters/driven/backend/remote"
	embeddingollama "github.com/custodia-labs/docquery/internal/adapters/driven/embedding/ollama"
	llmollama "github.com/custodia-labs/docquery/internal/adapters/driven/llm/ollama"
	registryfile "github.com/custodia-labs/docquery/internal/adapters/driven/registry/file"
	"github.com/custodia-labs/docquery/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/docquery/internal/adapters/driven/vector/sqlite"
	"github.com/custodia-labs/docquery/internal/adapters/driving/cli"
	"github.com/custodia-labs/docquery/internal/chunker"
	"github.com/custodia-labs/docquery/internal/config"
	"github.com/custodia-labs/docquery/internal/core/ports/driven"
	"github.com/custodia-labs/docquery/internal/core/services"
	"github.com/custodia-labs/docquery/internal/extractors"
	"github.com/custodia-labs/docquery/internal/extractors/markdown"
	"github.com/custodia-labs/docquery/internal/extractors/pdf"
	"github.com/custodia-labs/docquery/internal/extractors/plaintext"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	registry, err := registryfile.Open(cfg.DataDir)
	if err != nil {
		return err
	}

	store, err := openVectorStore(cfg)
	if err != nil {
		return err
	}

	embedder := embeddingollama.NewEmbeddingService(embeddingollama.Config{
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	llm := llmollama.NewLLMService(llmollama.Config{
		BaseURL: cfg.Generation.BaseURL,
		Model:   cfg.Generation.Model,
		Timeout: time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
	})

	registryExtractors := extractors.NewRegistry(
		plaintext.New(),
		markdown.New(),
		pdf.New(),
	)
	var chunkOpts []chunker.Option
	if cfg.Chunking.Size > 0 {
		chunkOpts = append(chunkOpts, chunker.WithChunkSize(cfg.Chunking.Size))
	}
	if cfg.Chunking.Overlap > 0 {
		chunkOpts = append(chunkOpts, chunker.WithOverlap(cfg.Chunking.Overlap))
	}
	splitter := chunker.New(chunkOpts...)

	local := localbackend.NewBackend(registryExtractors, splitter, embedder, store, llm)
	remote := remotebackend.NewBackend(remotebackend.Config{
		BaseURL: cfg.Remote.BaseURL,
		APIKey:  cfg.Remote.APIKey,
		Model:   cfg.Remote.Model,
	})

	cli.SetService(services.NewProjectService(registry, local, remote))
	return cli.Execute()
}

func openVectorStore(cfg config.Config) (driven.VectorStore, error) {
	if cfg.Vector.Provider == "qdrant" {
		return qdrant.NewStore(qdrant.Config{
			URL:    cfg.Vector.QdrantURL,
			APIKey: cfg.Vector.QdrantAPIKey,
		}), nil
	}
	return sqlite.NewStore(cfg.DataDir)
}
