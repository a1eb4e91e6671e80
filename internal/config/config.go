// Package config loads application configuration from the docquery
// config directory. Settings live in config.toml; secrets come from the
// environment, with .env files loaded for development convenience.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/docquery/internal/logger"
)

// Default directory name under the user's home.
const defaultDirName = ".docquery"

// Config is the full application configuration.
type Config struct {
	// DataDir holds the registry file and the embedded vector database.
	// Defaults to the config directory itself.
	DataDir string `toml:"data_dir"`

	Remote     RemoteConfig     `toml:"remote"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Generation GenerationConfig `toml:"generation"`
	Vector     VectorConfig     `toml:"vector"`
	Chunking   ChunkingConfig   `toml:"chunking"`
}

// RemoteConfig configures the managed file-search service client.
type RemoteConfig struct {
	// BaseURL overrides the service endpoint (mainly for tests).
	BaseURL string `toml:"base_url"`

	// Model is the generation model for grounded queries.
	Model string `toml:"model"`

	// APIKey authenticates against the service. Never read from the TOML
	// file; set GOOGLE_API_KEY in the environment or a .env file.
	APIKey string `toml:"-"`
}

// EmbeddingConfig configures the local embedding endpoint.
type EmbeddingConfig struct {
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
}

// GenerationConfig configures the local generation endpoint.
type GenerationConfig struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// VectorConfig selects the vector store for local projects.
type VectorConfig struct {
	// Provider is "sqlite" (embedded, default) or "qdrant".
	Provider string `toml:"provider"`

	// QdrantURL is the Qdrant server address when provider is "qdrant".
	QdrantURL string `toml:"qdrant_url"`

	// QdrantAPIKey comes from QDRANT_API_KEY, never from the file.
	QdrantAPIKey string `toml:"-"`
}

// ChunkingConfig tunes the text chunker.
type ChunkingConfig struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

// DefaultDir returns the default config directory (~/.docquery).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, defaultDirName), nil
}

// Load reads configuration from dir/config.toml, falling back to
// defaults for anything unset. A missing file is not an error. Secrets
// are resolved from the environment after loading .env files from the
// working directory and the config directory.
func Load(dir string) (Config, error) {
	if dir == "" {
		var err error
		dir, err = DefaultDir()
		if err != nil {
			return Config{}, err
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return Config{}, err
	}

	// .env loading is best effort; absent files are normal.
	for _, envFile := range []string{".env", filepath.Join(dir, ".env")} {
		if err := godotenv.Load(envFile); err == nil {
			logger.Debug("Loaded environment from %s", envFile)
		}
	}

	cfg := Config{DataDir: dir}
	path := filepath.Join(dir, "config.toml")
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return Config{}, err
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config file %s is invalid: %w", path, err)
		}
	}

	if cfg.DataDir == "" {
		cfg.DataDir = dir
	}
	cfg.Remote.APIKey = os.Getenv("GOOGLE_API_KEY")
	cfg.Vector.QdrantAPIKey = os.Getenv("QDRANT_API_KEY")

	if cfg.Vector.Provider == "" {
		cfg.Vector.Provider = "sqlite"
	}
	if cfg.Vector.Provider != "sqlite" && cfg.Vector.Provider != "qdrant" {
		return Config{}, fmt.Errorf("config file %s: unknown vector provider %q", path, cfg.Vector.Provider)
	}
	return cfg, nil
}
