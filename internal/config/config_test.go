package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "sqlite", cfg.Vector.Provider)
}

func TestLoad_ReadsTOML(t *testing.T) {
	dir := t.TempDir()
	content := `
data_dir = "/tmp/docquery-data"

[embedding]
model = "nomic-embed-text"
dimensions = 384

[vector]
provider = "qdrant"
qdrant_url = "http://localhost:6333"

[chunking]
size = 1000
overlap = 100
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/docquery-data", cfg.DataDir)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, "qdrant", cfg.Vector.Provider)
	assert.Equal(t, "http://localhost:6333", cfg.Vector.QdrantURL)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not [valid"), 0600))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_UnknownVectorProvider(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("[vector]\nprovider = \"pinecone\"\n"), 0600))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinecone")
}

func TestLoad_SecretsFromEnvironment(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("QDRANT_API_KEY", "q-key")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.Remote.APIKey)
	assert.Equal(t, "q-key", cfg.Vector.QdrantAPIKey)
}

func TestLoad_DotEnvFromConfigDir(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	os.Unsetenv("GOOGLE_API_KEY")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GOOGLE_API_KEY=from-dotenv\n"), 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Remote.APIKey)
}
