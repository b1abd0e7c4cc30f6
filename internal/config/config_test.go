package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `{
	"port": 8080,
	"db_path": "/tmp/ragline.db",
	"ai": {
		"provider": "openai",
		"model": "gpt-4o-mini",
		"embed_model": "text-embedding-3-small"
	}
}`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, "openai", cfg.AI.EmbedProvider, "embed provider defaults to the chat provider")
	require.Equal(t, 90, cfg.AI.Timeout)
	require.EqualValues(t, 256<<20, cfg.Cache.MaxBytes)
	require.Equal(t, 30, cfg.Cache.MaxAgeDays)
	require.Equal(t, "30 3 * * *", cfg.Cache.CleanupSpec)
	require.Equal(t, 10, cfg.Embed.BatchSize)
	require.Equal(t, "memory", cfg.Index.Type)
	require.Equal(t, 4, cfg.Index.TopK)
	require.Equal(t, 2, cfg.Index.FetchMultiplier)
	require.Equal(t, 8000, cfg.Context.MaxChars)
	require.Equal(t, 10, cfg.Memory.MaxItems)
	require.Equal(t, 1200, cfg.Memory.MaxChars)
	require.Equal(t, "info", cfg.LogConfig.Level)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing port", content: `{"db_path": "/tmp/a.db", "ai": {"provider": "openai", "model": "m", "embed_model": "e"}}`},
		{name: "missing db path", content: `{"port": 8080, "ai": {"provider": "openai", "model": "m", "embed_model": "e"}}`},
		{name: "missing provider", content: `{"port": 8080, "db_path": "/tmp/a.db", "ai": {"model": "m", "embed_model": "e"}}`},
		{name: "missing embed model", content: `{"port": 8080, "db_path": "/tmp/a.db", "ai": {"provider": "openai", "model": "m"}}`},
		{name: "bad index type", content: `{"port": 8080, "db_path": "/tmp/a.db", "ai": {"provider": "openai", "model": "m", "embed_model": "e"}, "index": {"type": "faiss"}}`},
		{name: "qdrant without url", content: `{"port": 8080, "db_path": "/tmp/a.db", "ai": {"provider": "openai", "model": "m", "embed_model": "e"}, "index": {"type": "qdrant"}}`},
		{name: "pgvector without dsn", content: `{"port": 8080, "db_path": "/tmp/a.db", "ai": {"provider": "openai", "model": "m", "embed_model": "e"}, "index": {"type": "pgvector"}}`},
		{name: "not json", content: `port = 8080`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoadFallbackChains(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"port": 8080,
		"db_path": "/tmp/a.db",
		"ai": {
			"provider": "openai",
			"model": "gpt-4o-mini",
			"embed_model": "text-embedding-3-small",
			"fallbacks": [
				{"provider": "ollama", "model": "llama3.1", "data": {"base_url": "http://backup:11434"}}
			],
			"embed_fallbacks": [
				{"provider": "ollama", "model": "nomic-embed-text"}
			]
		}
	}`))
	require.NoError(t, err)
	require.Len(t, cfg.AI.Fallbacks, 1)
	require.Equal(t, "ollama", cfg.AI.Fallbacks[0].Provider)
	require.Equal(t, "llama3.1", cfg.AI.Fallbacks[0].Model)
	require.Len(t, cfg.AI.EmbedFallbacks, 1)
	require.Equal(t, "nomic-embed-text", cfg.AI.EmbedFallbacks[0].Model)
}

func TestLoadFallbackValidation(t *testing.T) {
	base := `{
		"port": 8080,
		"db_path": "/tmp/a.db",
		"ai": {"provider": "openai", "model": "m", "embed_model": "e", %s}
	}`
	tests := []struct {
		name     string
		fallback string
	}{
		{name: "fallback without model", fallback: `"fallbacks": [{"provider": "ollama"}]`},
		{name: "fallback without provider", fallback: `"fallbacks": [{"model": "llama3.1"}]`},
		{name: "embed fallback without model", fallback: `"embed_fallbacks": [{"provider": "ollama"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, fmt.Sprintf(base, tt.fallback)))
			require.Error(t, err)
		})
	}
}

func TestLoadFetchMultiplierFloor(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"port": 8080,
		"db_path": "/tmp/a.db",
		"ai": {"provider": "openai", "model": "m", "embed_model": "e"},
		"index": {"type": "memory", "fetch_multiplier": 1}
	}`))
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Index.FetchMultiplier)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
