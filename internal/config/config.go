package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	DBPath        string           `json:"db_path"`
	LogConfig     logger.LogConfig `json:"log_config"`
	AI            AIConfig         `json:"ai"`
	Cache         CacheConfig      `json:"cache"`
	Embed         EmbedConfig      `json:"embed"`
	Index         IndexConfig      `json:"index"`
	Context       ContextConfig    `json:"context"`
	Memory        MemoryConfig     `json:"memory"`
	CORSAllowlist []string         `json:"cors_allowlist"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	EmbedProvider string      `json:"embed_provider"`
	EmbedModel    string      `json:"embed_model"`
	Timeout       int         `json:"timeout"`
	Data          interface{} `json:"data"`
	EmbedData     interface{} `json:"embed_data"`
	// Tried in order after the primary fails.
	Fallbacks      []AIEndpoint `json:"fallbacks"`
	EmbedFallbacks []AIEndpoint `json:"embed_fallbacks"`
}

type AIEndpoint struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type CacheConfig struct {
	MaxBytes      int64  `json:"max_bytes"`
	MaxAgeDays    int    `json:"max_age_days"`
	LRUSize       int    `json:"lru_size"`
	LRUTTLMinutes int    `json:"lru_ttl_minutes"`
	CleanupSpec   string `json:"cleanup_spec"`
}

type EmbedConfig struct {
	BatchSize int `json:"batch_size"`
}

type IndexConfig struct {
	Type            string         `json:"type"`
	TopK            int            `json:"top_k"`
	FetchMultiplier int            `json:"fetch_multiplier"`
	Qdrant          QdrantConfig   `json:"qdrant"`
	Postgres        PostgresConfig `json:"postgres"`
}

type QdrantConfig struct {
	URL        string `json:"url"`
	APIKey     string `json:"api_key"`
	Collection string `json:"collection"`
	Timeout    int    `json:"timeout"`
}

type PostgresConfig struct {
	DSN   string `json:"dsn"`
	Table string `json:"table"`
}

type ContextConfig struct {
	MaxChars int `json:"max_chars"`
}

type MemoryConfig struct {
	MaxItems int `json:"max_items"`
	MaxChars int `json:"max_chars"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.EmbedProvider == "" {
		cfg.AI.EmbedProvider = cfg.AI.Provider
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 90
	}
	for i, fb := range cfg.AI.Fallbacks {
		if fb.Provider == "" || fb.Model == "" {
			return nil, fmt.Errorf("ai.fallbacks[%d] needs provider and model", i)
		}
	}
	for i, fb := range cfg.AI.EmbedFallbacks {
		if fb.Provider == "" || fb.Model == "" {
			return nil, fmt.Errorf("ai.embed_fallbacks[%d] needs provider and model", i)
		}
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Cache.MaxBytes == 0 {
		cfg.Cache.MaxBytes = 256 << 20
	}
	if cfg.Cache.MaxAgeDays == 0 {
		cfg.Cache.MaxAgeDays = 30
	}
	if cfg.Cache.LRUSize == 0 {
		cfg.Cache.LRUSize = 2048
	}
	if cfg.Cache.LRUTTLMinutes == 0 {
		cfg.Cache.LRUTTLMinutes = 120
	}
	if cfg.Cache.CleanupSpec == "" {
		cfg.Cache.CleanupSpec = "30 3 * * *"
	}
	if cfg.Embed.BatchSize == 0 {
		cfg.Embed.BatchSize = 10
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = 4
	}
	if cfg.Index.FetchMultiplier < 2 {
		cfg.Index.FetchMultiplier = 2
	}
	switch cfg.Index.Type {
	case "memory":
	case "qdrant":
		if cfg.Index.Qdrant.URL == "" || cfg.Index.Qdrant.Collection == "" {
			return nil, fmt.Errorf("index.qdrant url/collection are required for qdrant index")
		}
	case "pgvector":
		if cfg.Index.Postgres.DSN == "" {
			return nil, fmt.Errorf("index.postgres.dsn is required for pgvector index")
		}
		if cfg.Index.Postgres.Table == "" {
			cfg.Index.Postgres.Table = "chunks"
		}
	default:
		return nil, fmt.Errorf("index.type must be memory, qdrant or pgvector")
	}
	if cfg.Context.MaxChars == 0 {
		cfg.Context.MaxChars = 8000
	}
	if cfg.Memory.MaxItems == 0 {
		cfg.Memory.MaxItems = 10
	}
	if cfg.Memory.MaxChars == 0 {
		cfg.Memory.MaxChars = 1200
	}
	return &cfg, nil
}
