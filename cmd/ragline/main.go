package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/ragline/ragline/internal/ai"
	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/embedcache"
	"github.com/ragline/ragline/internal/handler"
	"github.com/ragline/ragline/internal/index"
	"github.com/ragline/ragline/internal/job"
	"github.com/ragline/ragline/internal/memory"
	"github.com/ragline/ragline/internal/middleware"
	"github.com/ragline/ragline/internal/repo"
	"github.com/ragline/ragline/internal/retrieval"
	"github.com/ragline/ragline/internal/schedule"
	"github.com/ragline/ragline/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragline",
		Short: "ragline retrieval pipeline server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ragline server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("index", cfg.Index.Type),
	)

	// An unreadable cache store is discarded, not fatal; a cache that
	// cannot be opened at all leaves the pipeline running uncached.
	var cacheRepo *repo.EmbeddingCacheRepo
	var chunkRepo *repo.ChunkRepo
	db, err := repo.OpenOrReset(ctx, cfg.DBPath)
	if err != nil {
		logutil.GetLogger(ctx).Warn("store unavailable, running without persistence", zap.Error(err))
	} else {
		defer db.Close()
		cacheRepo = repo.NewEmbeddingCacheRepo(db)
		chunkRepo = repo.NewChunkRepo(db)
	}

	generator, err := buildGenerator(cfg.AI)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(cfg.AI)
	if err != nil {
		return err
	}

	cache := embedcache.New(ctx, cacheRepo, embedcache.Options{
		MaxBytes: cfg.Cache.MaxBytes,
		LRUSize:  cfg.Cache.LRUSize,
		LRUTTL:   time.Duration(cfg.Cache.LRUTTLMinutes) * time.Minute,
	})
	batcher := embedcache.NewBatcher(embedder, cache, cfg.Embed.BatchSize)

	idx, err := index.New(cfg.Index, chunkRepo)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	retriever := retrieval.NewRetriever(idx, cfg.Index.FetchMultiplier, retrieval.DefaultWeights)
	mem := memory.New(cfg.Memory.MaxItems)

	chatService := service.NewChatService(batcher, retriever, generator, mem, cache, service.ChatConfig{
		TopK:            cfg.Index.TopK,
		MaxContextChars: cfg.Context.MaxChars,
		MemoryMaxChars:  cfg.Memory.MaxChars,
		GenTimeout:      time.Duration(cfg.AI.Timeout) * time.Second,
	})
	ingestService := service.NewIngestService(batcher, idx)

	scheduler := schedule.NewCronScheduler()
	if cacheRepo != nil {
		if err := scheduler.AddJob(job.NewCacheCleanupJob(cacheRepo, cache, cfg.Cache.MaxAgeDays), cfg.Cache.CleanupSpec); err != nil {
			return err
		}
		if err := scheduler.AddJob(job.NewCacheSweepJob(cache), "*/30 * * * *"); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Chat:      handler.NewChatHandler(chatService),
		Documents: handler.NewDocumentHandler(ingestService),
		Stats:     handler.NewStatsHandler(chatService),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(ctx).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

// buildGenerator chains the primary provider with the configured
// fallbacks; a single entry skips the group wrapper.
func buildGenerator(cfg config.AIConfig) (ai.IGenerator, error) {
	provider, err := ai.NewProvider(cfg.Provider, providerArgs(cfg.Data))
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	entries := []ai.GeneratorEntry{
		{Name: cfg.Model, Generator: ai.NewGenerator(provider, cfg.Model)},
	}
	for _, fb := range cfg.Fallbacks {
		p, err := ai.NewProvider(fb.Provider, providerArgs(fb.Data))
		if err != nil {
			return nil, fmt.Errorf("init fallback provider %s: %w", fb.Provider, err)
		}
		entries = append(entries, ai.GeneratorEntry{Name: fb.Model, Generator: ai.NewGenerator(p, fb.Model)})
	}
	if len(entries) == 1 {
		return entries[0].Generator, nil
	}
	return ai.NewGroupGenerator(entries), nil
}

func buildEmbedder(cfg config.AIConfig) (ai.IEmbedder, error) {
	embedArgs := cfg.EmbedData
	if embedArgs == nil {
		embedArgs = cfg.Data
	}
	provider, err := ai.NewEmbedProvider(cfg.EmbedProvider, providerArgs(embedArgs))
	if err != nil {
		return nil, fmt.Errorf("init ai embed provider: %w", err)
	}
	entries := []ai.EmbedderEntry{
		{Name: cfg.EmbedModel, Embedder: ai.NewEmbedder(provider, cfg.EmbedModel)},
	}
	for _, fb := range cfg.EmbedFallbacks {
		p, err := ai.NewEmbedProvider(fb.Provider, providerArgs(fb.Data))
		if err != nil {
			return nil, fmt.Errorf("init fallback embed provider %s: %w", fb.Provider, err)
		}
		entries = append(entries, ai.EmbedderEntry{Name: fb.Model, Embedder: ai.NewEmbedder(p, fb.Model)})
	}
	if len(entries) == 1 {
		return entries[0].Embedder, nil
	}
	return ai.NewGroupEmbedder(entries), nil
}

func providerArgs(data interface{}) interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return data
}
