package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/veritract/docpipe/internal/bootstrap"
	"github.com/veritract/docpipe/internal/chunker"
	"github.com/veritract/docpipe/internal/config"
	"github.com/veritract/docpipe/internal/corpus"
	"github.com/veritract/docpipe/internal/datasets"
	dbRedis "github.com/veritract/docpipe/internal/db/redis"
	"github.com/veritract/docpipe/internal/embedding"
	"github.com/veritract/docpipe/internal/events"
	logpkg "github.com/veritract/docpipe/internal/logger"
	"github.com/veritract/docpipe/internal/metrics"
	openaiProv "github.com/veritract/docpipe/internal/provider/openai"
	"github.com/veritract/docpipe/internal/retrieval"
	"github.com/veritract/docpipe/internal/tokens"
	chiTransport "github.com/veritract/docpipe/internal/transport/chi"
	"github.com/veritract/docpipe/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docpipe ingestion daemon",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Strings("sources", cfg.TrimmedSources()),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestionMetrics()

	// Embedding chain: openai provider -> in-process cache -> batch client
	provider := openaiProv.NewEmbedder(&openaiProv.Config{
		APIKey:              cfg.Embedding.APIKey,
		BaseURL:             cfg.Embedding.BaseURL,
		Model:               cfg.Embedding.Model,
		Dimensions:          cfg.Embedding.Dimensions,
		DocumentInstruction: cfg.Embedding.DocumentInstruction,
		QueryInstruction:    cfg.Embedding.QueryInstruction,
		Logger:              logger,
	})
	cache := embedding.NewCache(
		cfg.Embedding.CacheMaxEntries,
		time.Duration(cfg.Embedding.CacheMaxAgeSec)*time.Second,
		metrics.EmbeddingCacheTotal,
	)
	embedder := embedding.NewClient(provider, cache, cfg.Embedding.BatchLimit, logger)

	corpusStore := corpus.New(store, cfg.Database.KeyPrefix, cfg.Embedding.Dimensions, logger)
	if err := corpusStore.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}
	tenantStore := corpus.New(store, cfg.Database.KeyPrefix+"tenant:", cfg.Embedding.Dimensions, logger)
	if err := tenantStore.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure tenant vector index", zap.Error(err))
	}
	progressStore := corpus.NewProgressStore(store, cfg.Database.KeyPrefix)

	sources, err := datasets.OpenAll(cfg.TrimmedSources(), cfg.Ingestion.DataDir)
	if err != nil {
		logger.Fatal("Failed to open dataset sources", zap.Error(err))
	}

	worker := bootstrap.NewWorker(
		corpusStore, progressStore, embedder,
		events.NewZapPublisher(logger), logger,
		bootstrap.Options{
			BatchSize:          cfg.Ingestion.BatchSize,
			ErrorRateThreshold: cfg.Ingestion.ErrorRateThreshold,
			BatchDelay:         time.Duration(cfg.Ingestion.BatchDelayMS) * time.Millisecond,
			MaxRetries:         cfg.Embedding.MaxRetries,
			RetryBaseDelay:     time.Duration(cfg.Embedding.RetryBaseDelayMS) * time.Millisecond,
			SourceConcurrency:  cfg.Ingestion.SourceConcurrency,
		},
	)

	estimator := tokens.NewEstimator()
	pipeline := chiTransport.Pipeline{
		Chunker:   chunker.New(estimator),
		Estimator: estimator,
		ChunkOpts: chunker.Options{
			MaxTokens:     cfg.Chunker.MaxTokens,
			OverlapTokens: cfg.Chunker.OverlapTokens,
		},
		TokenBudget:  cfg.Budget.TokenBudget,
		MaxBodyBytes: cfg.Budget.MaxFileSizeBytes,
		Embedder:     embedder,
		Search:       retrieval.New(corpusStore, tenantStore, cfg.Retrieval.MinScore),
		TopK:         cfg.Retrieval.TopK,
		Events:       events.NewZapPublisher(logger),
	}

	server := chiTransport.NewServer(store, progressStore, pipeline, cfg.TrimmedSources(), logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting ops HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Ingestion runs under a signal-cancelled context so an interrupt lands
	// on a batch boundary and the checkpoint survives.
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ingestDone := make(chan error, 1)
	go func() {
		ingestDone <- worker.RunAll(runCtx, sources)
	}()

	select {
	case err := <-ingestDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Ingestion finished with error", zap.Error(err))
		} else {
			logger.Info("Ingestion finished")
		}
		// Keep serving progress and metrics until asked to stop.
		<-runCtx.Done()
	case <-runCtx.Done():
		logger.Info("Received shutdown signal, waiting for ingestion checkpoint")
		if err := <-ingestDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Ingestion stopped with error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Daemon stopped gracefully")
}
