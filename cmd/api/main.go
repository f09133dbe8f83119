// Package main implements the FAQ bot API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/WessleyAI/faqbot/engine/domain"
	"github.com/WessleyAI/faqbot/engine/embed"
	"github.com/WessleyAI/faqbot/engine/knowledge"
	"github.com/WessleyAI/faqbot/engine/qa"
	"github.com/WessleyAI/faqbot/engine/semantic"
	"github.com/WessleyAI/faqbot/pkg/cohere"
	"github.com/WessleyAI/faqbot/pkg/fn"
	"github.com/WessleyAI/faqbot/pkg/metrics"
	"github.com/WessleyAI/faqbot/pkg/natsutil"
	"github.com/WessleyAI/faqbot/pkg/resilience"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// newBreaker guards the Cohere client. The breaker gauge is seeded with the
// initial state so /metrics reports the dependency before any transition.
func newBreaker(logger *slog.Logger, m *metrics.Metrics) *resilience.Breaker {
	b := resilience.NewBreaker(resilience.BreakerOpts{
		Name:          "cohere",
		FailThreshold: 5,
		Timeout:       30 * time.Second,
		HalfOpenMax:   1,
		IsFailure:     func(err error) bool { return !cohere.IsClientError(err) },
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state change", "dependency", name, "from", from.String(), "to", to.String())
			m.SetBreakerState(name, int(to))
		},
	})
	m.SetBreakerState("cohere", int(b.State()))
	return b
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// --- Embedding provider ---
	breaker := newBreaker(logger, m)
	client := cohere.NewClient(cfg.APIKey,
		cohere.WithBaseURL(cfg.CohereBaseURL),
		cohere.WithEmbedModel(cfg.EmbedModel),
		cohere.WithRerankModel(cfg.RerankModel),
		cohere.WithBreaker(breaker),
	)

	var embedder embed.Embedder = embed.NewCohere(client, m)
	if cfg.RedisURL != "" {
		rdb, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, query cache disabled", "err", err)
		} else {
			defer rdb.Close()
			embedder = embed.NewCached(embedder, rdb, embed.CacheOptions{
				Namespace: client.EmbedModel(),
				TTL:       cfg.EmbedCacheTTL,
				Logger:    logger,
				Metrics:   m,
			})
		}
	}

	// --- Similarity index ---
	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	index := semantic.NewIndex(backend, embedder, cfg.Collection, semantic.Options{Logger: logger, Metrics: m})
	defer index.Close()

	load := func() ([]domain.Entry, error) { return knowledge.Load(cfg.DataFile) }
	entries, err := load()
	if err != nil {
		return fmt.Errorf("load knowledge set: %w", err)
	}
	if err := buildIndex(ctx, index, entries, logger); err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	// --- Retrieval policy ---
	opts := qa.Options{TopK: cfg.TopK, Threshold: cfg.Threshold, Logger: logger, Metrics: m}
	if cfg.RerankEnabled {
		opts.Reranker = embed.NewCohereReranker(client)
	}
	srv := &server{
		qa:      qa.New(embedder, index, opts),
		index:   index,
		load:    load,
		topK:    cfg.TopK,
		reindex: cfg.Reindex,
		metrics: m,
		logger:  logger,
	}

	// --- Answer events ---
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "faqbot-api", logger)
		if err != nil {
			logger.Warn("nats unavailable, answer events disabled", "err", err)
		} else {
			defer nc.Drain()
			srv.events = natsPublisher{nc: nc}
		}
	}

	// --- HTTP server ---
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.routes(cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "backend", cfg.Backend, "entries", index.Len())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

func newBackend(cfg Config) (semantic.Backend, error) {
	switch cfg.Backend {
	case "chromem":
		return semantic.NewChromemBackend(), nil
	case "qdrant":
		b, err := semantic.NewQdrantBackend(cfg.QdrantURL)
		if err != nil {
			return nil, fmt.Errorf("qdrant connect: %w", err)
		}
		return b, nil
	default:
		return semantic.NewMemoryBackend(), nil
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// buildIndex retries transient provider failures. Client errors such as a
// rejected API key fail immediately.
func buildIndex(ctx context.Context, index *semantic.Index, entries []domain.Entry, logger *slog.Logger) error {
	opts := fn.DefaultRetry
	opts.MaxAttempts = 4
	opts.Retryable = func(err error) bool { return !cohere.IsClientError(err) }
	opts.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("index build failed, retrying", "attempt", attempt, "wait", wait, "err", err)
	}
	_, err := fn.Retry(ctx, opts, func(ctx context.Context) fn.Result[struct{}] {
		return fn.FromPair(struct{}{}, index.Build(ctx, entries))
	}).Unwrap()
	return err
}
