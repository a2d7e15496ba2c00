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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	crawler "github.com/user/crawlgraph/internal/adapter/chromedp_crawler"
	"github.com/user/crawlgraph/internal/adapter/memory"
	"github.com/user/crawlgraph/internal/adapter/postgres"
	redis_adapter "github.com/user/crawlgraph/internal/adapter/redis"
	"github.com/user/crawlgraph/internal/coverage"
	"github.com/user/crawlgraph/internal/delivery/http/handler"
	"github.com/user/crawlgraph/internal/delivery/http/router"
	"github.com/user/crawlgraph/internal/graphstore"
	"github.com/user/crawlgraph/internal/pruning"
	"github.com/user/crawlgraph/internal/repository"
	"github.com/user/crawlgraph/internal/usecase"
	"github.com/user/crawlgraph/pkg/config"
	"github.com/user/crawlgraph/pkg/logger"
	"github.com/user/crawlgraph/pkg/metrics"
)

// backend bundles the repositories selected by STORE_BACKEND.
type backend struct {
	kv      repository.KeyValueStore
	cycles  repository.CycleRepository
	queue   repository.QueueRepository
	visited repository.VisitedRepository
	checks  map[string]handler.Pinger
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()
	log.Info("storage backend ready", zap.String("backend", cfg.StoreBackend))

	store := graphstore.New(be.kv, graphstore.Options{Key: cfg.GraphKey, EntryURLs: cfg.EntryURLs}, log)
	mitCfg := usecase.MitigationConfig{
		SimilarityThreshold:    cfg.SimilarityThreshold,
		ClusterThreshold:       cfg.ClusterThreshold,
		ExplosionNodeThreshold: cfg.ExplosionNodeThreshold,
		CoverageMinGain:        cfg.CoverageMinGain,
		CoverageStallCycles:    cfg.CoverageStallCycles,
		Pruning:                pruning.DefaultConfig(),
	}
	mitCfg.Pruning.MaxClusterSize = cfg.MaxClusterSize
	mitigator := usecase.NewMitigator(mitCfg, store, coverage.NewAnalyzer(), be.cycles, m, log)

	restored, err := mitigator.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore graph: %w", err)
	}
	if restored {
		nodes, edges, clusters := mitigator.GraphCounts()
		log.Info("restored exploration graph",
			zap.Int("nodes", nodes),
			zap.Int("edges", edges),
			zap.Int("clusters", clusters),
		)
	}

	var urlManager *usecase.URLManager
	errCh := make(chan error, 2)
	if cfg.CrawlEnabled {
		urlManager = usecase.NewURLManager(be.visited, be.queue, m, log)
		collector, err := crawler.NewChromedpCollector(crawler.Options{
			PageLoadTimeout: cfg.PageLoadTimeout,
			ScreenshotDir:   cfg.ScreenshotDir,
			Concurrency:     cfg.CrawlWorkers,
		}, crawler.NewRotator(cfg.UserAgents, cfg.Proxies), log)
		if err != nil {
			return fmt.Errorf("init collector: %w", err)
		}
		defer collector.Close()

		for _, u := range cfg.EntryURLs {
			if _, err := urlManager.Submit(ctx, u, true); err != nil {
				log.Warn("failed to seed entry url", zap.String("url", u), zap.Error(err))
			}
		}

		explorer := usecase.NewExplorer(usecase.ExplorerConfig{
			Workers:            cfg.CrawlWorkers,
			MaxDepth:           cfg.CrawlMaxDepth,
			MitigationInterval: cfg.MitigationInterval,
		}, urlManager, collector, mitigator, m, log)
		go func() {
			if err := explorer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("explorer: %w", err)
			}
		}()
		log.Info("explorer started", zap.Int("workers", cfg.CrawlWorkers), zap.Strings("entry_urls", cfg.EntryURLs))
	}

	h := handler.NewHandler(mitigator, urlManager, be.checks, log)
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.New(h, m, reg, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen on %s: %w", server.Addr, err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
		log.Error("fatal component error", zap.Error(err))
	}

	mitigator.StopMitigation()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Error("graceful shutdown failed", zap.Error(serr))
	}
	return err
}

func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	be := &backend{checks: map[string]handler.Pinger{}}

	connectRedis := func() (*redis.Client, error) {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		be.closers = append(be.closers, func() { _ = rdb.Close() })
		be.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info("redis connection established", zap.String("addr", cfg.RedisAddr))
		return rdb, nil
	}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		be.kv = memory.NewKeyValueStore()
		be.cycles = memory.NewCycleArchive()
		be.queue = memory.NewQueue()
		be.visited = memory.NewVisited()

	case config.BackendRedis:
		rdb, err := connectRedis()
		if err != nil {
			return nil, err
		}
		be.kv = redis_adapter.NewKeyValueStore(rdb)
		be.cycles = memory.NewCycleArchive()
		be.queue = redis_adapter.NewQueueRepo(rdb)
		be.visited = redis_adapter.NewVisitedRepo(rdb)

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		be.closers = append(be.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			be.close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			be.close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		be.checks["postgres"] = pool.Ping
		log.Info("postgres connection pool established")

		be.kv = postgres.NewKeyValueStore(pool)
		be.cycles = postgres.NewCycleRepo(pool)

		// The frontier is short-lived and stays on redis when crawling.
		if cfg.CrawlEnabled {
			rdb, err := connectRedis()
			if err != nil {
				be.close()
				return nil, err
			}
			be.queue = redis_adapter.NewQueueRepo(rdb)
			be.visited = redis_adapter.NewVisitedRepo(rdb)
		}

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	return be, nil
}
