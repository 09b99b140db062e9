package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/recordreview-backend/internal/adapter/postgres"
	"github.com/heartmarshall/recordreview-backend/internal/adapter/postgres/audit"
	"github.com/heartmarshall/recordreview-backend/internal/adapter/postgres/operator"
	recordrepo "github.com/heartmarshall/recordreview-backend/internal/adapter/postgres/record"
	"github.com/heartmarshall/recordreview-backend/internal/adapter/provider/embedding"
	"github.com/heartmarshall/recordreview-backend/internal/adapter/redis"
	"github.com/heartmarshall/recordreview-backend/internal/adapter/redis/recordcache"
	"github.com/heartmarshall/recordreview-backend/internal/config"
	"github.com/heartmarshall/recordreview-backend/internal/crypto/fieldcodec"
	"github.com/heartmarshall/recordreview-backend/internal/domain"
	"github.com/heartmarshall/recordreview-backend/internal/metrics"
	"github.com/heartmarshall/recordreview-backend/internal/service/balancer"
	"github.com/heartmarshall/recordreview-backend/internal/service/reclaim"
	"github.com/heartmarshall/recordreview-backend/internal/service/record"
	"github.com/heartmarshall/recordreview-backend/internal/transport/rest"
)

// Components is the fully wired engine. Commands that only need a subset
// (one-shot sweeps, operator provisioning) build it and use what they need.
type Components struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Registry  *prometheus.Registry
	Operators *operator.Repo
	Records   *record.Service
	Balancer  *balancer.Balancer
	Scheduler *reclaim.Scheduler
}

// Build connects to the backing stores and wires every service.
// The caller must call Close.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(ctx, cfg.Database.DSN, logger); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	c := &Components{Pool: pool}
	if err := c.wire(ctx, cfg, logger); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	codec, err := fieldcodec.New(cfg.Crypto.MasterKey())
	if err != nil {
		return fmt.Errorf("field codec: %w", err)
	}

	emb, err := newEmbedder(cfg.Embedding, logger)
	if err != nil {
		return err
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	c.Redis = rc

	var cache *recordcache.Cache
	if rc != nil {
		cache = recordcache.New(rc.Client, cfg.Cache.TTL, logger)
		logger.Info("record cache enabled", slog.Duration("ttl", cfg.Cache.TTL))
	}

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(c.Registry)

	records := recordrepo.New(c.Pool)
	auditRepo := audit.New(c.Pool)
	c.Operators = operator.New(c.Pool)
	tx := postgres.NewTxManager(c.Pool)

	c.Records = record.NewService(logger, records, c.Operators, auditRepo, tx, codec, emb, cacheOrNil(cache), m, record.Config{
		LockTTL:              cfg.Lock.TTL,
		EmbedTimeout:         cfg.Embedding.Timeout,
		DefaultSearchLimit:   cfg.Search.DefaultLimit,
		MaxSearchLimit:       cfg.Search.MaxLimit,
		DefaultSuggestions:   cfg.Search.SuggestionLimit,
		SuggestionCandidates: cfg.Search.SuggestionCandidates,
	})
	c.Balancer = balancer.New(logger, c.Operators)
	c.Scheduler = reclaim.NewScheduler(logger, records, c.Records, c.Operators, c.Balancer, auditRepo, reclaimCacheOrNil(cache), tx, m, reclaim.Config{
		Interval:       cfg.Reclaim.Interval,
		LockTTL:        cfg.Lock.TTL,
		BatchSize:      cfg.Reclaim.BatchSize,
		ReconcileEvery: cfg.Reclaim.ReconcileEvery,
	})
	return nil
}

// Close releases the connections opened by Build.
func (c *Components) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// Run is the application entry point. It wires the engine, starts the
// reclamation scheduler and serves health and metrics until ctx is done.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("embedding_provider", cfg.Embedding.Provider),
		slog.Bool("reclaim_enabled", cfg.Reclaim.Enabled),
	)

	c, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	var cachePinger interface {
		Ping(ctx context.Context) error
	}
	if c.Redis != nil {
		cachePinger = c.Redis
	}
	health := rest.NewHealthHandler(c.Pool, cachePinger, BuildVersion())

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      rest.NewOpsRouter(health, c.Registry, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("ops server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down ops server")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Reclaim.Enabled {
		g.Go(func() error {
			return c.Scheduler.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("application stopped")
	return nil
}

func newEmbedder(cfg config.EmbeddingConfig, logger *slog.Logger) (interface {
	Embed(ctx context.Context, text string) (domain.Embedding, error)
}, error) {
	switch cfg.Provider {
	case "hashing":
		return embedding.NewHashingEmbedder(cfg.Dimensions), nil
	case "http":
		return embedding.NewClient(embedding.ClientConfig{
			URL:        cfg.URL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
			RatePerSec: cfg.RatePerSec,
			Burst:      cfg.Burst,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// cacheOrNil keeps a disabled cache an untyped nil for the services.
func cacheOrNil(c *recordcache.Cache) interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Record, int64, bool)
	Set(ctx context.Context, rec *domain.Record, gen int64)
	Invalidate(ctx context.Context, id uuid.UUID)
} {
	if c == nil {
		return nil
	}
	return c
}

func reclaimCacheOrNil(c *recordcache.Cache) interface {
	Invalidate(ctx context.Context, id uuid.UUID)
} {
	if c == nil {
		return nil
	}
	return c
}
