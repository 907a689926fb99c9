package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pans-scales-server/internal/api"
	"github.com/pans-scales-server/internal/cache"
	"github.com/pans-scales-server/internal/config"
	"github.com/pans-scales-server/internal/database"
	"github.com/pans-scales-server/internal/domain"
	"github.com/pans-scales-server/internal/repository"
	"github.com/pans-scales-server/internal/service"
	"github.com/pans-scales-server/internal/store"
	"github.com/pans-scales-server/pkg/scales"
)

func main() {
	configFile := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// Load configuration
	configManager, err := config.NewManager(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	engine, err := scales.NewEngine(scales.WithScoringConfig(cfg.Scoring))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create scoring engine")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resultStore, checks, closeStore := openStore(ctx, configManager, logger)
	defer closeStore()

	resultCache, cacheChecks, closeCache := openCache(ctx, cfg.Cache, logger)
	defer closeCache()
	checks = append(checks, cacheChecks...)

	svc := service.NewScoringService(logger, engine, service.Options{
		Store:       resultStore,
		Cache:       resultCache,
		SaveTimeout: cfg.Storage.SaveTimeout,
		CacheTTL:    cfg.Cache.DefaultTTL,
	})

	server := api.NewServer(configManager, svc, logger)
	for _, c := range checks {
		server.AddHealthCheck(c.name, c.check)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"storage": cfg.Storage.Driver,
	}).Info("Starting PANS scales server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

type namedCheck struct {
	name  string
	check api.HealthChecker
}

// openStore connects the configured result store. The "none" driver runs
// the server without persistence.
func openStore(ctx context.Context, cm *config.Manager, logger *logrus.Logger) (domain.ResultStore, []namedCheck, func()) {
	cfg := cm.GetConfig()

	switch cfg.Storage.Driver {
	case "postgres":
		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		if err := database.Migrate(ctx, cm.GetDatabaseURL(), cfg.Database.MigrationsPath, logger); err != nil {
			db.Close()
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		return repository.NewScoreRecordRepository(db.Pool, logger),
			[]namedCheck{{name: "database", check: db}},
			db.Close

	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open results database")
		}
		return s, nil, func() { s.Close() }

	default:
		logger.Warn("Result persistence disabled")
		return nil, nil, func() {}
	}
}

// openCache layers an in-memory cache in front of Redis when a Redis URL is
// configured. An unreachable Redis degrades to memory only.
func openCache(ctx context.Context, cfg domain.CacheConfig, logger *logrus.Logger) (domain.ResultCache, []namedCheck, func()) {
	memory := cache.NewMemoryCache(cfg.MemoryMaxItems, cfg.DefaultTTL)
	if cfg.RedisURL == "" {
		return memory, nil, func() {}
	}

	redisCache, err := cache.NewRedisCache(ctx, cfg)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, using in-memory cache only")
		return memory, nil, func() {}
	}
	return cache.NewTieredCache(logger, memory, redisCache),
		[]namedCheck{{name: "redis", check: api.HealthCheckFunc(redisCache.Ping)}},
		func() { redisCache.Close() }
}
