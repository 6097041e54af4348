package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tableside/internal/api"
	"tableside/internal/config"
	"tableside/internal/database"
	"tableside/internal/idempotency"
	"tableside/internal/logging"
	"tableside/internal/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Server.MetricsPort = *metricsPort
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := initializeDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	keys, err := initializeIdempotency(ctx, cfg.Redis, db, logger)
	if err != nil {
		logger.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}

	methods, err := cfg.Payments.Methods()
	if err != nil {
		logger.Fatal("Invalid payment configuration", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	metrics := monitoring.NewMetrics()
	srv := api.NewServer(database.NewStore(db, methods), keys,
		api.WithLogger(logger),
		api.WithMetrics(metrics),
		api.WithJWTSecret(cfg.Auth.JWTSecret),
	)

	metricsServer := startMetricsServer(cfg.Server.MetricsPort, metrics, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down servers")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		srv.Hub().Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", zap.Error(err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", zap.Error(err))
		}

		cancel()
	}()

	logger.Info("Starting API server",
		zap.Int("port", cfg.Server.Port),
		zap.Strings("payment_methods", cfg.Payments.AcceptedMethods),
		zap.Bool("auth", cfg.Auth.JWTSecret != ""))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("API server error", zap.Error(err))
	}
	<-ctx.Done()
}

func initializeDB(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	if cfg.SeedFile == "" {
		return db, nil
	}

	data, err := database.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := database.Seed(db, data); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Catalog seeded",
		zap.String("file", cfg.SeedFile),
		zap.Int("categories", len(data.Categories)),
		zap.Int("tables", len(data.Tables)),
		zap.Int("items", len(data.MenuItems)))
	return db, nil
}

// initializeIdempotency prefers redis when an address is configured and
// falls back to a table in the main database.
func initializeIdempotency(ctx context.Context, cfg config.RedisConfig, db *gorm.DB, logger *zap.Logger) (idempotency.Store, error) {
	if cfg.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
		}
		logger.Info("Using redis idempotency store", zap.String("addr", cfg.Addr))
		return idempotency.NewRedisStore(client, cfg.IdempotencyTTL), nil
	}

	store, err := idempotency.NewGormStore(db, cfg.IdempotencyTTL)
	if err != nil {
		return nil, err
	}
	go purgeExpiredKeys(ctx, store, logger)
	logger.Info("Using database idempotency store")
	return store, nil
}

func purgeExpiredKeys(ctx context.Context, store *idempotency.GormStore, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.Purge(ctx)
			if err != nil {
				logger.Warn("Failed to purge idempotency keys", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("Purged idempotency keys", zap.Int64("count", n))
			}
		}
	}
}

func startMetricsServer(port int, metrics *monitoring.Metrics, logger *zap.Logger) *http.Server {
	metricsRouter := gin.New()
	metricsRouter.Use(gin.Recovery())
	metricsRouter.GET("/metrics", gin.WrapH(metrics.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	go func() {
		logger.Info("Starting metrics server", zap.Int("port", port))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()
	return metricsServer
}
