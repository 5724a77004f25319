package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/tjfontaine/kms-gateway/internal/config"
	"github.com/tjfontaine/kms-gateway/internal/gateway"
	"github.com/tjfontaine/kms-gateway/internal/health"
	"github.com/tjfontaine/kms-gateway/internal/kms"
	"github.com/tjfontaine/kms-gateway/internal/ratelimit"
	"github.com/tjfontaine/kms-gateway/internal/server"
	"github.com/tjfontaine/kms-gateway/internal/storage"
	"github.com/tjfontaine/kms-gateway/internal/storage/memory"
	"github.com/tjfontaine/kms-gateway/internal/storage/sqlite"
	"github.com/tjfontaine/kms-gateway/internal/telemetry"
)

const version = "1.0.0"

// expirySweepInterval is how often expired key metadata is purged.
const expirySweepInterval = time.Minute

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdownTracer, err := telemetry.InitTracer("kms-gateway", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	keys, err := newKeyStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open key store: %v", err)
	}
	defer keys.Close()

	client := kms.New(cfg.Backend.BaseURL,
		kms.WithTimeout(cfg.Backend.Timeout),
		kms.WithBackoff(kms.Backoff{
			Base:       cfg.Backend.BackoffBase,
			Factor:     2,
			Max:        cfg.Backend.BackoffMax,
			MaxRetries: cfg.Backend.MaxRetries,
		}),
		kms.WithLogger(logger),
	)

	checker := health.NewChecker(client, version, 5*time.Second, logger)

	// Startup diagnostics: probe the backend once so a misconfigured URL is
	// visible immediately. The gateway still starts when the backend is down.
	snap := checker.Check(context.Background())
	logger.Info("backend probe",
		slog.String("backend_url", cfg.Backend.BaseURL),
		slog.String("backend_status", snap.BackendStatus),
	)

	limiter := newLimiter(cfg.RateLimit, logger)

	h := gateway.NewHandler(client, keys, checker, logger, cfg.Debug)

	srv := server.New(cfg.Server.Port, cfg.Server.RequestTimeout, logger)
	srv.Router.Get("/health", h.HandleHealth)
	srv.Router.Group(func(r chi.Router) {
		r.Use(server.APIKeyMiddleware(cfg.Auth.APIKey))
		r.Use(server.RateLimitMiddleware(limiter, logger))
		h.RegisterOperations(r)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweepExpiredKeys(ctx, keys, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-sigCh:
		logger.Info("shutdown signal received, stopping gateway")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("gateway shutdown complete")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newKeyStore(cfg config.StorageConfig) (storage.KeyStore, error) {
	if cfg.Type == "sqlite" {
		return sqlite.New(cfg.SQLite.Path)
	}
	return memory.New(), nil
}

func newLimiter(cfg config.RateLimitConfig, logger *slog.Logger) ratelimit.Limiter {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		logger.Info("rate limit counters centralized in redis", slog.String("addr", cfg.RedisAddr))
		return ratelimit.NewRedis(client, cfg.PerMinute, logger)
	}
	return ratelimit.NewLocal(cfg.PerMinute)
}

// sweepExpiredKeys periodically purges expired key metadata.
func sweepExpiredKeys(ctx context.Context, keys storage.KeyStore, logger *slog.Logger) {
	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := keys.DeleteExpired(ctx, time.Now())
			if err != nil {
				logger.Warn("expired key sweep failed", slog.String("error", err.Error()))
				continue
			}
			if deleted > 0 {
				logger.Info("expired keys purged", slog.Int("count", deleted))
			}
		}
	}
}
