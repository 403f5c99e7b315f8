// cmd/validation-worker/main.go
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

	"citation-validator/internal/api"
	"citation-validator/internal/common/aws"
	"citation-validator/internal/common/config"
	"citation-validator/internal/common/database"
	"citation-validator/internal/common/events"
	apihttp "citation-validator/internal/common/http"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/common/observability"
	"citation-validator/internal/common/verdict"
	"citation-validator/internal/service"
	"citation-validator/internal/store"
	"citation-validator/internal/workers/validation/consensus"
	jobtracker "citation-validator/internal/workers/validation/job-tracker"
	queueworker "citation-validator/internal/workers/validation/queue-worker"
	tier2panel "citation-validator/internal/workers/validation/tier2-panel"
	tier3panel "citation-validator/internal/workers/validation/tier3-panel"
	"citation-validator/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console", "stdout")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting validation worker...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", cfg.Storage.Driver),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Storage and progress bus ---
	var (
		st  store.Store
		bus events.Bus
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		st = store.NewMemoryStore()
		bus = events.NewMemoryBus()
		zapLog.Warn("using in-memory storage, state is lost on restart")

	default:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")
		st = store.NewPostgresStore(pg, log)

		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")
		bus = events.NewRedisBus(rdb.Client, log)
	}

	// --- Verdict provider and panels ---
	attemptTimeout := config.GetDuration(cfg.Provider.Timeout)
	provider := verdict.NewOpenAIProvider(
		cfg.Provider,
		apihttp.NewClient(attemptTimeout).WithUserAgent(cfg.App.Name+"/"+cfg.App.Version),
		log,
	)
	if err := provider.CheckCredentials(); err != nil {
		zapLog.Warn("verdict provider not configured, validation requests will be rejected", zap.Error(err))
	}

	// Panels bound each persona by the whole retry budget, not one attempt.
	callTimeout := config.GetDuration(cfg.Provider.CallTimeout)

	reg, err := registry.LoadOrDefault(cfg.RegistryPath)
	if err != nil {
		zapLog.Fatal("panel registry load failed", zap.Error(err))
	}

	t2cfg := tier2panel.LoadConfig()
	if callTimeout > 0 {
		t2cfg.CallTimeout = callTimeout
	}
	tier2, err := tier2panel.NewHandler(t2cfg, provider, reg.Panel(registry.TierTier2), consensus.NewEngine(cfg.Consensus), obs, log)
	if err != nil {
		zapLog.Fatal("tier2 panel init failed", zap.Error(err))
	}

	t3cfg := tier3panel.LoadConfig()
	if callTimeout > 0 {
		t3cfg.CallTimeout = callTimeout
	}
	tier3, err := tier3panel.NewHandler(t3cfg, provider, reg.Panel(registry.TierTier3), obs, log)
	if err != nil {
		zapLog.Fatal("tier3 panel init failed", zap.Error(err))
	}

	// --- Terminal job notifications ---
	var notifier jobtracker.Notifier
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		notifier = aws.NewJobNotifier(snsClient, cfg.Notifications.SNS.TopicARN)
		zapLog.Info("SNS job notifications enabled", zap.String("topicArn", cfg.Notifications.SNS.TopicARN))
	}

	tracker := jobtracker.NewHandler(st, bus, notifier, log)

	// --- Queue worker pool ---
	var pool *queueworker.Pool
	var waker service.Waker
	if cfg.Workers.Enabled {
		wcfg := queueworker.LoadConfig(cfg)
		handler := queueworker.NewHandler(wcfg, st, tier2, tier3, tracker, log)
		pool = queueworker.NewPool(wcfg, handler, log)
		pool.Start(ctx)
		waker = pool
		zapLog.Info("queue worker pool started",
			zap.Int("concurrency", wcfg.Concurrency),
			zap.Int("batchSize", wcfg.BatchSize),
		)
	} else {
		zapLog.Info("queue workers disabled, serving API only")
	}

	// --- HTTP API ---
	svc := service.NewValidationService(st, tracker, provider, waker, log)
	h := api.NewValidationHandler(svc, bus, config.GetDuration(cfg.Server.StreamPollInterval), log)
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.NewRouter(h, svc.Ping, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Streams hold connections open until their job ends; whatever is still
	// open at the deadline is closed.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("http server shutdown incomplete", zap.Error(err))
		_ = srv.Close()
	}
	if pool != nil {
		pool.Stop()
	}
	cancel()

	zapLog.Info("Validation worker stopped")
}
