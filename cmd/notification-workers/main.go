// cmd/notification-workers/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notification-workers/internal/common/config"
	"notification-workers/internal/common/consumer"
	"notification-workers/internal/common/database"
	"notification-workers/internal/common/lock"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/observability"
	"notification-workers/internal/store"
	"notification-workers/internal/workers/fanout"
	"notification-workers/internal/workers/receiver"
	"notification-workers/internal/workers/reminder"
	"notification-workers/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting notification workers...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(ctx, cfg.Database.Postgres, 5*time.Second)
		return err
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	rc := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(ctx, func() error {
		return rc.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rc.Close()
	zapLog.Info("Redis connected successfully")

	st := store.NewStore(pg.DB)
	reg := registry.Default()
	pub := consumer.NewRedisPublisher(rc.Client, reg, cfg.Streams.MaxLen)

	// --- Channels ---
	awsLoader := newAWSLoader(cfg.AWS.Region)
	sender, err := buildSender(ctx, cfg, awsLoader)
	if err != nil {
		zapLog.Fatal("email sender init failed", zap.Error(err))
	}
	emitter, err := buildEmitter(ctx, cfg, rc.Client, awsLoader, log)
	if err != nil {
		zapLog.Fatal("in-app emitter init failed", zap.Error(err))
	}
	recorder, err := buildRecorder(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("audit init failed", zap.Error(err))
	}

	// --- Services ---
	router := fanout.NewRouter(st, pub, sender, log,
		fanout.WithRecorder(recorder),
		fanout.WithAppURL(cfg.Templates.AppURL),
	)

	var opts []receiver.Option
	var scheduler *reminder.Scheduler
	if cfg.Reminder.Enabled {
		scheduler = reminder.NewScheduler(rc.Client, cfg.Reminder.KeyPrefix)
		opts = append(opts, receiver.WithReminders(scheduler, time.Duration(cfg.Reminder.Delay)*time.Second))
	}
	svc := receiver.NewService(st, router, log, opts...)

	// --- Consumers ---
	consumers, cleanup, err := buildConsumers(ctx, cfg, reg, rc.Client, sender, emitter, svc, obs, log)
	if err != nil {
		zapLog.Fatal("consumer init failed", zap.Error(err))
	}

	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func(c *consumer.Consumer) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				zapLog.Error("consumer stopped with error", zap.Error(err))
			}
		}(c)
	}

	if scheduler != nil {
		handler := reminder.NewHandler(scheduler, st, svc,
			lock.NewLocker(rc.Client, "lock:"),
			config.GetDuration(cfg.Reminder.LockTTL),
			time.Duration(cfg.Reminder.RetryDelay)*time.Second,
			log,
		)
		listener := reminder.NewListener(rc.Client, cfg.Database.Redis.DB, cfg.Reminder.KeyPrefix, handler, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Run(ctx); err != nil {
				zapLog.Error("reminder listener stopped with error", zap.Error(err))
			}
		}()
	}
	zapLog.Info("All consumers registered successfully", zap.Int("consumers", len(consumers)))

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           healthMux(st, rc),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping consumers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wg.Wait()
	cleanup(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}

	zapLog.Info("Notification workers stopped gracefully")
}

// healthMux serves liveness, readiness (postgres and redis reachable) and metrics.
func healthMux(st store.Store, rc *database.RedisClient) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		body := map[string]string{"time": time.Now().Format(time.RFC3339)}
		code := http.StatusOK
		if err := st.Ping(ctx); err != nil {
			body["postgres"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := rc.Ping(ctx); err != nil {
			body["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		body["status"] = "ready"
		if code != http.StatusOK {
			body["status"] = "not ready"
		}
		writeStatus(w, code, body)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
