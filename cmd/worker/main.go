package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/internal/config"
	"github.com/benvon/eisenhower-todo/internal/database"
	"github.com/benvon/eisenhower-todo/internal/logger"
	"github.com/benvon/eisenhower-todo/internal/queue"
	"github.com/benvon/eisenhower-todo/internal/workers"
)

const (
	serviceName = "eisenhower-todo-worker"

	connectAttempts     = 10
	connectInitialDelay = 2 * time.Second
	connectMaxDelay     = 30 * time.Second

	dlqGCInterval  = time.Hour
	dlqGCRetention = 24 * time.Hour
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireQueue(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag
	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Duration("reclassify_interval", cfg.ReclassifyInterval),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	db, err := database.New(cfg.DatabaseURL, cfg.PoolConfig())
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobQueue, err := connectQueue(ctx, cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	taskRepo := database.NewTaskRepository(db)
	scheduler := workers.NewScheduler(jobQueue, taskRepo, cfg.ReclassifyInterval, zapLogger)
	reclassifier := workers.NewReclassifier(taskRepo, jobQueue, zapLogger)
	dlqGC := queue.NewGarbageCollector(jobQueue, dlqGCInterval, dlqGCRetention, zapLogger)

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("worker_component_stopped", zap.String("component", name), zap.Error(err))
				// A dead consumer must not leave the process half alive.
				stop()
			}
		}()
	}

	run("scheduler", scheduler.Start)
	run("dlq_gc", dlqGC.Start)
	run("reclassifier", func(ctx context.Context) error {
		return reclassifier.Run(ctx, cfg.RabbitMQPrefetch)
	})

	zapLogger.Info("worker_started")
	<-ctx.Done()
	zapLogger.Info("worker_shutting_down")
	wg.Wait()
	zapLogger.Info("worker_exited")
}

// connectQueue dials RabbitMQ with exponential backoff to ride out broker startup
func connectQueue(ctx context.Context, url string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	var lastErr error
	for attempt := 0; attempt < connectAttempts; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err

		delay := connectInitialDelay * time.Duration(1<<uint(attempt))
		if delay > connectMaxDelay {
			delay = connectMaxDelay
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", connectAttempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
