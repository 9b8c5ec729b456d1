package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/api/openapi"
	"github.com/benvon/eisenhower-todo/internal/config"
	"github.com/benvon/eisenhower-todo/internal/database"
	"github.com/benvon/eisenhower-todo/internal/handlers"
	"github.com/benvon/eisenhower-todo/internal/logger"
	"github.com/benvon/eisenhower-todo/internal/middleware"
	"github.com/benvon/eisenhower-todo/internal/queue"
	"github.com/benvon/eisenhower-todo/internal/services/oidc"
	"github.com/benvon/eisenhower-todo/internal/services/tasks"
	"github.com/benvon/eisenhower-todo/internal/telemetry"
)

const serviceName = "eisenhower-todo-api"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracerProvider := initTracing(cfg, zapLogger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := telemetry.Shutdown(shutdownCtx, tracerProvider); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

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

	if cfg.MigrateOnStart {
		if err := database.Migrate(db, zapLogger); err != nil {
			zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
		}
	}

	redisClient, err := middleware.NewRedisClient(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	checks := map[string]handlers.CheckFunc{
		"database": db.HealthCheck,
		"redis":    redisClient.Ping,
	}

	// The API itself never publishes jobs. A configured queue only joins the
	// extended health check.
	if cfg.RabbitMQURL != "" {
		jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Warn("rabbitmq_unavailable_for_health_checks", zap.Error(err))
		} else {
			defer func() { _ = jobQueue.Close() }()
			checks["queue"] = jobQueue.HealthCheck
		}
	}

	// Repositories
	userRepo := database.NewUserRepository(db)
	taskRepo := database.NewTaskRepository(db)
	oidcConfigRepo := database.NewOIDCConfigRepository(db)
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	// Services
	taskService := tasks.NewService(taskRepo, zapLogger)
	oidcProvider := oidc.NewProvider(oidcConfigRepo)
	verifier := oidcProvider.TokenVerifier(cfg.OIDCProvider, oidc.NewJWKSManager())

	// Handlers
	authHandler := handlers.NewAuthHandler(oidcProvider, cfg.OIDCProvider, zapLogger)
	taskHandler := handlers.NewTaskHandler(taskService)
	statsHandler := handlers.NewStatsHandler(taskService)
	adminHandler := handlers.NewAdminHandler(taskService)
	infoHandler := handlers.NewInfoHandler(version, cfg.BaseURL)
	healthChecker := handlers.NewHealthChecker(checks, zapLogger)
	openAPIHandler, err := handlers.NewOpenAPIHandler(openapi.Document)
	if err != nil {
		zapLogger.Fatal("failed_to_load_openapi_document", zap.Error(err))
	}

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, outermost first.
	if tracerProvider != nil {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, time.Minute)
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	limiterStore, err := redisstore.NewStore(redisClient.Client())
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	defaultRate := cfg.DefaultRateLimit
	if defaultRate == "" {
		defaultRate = middleware.DefaultRatelimitRate
	}
	rateLimitReloader, err := middleware.NewRateLimitReloader(limiterStore, ratelimitConfigRepo, defaultRate, zapLogger, time.Minute)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_reloader", zap.Error(err))
	}
	rateLimitMW := rateLimitReloader.Middleware()
	authMW := middleware.Auth(userRepo, verifier, zapLogger)

	// Public routes
	r.HandleFunc("/", infoHandler.Root).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", infoHandler.Version).Methods(http.MethodGet)
	openAPIHandler.RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	loginRouter := apiRouter.PathPrefix("/auth/oidc").Subrouter()
	loginRouter.Use(rateLimitMW)
	authHandler.RegisterLoginRoutes(loginRouter)

	protected := apiRouter.PathPrefix("").Subrouter()
	protected.Use(authMW)
	protected.Use(rateLimitMW)
	authHandler.RegisterRoutes(protected.PathPrefix("/auth").Subrouter())
	taskHandler.RegisterRoutes(protected.PathPrefix("/tasks").Subrouter())
	statsHandler.RegisterRoutes(protected.PathPrefix("/stats").Subrouter())
	adminHandler.RegisterRoutes(protected.PathPrefix("/admin").Subrouter())

	// Preflight requests are answered by the CORS middleware before routing
	// matters, this keeps mux from turning them into 405s.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   35 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	reloadCtx, reloadCancel := context.WithCancel(context.Background())
	defer reloadCancel()
	go corsReloader.Start(reloadCtx)
	go rateLimitReloader.Start(reloadCtx)

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	reloadCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// initTracing returns nil when tracing is disabled or cannot start
func initTracing(cfg *config.Config, zapLogger *zap.Logger) *sdktrace.TracerProvider {
	if !cfg.OTELEnabled {
		return nil
	}
	if cfg.OTELEndpoint == "" {
		zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		return nil
	}
	tp, err := telemetry.InitTracer(context.Background(), telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       cfg.OTELEndpoint,
		Insecure:       true,
	})
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		return nil
	}
	zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
	return tp
}
