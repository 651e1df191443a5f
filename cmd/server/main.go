package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/ansonkao/time-tracker/internal/config"
	"github.com/ansonkao/time-tracker/internal/engine"
	"github.com/ansonkao/time-tracker/internal/googlecal"
	"github.com/ansonkao/time-tracker/internal/handlers"
	"github.com/ansonkao/time-tracker/internal/logger"
	"github.com/ansonkao/time-tracker/internal/middleware"
	"github.com/ansonkao/time-tracker/internal/session"
	"github.com/ansonkao/time-tracker/internal/store"
	"github.com/ansonkao/time-tracker/internal/telemetry"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// OpenTelemetry tracing, if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), "time-tracker-api", cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Redis backs category persistence and rate limiting
	redisKV, err := store.NewRedisKV(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisKV.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	categoryStore := store.NewCategoryStore(redisKV, zapLogger)

	sessions, err := session.NewManager(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		zapLogger.Fatal("failed_to_create_session_manager", zap.Error(err))
	}

	// Upstream calendar client and the categorization engine. The engine
	// resolves its credential from the request session at fetch time.
	calendarOpts := []googlecal.Option{
		googlecal.WithMaxResults(cfg.CalendarMaxResults),
		googlecal.WithPageCeiling(cfg.CalendarPageLimit),
	}
	if cfg.CalendarBaseURL != "" {
		calendarOpts = append(calendarOpts, googlecal.WithBaseURL(cfg.CalendarBaseURL))
	}
	calendarClient := googlecal.NewClient(zapLogger, calendarOpts...)
	eng := engine.New(calendarClient, handlers.SessionCredential{}, zapLogger)

	// Handlers
	authHandler := handlers.NewAuthHandler(sessions)
	calendarHandler := handlers.NewCalendarHandler(calendarClient, zapLogger)
	categoryHandler := handlers.NewCategoryHandler(categoryStore)
	engineHandler := handlers.NewEngineHandler(eng, categoryStore, zapLogger)
	healthChecker := handlers.NewHealthChecker(redisKV)

	// Router and middleware. gorilla/mux runs middleware in registration
	// order, so the outermost concerns come first.
	r := mux.NewRouter()

	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware("time-tracker-api"))
		zapLogger.Info("otel_middleware_enabled")
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	rateLimitMW, err := middleware.RateLimit(redisKV.Client(), cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	// Public routes
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")

	openAPIPath := filepath.Join("api", "openapi", "openapi.yaml")
	openAPIHandler := handlers.NewOpenAPIHandler(openAPIPath)
	openAPIHandler.RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	authRouter := apiRouter.PathPrefix("/auth").Subrouter()

	// Session creation is the only unauthenticated API route
	sessionRouter := authRouter.PathPrefix("/session").Subrouter()
	sessionRouter.Use(rateLimitMW)
	authHandler.RegisterRoutes(sessionRouter)

	protectedAuthRouter := authRouter.PathPrefix("").Subrouter()
	protectedAuthRouter.Use(middleware.Auth(sessions))
	protectedAuthRouter.Use(rateLimitMW)
	authHandler.RegisterProtectedRoutes(protectedAuthRouter)

	calendarRouter := apiRouter.PathPrefix("/calendar").Subrouter()
	calendarRouter.Use(middleware.Auth(sessions))
	calendarRouter.Use(rateLimitMW)
	calendarHandler.RegisterRoutes(calendarRouter)

	categoryRouter := apiRouter.PathPrefix("/categories").Subrouter()
	categoryRouter.Use(middleware.Auth(sessions))
	categoryRouter.Use(rateLimitMW)
	categoryHandler.RegisterRoutes(categoryRouter)

	engineRouter := apiRouter.PathPrefix("/engine").Subrouter()
	engineRouter.Use(middleware.Auth(sessions))
	engineRouter.Use(rateLimitMW)
	engineHandler.RegisterRoutes(engineRouter)

	// Catch-all OPTIONS handler so preflight requests succeed even where
	// routes don't explicitly allow the method
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, `{"version":"1.0.0","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = err
	}
}
