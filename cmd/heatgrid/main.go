package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	heatgrid "github.com/evidencelab/heatgrid"
	"github.com/evidencelab/heatgrid/internal/config"
	"github.com/evidencelab/heatgrid/internal/db"
	dbRedis "github.com/evidencelab/heatgrid/internal/db/redis"
	logpkg "github.com/evidencelab/heatgrid/internal/logger"
	"github.com/evidencelab/heatgrid/internal/metrics"
	catalogrepo "github.com/evidencelab/heatgrid/internal/repository/catalog"
	chiTransport "github.com/evidencelab/heatgrid/internal/transport/chi"
	"github.com/evidencelab/heatgrid/internal/transport/searchapi"
	"github.com/evidencelab/heatgrid/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting heatgrid API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("data_source", cfg.Backend.DataSource),
	)

	// Optional Redis catalog cache. Without addrs every catalog read
	// goes straight to the backend.
	var store db.Store
	var kv db.KVStore
	var pinger db.Pinger
	if len(cfg.Cache.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(context.Background(), readiness); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		kv = store
		pinger = store
		logger.Info("Connected to cache store", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Register grid metrics explicitly (no init())
	metrics.RegisterGridMetrics()

	backend, err := searchapi.NewClient(searchapi.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: time.Duration(cfg.Backend.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Failed to create backend client", zap.Error(err))
	}

	catalogTTL := time.Duration(cfg.Cache.CatalogTTLSec) * time.Second
	catalogs := catalogrepo.New(backend, kv, catalogTTL, logger)

	sessionTTL := time.Duration(cfg.Grid.SessionTTLSec) * time.Second
	registry := chiTransport.NewRegistry(sessionTTL, logger)
	defer registry.Close()

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go registry.Janitor(janitorCtx)

	newController := func() (*heatgrid.Controller, error) {
		return heatgrid.New(
			heatgrid.WithSearcher(backend),
			heatgrid.WithCatalogFetcher(catalogs),
			heatgrid.WithDataSource(cfg.Backend.DataSource),
			heatgrid.WithBatchSize(cfg.Grid.BatchSize),
			heatgrid.WithBatchInterval(time.Duration(cfg.Grid.BatchIntervalMS)*time.Millisecond),
			heatgrid.WithCutoffPercentile(cfg.Grid.CutoffPercentile),
			heatgrid.WithMaxAxisValues(cfg.Grid.MaxAxisValues),
			heatgrid.WithResultsPerCell(cfg.Grid.ResultsPerCell),
			heatgrid.WithLogger(logger),
		)
	}

	server := chiTransport.NewServer(chiTransport.ServerConfig{
		Sessions:      registry,
		Catalogs:      catalogs,
		DataSource:    cfg.Backend.DataSource,
		NewController: newController,
		Pinger:        pinger,
		Logger:        logger,
	})

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Router())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
