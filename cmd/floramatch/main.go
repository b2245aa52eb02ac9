package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/verdantlab/floramatch/internal/cache"
	"github.com/verdantlab/floramatch/internal/config"
	"github.com/verdantlab/floramatch/internal/domain"
	logpkg "github.com/verdantlab/floramatch/internal/logger"
	"github.com/verdantlab/floramatch/internal/metrics"
	"github.com/verdantlab/floramatch/internal/rank"
	"github.com/verdantlab/floramatch/internal/repository/embcache"
	plantrepo "github.com/verdantlab/floramatch/internal/repository/plant"
	questionrepo "github.com/verdantlab/floramatch/internal/repository/question"
	recordrepo "github.com/verdantlab/floramatch/internal/repository/record"
	"github.com/verdantlab/floramatch/internal/storage"
	chiTransport "github.com/verdantlab/floramatch/internal/transport/chi"
	openaiEmb "github.com/verdantlab/floramatch/internal/transport/openai"
	cataloguc "github.com/verdantlab/floramatch/internal/usecase/catalog"
	healthuc "github.com/verdantlab/floramatch/internal/usecase/health"
	questionuc "github.com/verdantlab/floramatch/internal/usecase/question"
	recommenduc "github.com/verdantlab/floramatch/internal/usecase/recommend"
	reviewuc "github.com/verdantlab/floramatch/internal/usecase/review"
	"github.com/verdantlab/floramatch/internal/version"
)

const cacheReadinessTimeout = 10 * time.Second

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

	logger.Info("Starting floramatch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_path", cfg.Database.Path),
	)

	store, err := storage.Open(cfg.Database.Path, cfg.Database.BusyTimeout, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	// Seed the catalog and questionnaire. Both are no-ops on a populated DB.
	plantRepo := plantrepo.New(store.DB(), logger)
	if err := plantRepo.SeedFromCSV(ctx, cfg.Dataset.PlantsCSV); err != nil {
		logger.Fatal("Failed to seed plant catalog", zap.Error(err))
	}
	questionRepo := questionrepo.New(store.DB(), logger)
	if err := questionRepo.Seed(ctx); err != nil {
		logger.Fatal("Failed to seed questionnaire", zap.Error(err))
	}
	recordRepo := recordrepo.New(store.DB(), logger)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRecommendationMetrics()

	// Base embedding provider, optionally wrapped with the cache decorator.
	baseEmbedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	var embedder domain.Embedder = baseEmbedder
	var cacheClient *cache.Client
	if cfg.Cache.Enabled {
		cacheClient, err = cache.New(cache.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache client", zap.Error(err))
		}
		defer cacheClient.Close()

		if err := cacheClient.WaitForReady(ctx, cacheReadinessTimeout); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		embedder = embcache.New(
			baseEmbedder, cacheClient, cfg.Cache.KeyPrefix,
			time.Duration(cfg.Cache.TTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, logger,
		)
		logger.Info("Embedding cache enabled", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	semantic := rank.NewSemanticScorer(embedder)
	partitioner := rank.NewPartitioner(rank.TierConfig{
		Padding:          cfg.Recommend.Padding,
		GoodLowerPct:     cfg.Recommend.GoodLowerPct,
		GoodUpperPct:     cfg.Recommend.GoodUpperPct,
		MismatchLowerPct: cfg.Recommend.MismatchLowerPct,
		MismatchUpperPct: cfg.Recommend.MismatchUpperPct,
	}, rand.New(rand.NewSource(time.Now().UnixNano())))

	// Use case services
	recommendSvc := recommenduc.New(plantRepo, questionRepo, recordRepo, semantic, partitioner, logger).
		WithLimits(cfg.Recommend.DefaultCount, cfg.Recommend.MaxCount)
	questionSvc := questionuc.New(questionRepo)
	catalogSvc := cataloguc.New(plantRepo)
	reviewSvc := reviewuc.New(recordRepo, logger)

	// Pass nil interface (not typed nil pointer!) when the cache is disabled.
	var cachePinger healthuc.CachePinger
	if cacheClient != nil {
		cachePinger = cacheClient
	}
	healthSvc := healthuc.New(store, cachePinger, baseEmbedder, semantic)

	// Build the semantic corpus up front so free-text ranking works from the
	// first request. Failure is not fatal: the endpoint reports 503 until a
	// manual refresh succeeds.
	if n, err := recommendSvc.RefreshCorpus(ctx); err != nil {
		logger.Warn("Initial corpus refresh failed, semantic ranking unavailable", zap.Error(err))
	} else {
		logger.Info("Semantic corpus ready", zap.Int("plants", n))
	}

	server := chiTransport.NewServer(questionSvc, recommendSvc, catalogSvc, reviewSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

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
