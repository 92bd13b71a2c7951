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

	"github.com/answerdesk/supportrag/internal/config"
	dbRedis "github.com/answerdesk/supportrag/internal/db/redis"
	"github.com/answerdesk/supportrag/internal/domain"
	"github.com/answerdesk/supportrag/internal/index"
	logpkg "github.com/answerdesk/supportrag/internal/logger"
	"github.com/answerdesk/supportrag/internal/metrics"
	"github.com/answerdesk/supportrag/internal/repository/embcache"
	"github.com/answerdesk/supportrag/internal/stats"
	"github.com/answerdesk/supportrag/internal/store"
	chiTransport "github.com/answerdesk/supportrag/internal/transport/chi"
	openaiEmb "github.com/answerdesk/supportrag/internal/transport/openai"
	"github.com/answerdesk/supportrag/internal/usecase/build"
	healthuc "github.com/answerdesk/supportrag/internal/usecase/health"
	routeruc "github.com/answerdesk/supportrag/internal/usecase/router"
	"github.com/answerdesk/supportrag/internal/version"
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

	logger.Info("Starting supportrag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Float64("fallback_threshold", cfg.Retrieval.FallbackThreshold),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterQueryMetrics()

	ctx := context.Background()

	// Embedding cache backend: Redis when configured, in-process LRU otherwise
	cacheStore, closeCache, err := newCacheStore(ctx, cfg.Cache, logger)
	if err != nil {
		logger.Fatal("Failed to create embedding cache store", zap.Error(err))
	}
	defer closeCache()

	// Embedder chain — composition root. Documents and queries get separate
	// instruction prefixes, so they get separate chains (and cache keys).
	docEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, cacheStore, logger)
	queryEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, cacheStore, logger)
	logger.Info("Embedders created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Two store slots sharing one set of index build parameters
	params := index.BuildParams{
		MaxClusters:   cfg.Retrieval.MaxClusters,
		MaxIterations: cfg.Retrieval.KMeansIterations,
		Epsilon:       cfg.Retrieval.KMeansEpsilon,
		Seed:          cfg.Retrieval.Seed,
	}
	primary := store.New(domain.SourcePrimary, params)
	secondary := store.New(domain.SourceSecondary, params)

	// Build pipeline: ingest CSVs, embed, index, persist
	buildSvc := build.New(asBatchEmbedder(docEmbedder), cfg.Build.ChunkSize, cfg.Build.PoolSize, logger)
	pipeline := build.NewPipeline(
		buildSvc,
		primary, secondary,
		build.CorpusPaths{
			Primary:   cfg.Corpus.PrimaryCSV,
			Secondary: cfg.Corpus.SecondaryCSV,
		},
		cfg.Corpus.ArtifactDir,
		logger,
	)

	if err := pipeline.RestoreOrRebuild(ctx); err != nil {
		logger.Fatal("Failed to prepare indexes", zap.Error(err))
	}
	logger.Info("Indexes ready",
		zap.Int("primary_documents", primary.Len()),
		zap.Int("secondary_documents", secondary.Len()),
		zap.Int("primary_clusters", primary.ClusterCount()),
		zap.Int("secondary_clusters", secondary.ClusterCount()),
	)

	// Query routing and aggregate stats
	recorder := stats.New()
	routerSvc := routeruc.New(primary, secondary, queryEmbedder, routeruc.Params{
		Threshold: cfg.Retrieval.FallbackThreshold,
		TopK:      cfg.Retrieval.TopK,
		NProbe:    cfg.Retrieval.NProbe,
	}, recorder)

	// Health service
	healthSvc := healthuc.New(primary, secondary, newEmbeddingHealthChecker(queryEmbedder))

	// Create chi server
	server := chiTransport.NewServer(routerSvc, pipeline, recorder, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

// cacheKV is the narrow cache contract the embedder chain needs.
type cacheKV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// newCacheStore picks the embedding cache backend. Returned closer is always
// safe to call.
func newCacheStore(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (cacheKV, func(), error) {
	if len(cfg.RedisAddrs) == 0 {
		mem, err := embcache.NewMemStore(cfg.LRUSize)
		if err != nil {
			return nil, func() {}, err
		}
		logger.Info("Embedding cache: in-process LRU", zap.Int("size", cfg.LRUSize))
		return mem, func() {}, nil
	}

	redisStore, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.RedisAddrs,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, func() {}, err
	}
	if err := redisStore.WaitForReady(ctx, 10*time.Second); err != nil {
		redisStore.Close()
		return nil, func() {}, err
	}
	logger.Info("Embedding cache: redis", zap.Strings("addrs", cfg.RedisAddrs))
	ttl := time.Duration(cfg.TTLSec) * time.Second
	return ttlStore{inner: redisStore, ttl: ttl}, redisStore.Close, nil
}

// ttlStore routes writes through SetWithTTL so cached embeddings expire
// instead of accumulating forever in Redis.
type ttlStore struct {
	inner *dbRedis.Store
	ttl   time.Duration
}

func (s ttlStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, key)
}

func (s ttlStore) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.SetWithTTL(ctx, key, value, s.ttl)
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction
func buildEmbedder(
	cfg config.EmbeddingConfig,
	instruction string,
	cache cacheKV,
	logger *zap.Logger,
) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, metrics.EmbeddingCacheTotal, logger)
	}

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

// batchFallbackEmbedder adapts a single-text embedder to the batch contract.
type batchFallbackEmbedder struct {
	inner domain.Embedder
}

func (b batchFallbackEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, b.inner, texts)
}

func asBatchEmbedder(e domain.Embedder) domain.BatchEmbedder {
	if be, ok := e.(domain.BatchEmbedder); ok {
		return be
	}
	return batchFallbackEmbedder{inner: e}
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
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
