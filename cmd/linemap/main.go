package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"linemap/internal/cache"
	"linemap/internal/config"
	"linemap/internal/handler"
	"linemap/internal/hub"
	"linemap/internal/ingestor"
	"linemap/internal/middleware"
	"linemap/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting linemap server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"line_data_dir", cfg.LineDataDir,
		"redis_enabled", cfg.RedisEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ing *ingestor.LineIngestor
	lineStore := store.NewLineStore(cfg.LineCacheSize, func(id string) (*store.Entry, error) {
		return ing.Load(id)
	})
	wsHub := hub.NewHub(logger)
	ing = ingestor.NewLineIngestor(ingestor.Options{
		DataDir:       cfg.LineDataDir,
		StylePath:     cfg.StylePath,
		ParseCacheDir: cfg.ParseCacheDir,
		ScanInterval:  cfg.ScanInterval,
	}, lineStore, wsHub, logger)

	lineHandler := handler.NewLineHandler(lineStore, cfg.ViewMinWidth, cfg.ViewMinHeight, logger)

	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, continuing without shared cache", "error", err)
		} else {
			defer redisCache.Close()
			lineCache := cache.NewLineCache(redisCache, cfg.CacheTTL)
			ing.SetDocumentCache(lineCache)
			lineHandler.SetSharedCache(lineCache)

			warmer := cache.NewCacheWarmer(lineCache, lineStore, logger)
			ing.SetOnUpdate(func(ctx context.Context) {
				if err := warmer.WarmAll(ctx); err != nil {
					logger.Error("cache warming failed", "error", err)
				}
			})
			go warmer.RefreshEvery(ctx, cfg.CacheTTL/2)
		}
	}

	wsHandler := handler.NewWSHandler(wsHub, lineStore, logger)
	healthHandler := handler.NewHealthHandler(ing, lineStore)
	statsHandler := handler.NewStatsHandler(lineStore, ing, wsHub)

	lines := http.NewServeMux()
	lines.HandleFunc("GET /v1/lines", lineHandler.ListLines)
	lines.HandleFunc("GET /v1/lines/{id}", lineHandler.GetLine)
	lines.HandleFunc("GET /v1/lines/{id}/diagram", lineHandler.GetDiagram)
	lines.HandleFunc("GET /v1/lines/{id}/totals", lineHandler.GetTotals)
	lines.HandleFunc("GET /v1/lines/{id}/geometry", lineHandler.GetGeometry)

	var linesRoute http.Handler = lines
	if cfg.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)
		limiter.OnBlocked(handler.ServerStats.IncRateLimitBlocked)
		go limiter.Run(ctx)
		linesRoute = limiter.Middleware(lines)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/lines", linesRoute)
	mux.Handle("/v1/lines/", linesRoute)
	mux.HandleFunc("GET /v1/style", lineHandler.GetStyle)
	mux.HandleFunc("GET /v1/stats", statsHandler.GetStats)
	mux.HandleFunc("/v1/ws", wsHandler.ServeWS)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	// The WebSocket upgrade needs the raw ResponseWriter, so compression
	// wraps every route but the feed.
	compressed := handler.GzipMiddleware(mux)
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/ws" {
			mux.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.CountRequests(handler.RequestIDMiddleware(handler.CORSMiddleware(cfg.CORSAllowedOrigins)(root))),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go wsHub.Run(ctx)

	go ing.Start(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
