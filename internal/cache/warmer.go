package cache

import (
	"context"
	"log/slog"
	"time"

	"linemap/internal/store"
)

type CacheWarmer struct {
	lines  *LineCache
	store  *store.LineStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewCacheWarmer(lines *LineCache, store *store.LineStore, logger *slog.Logger) *CacheWarmer {
	return &CacheWarmer{
		lines:  lines,
		store:  store,
		ttl:    lines.ttl,
		logger: logger.With("component", "cache_warmer"),
	}
}

// WarmAll publishes the catalogue, the active style and every parsed line.
func (w *CacheWarmer) WarmAll(ctx context.Context) error {
	start := time.Now()
	w.logger.Info("starting cache warming")

	if err := w.warmCatalog(ctx); err != nil {
		w.logger.Error("failed to warm catalog", "error", err)
	}

	if err := w.lines.SaveStyle(ctx, w.store.Style()); err != nil {
		w.logger.Error("failed to warm style", "error", err)
	}

	w.warmLines(ctx)

	w.logger.Info("cache warming completed", "duration_ms", time.Since(start).Milliseconds())
	return ctx.Err()
}

func (w *CacheWarmer) warmCatalog(ctx context.Context) error {
	catalog := Catalog{
		Lines:       w.store.Summaries(),
		GeneratedAt: time.Now(),
	}
	if err := w.lines.SaveCatalog(ctx, catalog); err != nil {
		return err
	}
	w.logger.Info("warmed catalog", "lines", len(catalog.Lines))
	return nil
}

func (w *CacheWarmer) warmLines(ctx context.Context) {
	start := time.Now()
	ids := w.store.IDs()
	warmed := 0

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		entry, err := w.store.Get(id)
		if err != nil {
			w.logger.Debug("skipping unloadable line", "line_id", id, "error", err)
			continue
		}
		if err := w.lines.SaveLine(ctx, entry.Fingerprint, entry.Info); err != nil {
			w.logger.Debug("failed to cache line", "line_id", id, "error", err)
			continue
		}
		warmed++
	}

	w.logger.Info("warmed lines",
		"lines_warmed", warmed,
		"total_lines", len(ids),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// RefreshEvery re-warms the cache before entries written with the TTL expire.
func (w *CacheWarmer) RefreshEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = w.ttl / 2
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("scheduled periodic cache refresh", "every", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.WarmAll(ctx); err != nil {
				w.logger.Error("periodic cache refresh failed", "error", err)
			}
		}
	}
}
