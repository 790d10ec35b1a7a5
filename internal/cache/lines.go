package cache

import (
	"context"
	"time"

	"linemap/internal/domain"
	"linemap/internal/store"
)

// Catalog is the snapshot published under KeyCatalog.
type Catalog struct {
	Lines       []store.LineSummary `json:"lines"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// LineCache shares parsed line documents, the catalogue and the active style
// between replicas through Redis.
type LineCache struct {
	cache *RedisCache
	ttl   time.Duration
}

func NewLineCache(cache *RedisCache, ttl time.Duration) *LineCache {
	return &LineCache{cache: cache, ttl: ttl}
}

// LoadLine reports false without an error when nothing is cached for the
// fingerprint.
func (c *LineCache) LoadLine(ctx context.Context, fingerprint string) (*domain.LineInfo, bool, error) {
	var info domain.LineInfo
	ok, err := c.cache.Fetch(ctx, KeyLine(fingerprint), &info, GzipJSON)
	if err != nil || !ok {
		return nil, false, err
	}
	return &info, true, nil
}

func (c *LineCache) SaveLine(ctx context.Context, fingerprint string, info *domain.LineInfo) error {
	return c.cache.Put(ctx, KeyLine(fingerprint), info, GzipJSON, c.ttl)
}

// ForgetLine drops the document parsed from a file version no longer served.
func (c *LineCache) ForgetLine(ctx context.Context, fingerprint string) error {
	_, err := c.cache.Delete(ctx, KeyLine(fingerprint))
	return err
}

func (c *LineCache) Catalog(ctx context.Context) (*Catalog, bool, error) {
	var catalog Catalog
	ok, err := c.cache.Fetch(ctx, KeyCatalog, &catalog, GzipJSON)
	if err != nil || !ok {
		return nil, false, err
	}
	return &catalog, true, nil
}

func (c *LineCache) SaveCatalog(ctx context.Context, catalog Catalog) error {
	return c.cache.Put(ctx, KeyCatalog, catalog, GzipJSON, c.ttl)
}

func (c *LineCache) Style(ctx context.Context) (domain.Style, bool, error) {
	var style domain.Style
	ok, err := c.cache.Fetch(ctx, KeyStyle, &style, JSON)
	if err != nil || !ok {
		return domain.Style{}, false, err
	}
	return style, true, nil
}

func (c *LineCache) SaveStyle(ctx context.Context, style domain.Style) error {
	return c.cache.Put(ctx, KeyStyle, style, JSON, c.ttl)
}
