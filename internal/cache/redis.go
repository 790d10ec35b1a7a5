package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"
)

// Encoding selects how a value is laid out under its key.
type Encoding uint8

const (
	// JSON stores the plain JSON document.
	JSON Encoding = iota
	// GzipJSON stores the JSON document gzip-compressed. Line documents and
	// the catalogue use it; they compress well.
	GzipJSON
)

// commander is the slice of the Redis client the cache talks to.
type commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisCache keeps JSON documents under a shared key prefix. A missing key
// reads as a miss, never as an error.
type RedisCache struct {
	client commander
	prefix string
	logger *slog.Logger
}

func NewRedisCache(addr, password string, db int, logger *slog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return newRedisCache(client, logger), nil
}

func newRedisCache(client commander, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: "linemap:",
		logger: logger.With("component", "redis_cache"),
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// Put encodes value and stores it under key for ttl.
func (c *RedisCache) Put(ctx context.Context, key string, value any, enc Encoding, ttl time.Duration) error {
	start := time.Now()

	data, err := encode(value, enc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
		return err
	}

	c.logger.Debug("cache set",
		"key", key,
		"size_bytes", len(data),
		"ttl", ttl,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Fetch decodes the value under key into dest and reports whether it was
// there.
func (c *RedisCache) Fetch(ctx context.Context, key string, dest any, enc Encoding) (bool, error) {
	start := time.Now()

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "key", key)
		return false, nil
	}
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		return false, err
	}
	if err := decode(data, dest, enc); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}

	c.logger.Debug("cache hit", "key", key, "size_bytes", len(data), "duration_ms", time.Since(start).Milliseconds())
	return true, nil
}

// Delete drops keys and returns how many existed.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}
	n, err := c.client.Del(ctx, prefixed...).Result()
	if err != nil {
		c.logger.Error("cache delete failed", "keys", keys, "error", err)
		return 0, err
	}
	c.logger.Debug("cache delete", "keys", keys, "deleted", n)
	return n, nil
}

func encode(value any, enc Encoding) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if enc != GzipJSON {
		return data, nil
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, dest any, enc Encoding) error {
	if enc == GzipJSON {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return err
		}
		defer gz.Close()
		if data, err = io.ReadAll(gz); err != nil {
			return err
		}
	}
	return json.Unmarshal(data, dest)
}
