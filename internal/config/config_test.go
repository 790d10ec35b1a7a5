package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// chdirTemp moves the test into an empty directory so a developer's .env
// file does not leak into the assertions.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadRequiresDataDir(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LINE_DATA_DIR", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without LINE_DATA_DIR")
	}
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LINE_DATA_DIR", "/srv/lines")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.ViewMinWidth != 320 || cfg.ViewMinHeight != 480 {
		t.Errorf("view minimum = %dx%d, want 320x480", cfg.ViewMinWidth, cfg.ViewMinHeight)
	}
	if cfg.ScanInterval != 30*time.Second {
		t.Errorf("ScanInterval = %v", cfg.ScanInterval)
	}
	if cfg.RedisEnabled {
		t.Error("Redis should be disabled by default")
	}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, []string{"*"}) {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitEnabled || cfg.RateLimitRequests != 120 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("rate limit = %v %d/%v", cfg.RateLimitEnabled, cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	if cfg.RateLimitWhitelist != nil {
		t.Errorf("RateLimitWhitelist = %v, want none", cfg.RateLimitWhitelist)
	}
}

func TestLoadOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LINE_DATA_DIR", "/srv/lines")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("SCAN_INTERVAL", "5s")
	t.Setenv("VIEW_MIN_WIDTH", "640")
	t.Setenv("VIEW_MIN_HEIGHT", "not-a-number")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != slog.LevelWarn {
		t.Errorf("LogLevel = %v, want warn", cfg.LogLevel)
	}
	if cfg.ScanInterval != 5*time.Second {
		t.Errorf("ScanInterval = %v", cfg.ScanInterval)
	}
	if cfg.ViewMinWidth != 640 {
		t.Errorf("ViewMinWidth = %d", cfg.ViewMinWidth)
	}
	if cfg.ViewMinHeight != 480 {
		t.Errorf("invalid VIEW_MIN_HEIGHT should fall back to 480, got %d", cfg.ViewMinHeight)
	}
	if !cfg.RedisEnabled {
		t.Error("RedisEnabled should be true")
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Errorf("CORSAllowedOrigins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("LINE_DATA_DIR", "")
	os.Unsetenv("LINE_DATA_DIR")
	t.Setenv("STYLE_PATH", "/etc/linemap/style.xml")

	env := "LINE_DATA_DIR=/from/dotenv\nSTYLE_PATH=/from/dotenv/style.xml\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("LINE_DATA_DIR") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LineDataDir != "/from/dotenv" {
		t.Errorf("LineDataDir = %q, want value from .env", cfg.LineDataDir)
	}
	if cfg.StylePath != "/etc/linemap/style.xml" {
		t.Errorf("StylePath = %q, real environment should win over .env", cfg.StylePath)
	}
}
