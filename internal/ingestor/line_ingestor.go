package ingestor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"linemap/internal/domain"
	"linemap/internal/hub"
	"linemap/internal/store"
	"linemap/pkg/linedoc"
)

type Broadcaster interface {
	Broadcast(events []hub.LineEvent)
}

// DocumentCache is a parsed-document cache shared between replicas.
type DocumentCache interface {
	LoadLine(ctx context.Context, fingerprint string) (*domain.LineInfo, bool, error)
	SaveLine(ctx context.Context, fingerprint string, info *domain.LineInfo) error
	ForgetLine(ctx context.Context, fingerprint string) error
}

type Options struct {
	DataDir       string
	StylePath     string
	ParseCacheDir string
	ScanInterval  time.Duration
}

// LineIngestor keeps the line store in step with the line-data directory.
// Every *.xml file is one line; its id is the file name without extension.
type LineIngestor struct {
	opts        Options
	parser      *linedoc.Parser
	store       *store.LineStore
	docs        DocumentCache
	broadcaster Broadcaster
	logger      *slog.Logger
	onUpdate    func(context.Context)

	styleFingerprint string

	scans      atomic.Int64
	loadErrors atomic.Int64
	cacheHits  atomic.Int64
	lastScan   atomic.Int64

	ready   bool
	readyMu sync.RWMutex
}

func NewLineIngestor(opts Options, lineStore *store.LineStore, broadcaster Broadcaster, logger *slog.Logger) *LineIngestor {
	opts.ParseCacheDir = linedoc.ParsedCacheDir(opts.ParseCacheDir)
	return &LineIngestor{
		opts:        opts,
		parser:      linedoc.NewParser(logger),
		store:       lineStore,
		broadcaster: broadcaster,
		logger:      logger.With("component", "line_ingestor"),
	}
}

// SetDocumentCache adds a second-level cache consulted after the on-disk
// parse cache.
func (i *LineIngestor) SetDocumentCache(docs DocumentCache) {
	i.docs = docs
}

func (i *LineIngestor) SetOnUpdate(fn func(context.Context)) {
	i.onUpdate = fn
}

func (i *LineIngestor) Start(ctx context.Context) {
	i.update(ctx)

	if i.opts.ScanInterval <= 0 {
		return
	}

	ticker := time.NewTicker(i.opts.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.update(ctx)
		}
	}
}

func (i *LineIngestor) update(ctx context.Context) {
	if err := i.Scan(ctx); err != nil {
		i.logger.Error("line scan failed", "error", err)
	}
}

// Scan loads new and changed line files, drops lines whose files are gone and
// reloads the style. A file that fails to load keeps its previous version.
func (i *LineIngestor) Scan(ctx context.Context) error {
	start := time.Now()

	styleChanged := i.loadStyle()

	if _, err := os.Stat(i.opts.DataDir); err != nil {
		return fmt.Errorf("line data dir: %w", err)
	}
	paths, err := filepath.Glob(filepath.Join(i.opts.DataDir, "*.xml"))
	if err != nil {
		return fmt.Errorf("list line documents: %w", err)
	}
	sort.Strings(paths)

	var events []hub.LineEvent
	seen := make(map[string]struct{}, len(paths))
	unchanged := 0

	for _, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		id := LineID(path)
		seen[id] = struct{}{}

		data, err := os.ReadFile(path)
		if err != nil {
			i.loadErrors.Add(1)
			i.logger.Error("failed to read line document", "line_id", id, "path", path, "error", err)
			continue
		}

		fingerprint := linedoc.Fingerprint(data)
		previous, known := i.store.Fingerprint(id)
		if known && previous == fingerprint {
			unchanged++
			continue
		}

		entry, err := i.buildEntry(ctx, id, path, data, fingerprint)
		if err != nil {
			i.loadErrors.Add(1)
			i.logger.Error("failed to load line document", "line_id", id, "path", path, "error", err)
			continue
		}
		if err := i.store.Put(entry); err != nil {
			i.loadErrors.Add(1)
			i.logger.Error("failed to store line", "line_id", id, "error", err)
			continue
		}
		if known {
			i.forget(ctx, previous)
		}

		summary := entry.Summary()
		events = append(events, hub.LineEvent{
			Type:        hub.EventLineUpdated,
			LineID:      id,
			Fingerprint: fingerprint,
			Summary:     &summary,
		})
	}

	for _, id := range i.store.IDs() {
		if _, ok := seen[id]; ok {
			continue
		}
		previous, _ := i.store.Fingerprint(id)
		if i.store.Remove(id) {
			i.forget(ctx, previous)
			events = append(events, hub.LineEvent{Type: hub.EventLineRemoved, LineID: id})
		}
	}

	i.scans.Add(1)
	i.lastScan.Store(time.Now().UnixMilli())

	if !i.IsReady() {
		i.setReady(true)
		i.logger.Info("ingestor ready", "lines", len(i.store.IDs()))
	}

	if len(events) > 0 && i.broadcaster != nil {
		i.broadcaster.Broadcast(events)
	}
	if (len(events) > 0 || styleChanged) && i.onUpdate != nil {
		i.onUpdate(ctx)
	}

	i.logger.Info("line scan completed",
		"files", len(paths),
		"changed", len(events),
		"unchanged", unchanged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Load re-reads one catalogued line from disk. It serves as the store's
// loader for lines evicted from memory.
func (i *LineIngestor) Load(id string) (*store.Entry, error) {
	path := filepath.Join(i.opts.DataDir, id+".xml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read line document: %w", err)
	}
	return i.buildEntry(context.Background(), id, path, data, linedoc.Fingerprint(data))
}

func (i *LineIngestor) buildEntry(ctx context.Context, id, path string, data []byte, fingerprint string) (*store.Entry, error) {
	info, err := i.parse(ctx, data, fingerprint)
	if err != nil {
		return nil, err
	}
	return &store.Entry{
		ID:          id,
		Path:        path,
		Fingerprint: fingerprint,
		Info:        info,
		LoadedAt:    time.Now(),
	}, nil
}

func (i *LineIngestor) parse(ctx context.Context, data []byte, fingerprint string) (*domain.LineInfo, error) {
	cacheDir := i.opts.ParseCacheDir

	info, cachePath, cacheErr := linedoc.LoadParsedLine(cacheDir, fingerprint)
	if cacheErr == nil {
		i.cacheHits.Add(1)
		i.logger.Debug("loaded parsed line cache", "path", cachePath)
		return info, nil
	}

	if i.docs != nil {
		cached, ok, err := i.docs.LoadLine(ctx, fingerprint)
		if err != nil {
			i.logger.Warn("document cache read failed", "fingerprint", fingerprint, "error", err)
		} else if ok {
			i.cacheHits.Add(1)
			i.saveParsed(cacheDir, fingerprint, cached)
			return cached, nil
		}
	}

	info, err := i.parser.ParseLineInfoBytes(data)
	if err != nil {
		return nil, err
	}

	i.saveParsed(cacheDir, fingerprint, info)
	if i.docs != nil {
		if err := i.docs.SaveLine(ctx, fingerprint, info); err != nil {
			i.logger.Warn("document cache write failed", "fingerprint", fingerprint, "error", err)
		}
	}
	return info, nil
}

// forget drops a fingerprint from the document cache unless another line
// still serves the same bytes.
func (i *LineIngestor) forget(ctx context.Context, fingerprint string) {
	if i.docs == nil || fingerprint == "" {
		return
	}
	for _, id := range i.store.IDs() {
		if fp, ok := i.store.Fingerprint(id); ok && fp == fingerprint {
			return
		}
	}
	if err := i.docs.ForgetLine(ctx, fingerprint); err != nil {
		i.logger.Warn("document cache delete failed", "fingerprint", fingerprint, "error", err)
	}
}

func (i *LineIngestor) saveParsed(cacheDir, fingerprint string, info *domain.LineInfo) {
	if savedPath, err := linedoc.SaveParsedLine(cacheDir, fingerprint, info); err != nil {
		i.logger.Warn("failed to persist parsed line cache", "error", err)
	} else {
		i.logger.Debug("persisted parsed line cache", "path", savedPath)
	}
}

// loadStyle replaces the active style when the style file changed and
// reports whether it did. A missing or malformed file leaves the current
// style in place.
func (i *LineIngestor) loadStyle() bool {
	if i.opts.StylePath == "" {
		return false
	}

	data, err := os.ReadFile(i.opts.StylePath)
	if err != nil {
		i.logger.Warn("failed to read style document", "path", i.opts.StylePath, "error", err)
		return false
	}

	fingerprint := linedoc.Fingerprint(data)
	if fingerprint == i.styleFingerprint {
		return false
	}

	style, err := i.parser.ParseStyle(bytes.NewReader(data))
	if err != nil {
		i.logger.Error("failed to parse style document", "path", i.opts.StylePath, "error", err)
		return false
	}

	i.store.SetStyle(style)
	i.styleFingerprint = fingerprint
	i.logger.Info("style loaded", "path", i.opts.StylePath, "fingerprint", fingerprint)
	return true
}

// LineID derives a line id from its document path.
func LineID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func (i *LineIngestor) IsReady() bool {
	i.readyMu.RLock()
	defer i.readyMu.RUnlock()
	return i.ready
}

func (i *LineIngestor) setReady(ready bool) {
	i.readyMu.Lock()
	defer i.readyMu.Unlock()
	i.ready = ready
}

type IngestorStats struct {
	Scans          int64     `json:"scans"`
	LoadErrors     int64     `json:"load_errors"`
	ParseCacheHits int64     `json:"parse_cache_hits"`
	LastScan       time.Time `json:"last_scan"`
}

func (i *LineIngestor) Stats() IngestorStats {
	var last time.Time
	if ms := i.lastScan.Load(); ms > 0 {
		last = time.UnixMilli(ms)
	}
	return IngestorStats{
		Scans:          i.scans.Load(),
		LoadErrors:     i.loadErrors.Load(),
		ParseCacheHits: i.cacheHits.Load(),
		LastScan:       last,
	}
}
