package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bluele/gcache"

	"linemap/internal/domain"
)

// Entry is one catalogued line document.
type Entry struct {
	ID          string
	Path        string
	Fingerprint string
	Info        *domain.LineInfo
	LoadedAt    time.Time
}

// LineSummary is the list view of an entry.
type LineSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Code        string    `json:"code,omitempty"`
	Stations    int       `json:"stations"`
	Links       int       `json:"links"`
	Transfers   int       `json:"transfers"`
	Fingerprint string    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loaded_at"`
}

func (e *Entry) Summary() LineSummary {
	return LineSummary{
		ID:          e.ID,
		Name:        e.Info.Line.Name,
		Color:       e.Info.Line.Color,
		Code:        e.Info.Line.Code,
		Stations:    len(e.Info.Stations),
		Links:       len(e.Info.Links),
		Transfers:   len(e.Info.Transfers),
		Fingerprint: e.Fingerprint,
		LoadedAt:    e.LoadedAt,
	}
}

// Loader re-reads a catalogued line that fell out of memory.
type Loader func(id string) (*Entry, error)

var ErrLineNotFound = errors.New("line not found")

// LineStore is the catalogue of known lines plus the active style. Parsed
// lines live in a bounded LRU; the catalogue index always lists every known
// id so evicted lines are reloaded on demand.
type LineStore struct {
	mu    sync.RWMutex
	index map[string]string // id -> fingerprint
	lines gcache.Cache
	style domain.Style

	lastUpdate time.Time
}

func NewLineStore(size int, loader Loader) *LineStore {
	if size <= 0 {
		size = 1
	}
	return &LineStore{
		index: make(map[string]string),
		lines: gcache.New(size).
			LRU().
			LoaderFunc(func(key interface{}) (interface{}, error) {
				if loader == nil {
					return nil, ErrLineNotFound
				}
				return loader(key.(string))
			}).
			Build(),
		style: domain.DefaultStyle(),
	}
}

// Put catalogues or replaces a line. The previous entry is dropped whole.
func (s *LineStore) Put(e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lines.Set(e.ID, e); err != nil {
		return fmt.Errorf("cache line %s: %w", e.ID, err)
	}
	s.index[e.ID] = e.Fingerprint
	s.lastUpdate = time.Now()
	return nil
}

func (s *LineStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	s.lines.Remove(id)
	s.lastUpdate = time.Now()
	return true
}

// Get returns the entry for id, loading it again if it was evicted.
func (s *LineStore) Get(id string) (*Entry, error) {
	s.mu.RLock()
	_, known := s.index[id]
	s.mu.RUnlock()
	if !known {
		return nil, ErrLineNotFound
	}

	v, err := s.lines.Get(id)
	if err != nil {
		return nil, fmt.Errorf("load line %s: %w", id, err)
	}
	entry := v.(*Entry)

	s.mu.Lock()
	if _, ok := s.index[id]; ok {
		s.index[id] = entry.Fingerprint
	}
	s.mu.Unlock()

	return entry, nil
}

func (s *LineStore) Fingerprint(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fp, ok := s.index[id]
	return fp, ok
}

// IDs lists every catalogued line id in lexical order.
func (s *LineStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summaries lists every line that can be loaded. Lines that fail to reload
// are skipped.
func (s *LineStore) Summaries() []LineSummary {
	ids := s.IDs()
	result := make([]LineSummary, 0, len(ids))
	for _, id := range ids {
		e, err := s.Get(id)
		if err != nil {
			continue
		}
		result = append(result, e.Summary())
	}
	return result
}

func (s *LineStore) SetStyle(style domain.Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.style = style
}

func (s *LineStore) Style() domain.Style {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.style
}

type LineStoreStats struct {
	LinesCount    int       `json:"lines_count"`
	ResidentCount int       `json:"resident_count"`
	CacheHits     uint64    `json:"cache_hits"`
	CacheMisses   uint64    `json:"cache_misses"`
	LastUpdate    time.Time `json:"last_update"`
	IsLoaded      bool      `json:"is_loaded"`
}

func (s *LineStore) GetStats() LineStoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return LineStoreStats{
		LinesCount:    len(s.index),
		ResidentCount: s.lines.Len(false),
		CacheHits:     s.lines.HitCount(),
		CacheMisses:   s.lines.MissCount(),
		LastUpdate:    s.lastUpdate,
		IsLoaded:      !s.lastUpdate.IsZero(),
	}
}
