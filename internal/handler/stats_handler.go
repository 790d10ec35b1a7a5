package handler

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"linemap/internal/ingestor"
	"linemap/internal/store"
)

// Stats tracks server-wide counters.
type Stats struct {
	startTime        time.Time
	requestCount     atomic.Int64
	wsConnections    atomic.Int64
	wsMessagesIn     atomic.Int64
	wsMessagesOut    atomic.Int64
	rateLimitBlocked atomic.Int64
}

var ServerStats = &Stats{
	startTime: time.Now(),
}

func (s *Stats) IncRequests()         { s.requestCount.Add(1) }
func (s *Stats) IncWSConnections()    { s.wsConnections.Add(1) }
func (s *Stats) DecWSConnections()    { s.wsConnections.Add(-1) }
func (s *Stats) IncWSMessagesIn()     { s.wsMessagesIn.Add(1) }
func (s *Stats) IncWSMessagesOut()    { s.wsMessagesOut.Add(1) }
func (s *Stats) IncRateLimitBlocked() { s.rateLimitBlocked.Add(1) }

// IngestorStatser exposes scan counters.
type IngestorStatser interface {
	Stats() ingestor.IngestorStats
}

type StatsHandler struct {
	store    *store.LineStore
	ingestor IngestorStatser
	hub      SubscriberCounter
}

// SubscriberCounter is the part of the hub the stats page reads.
type SubscriberCounter interface {
	ClientCount() int
	SubscriptionCount() int
}

func NewStatsHandler(s *store.LineStore, ing IngestorStatser, h SubscriberCounter) *StatsHandler {
	return &StatsHandler{
		store:    s,
		ingestor: ing,
		hub:      h,
	}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	Lines     LineStatsResponse      `json:"lines"`
	Ingestor  ingestor.IngestorStats `json:"ingestor"`
	WebSocket WebSocketStatsResponse `json:"websocket"`
	Cache     CacheStatsResponse     `json:"cache"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	RateLimited   int64     `json:"rate_limited"`
	Version       string    `json:"version"`
}

type LineStatsResponse struct {
	Catalogued int       `json:"catalogued"`
	Resident   int       `json:"resident"`
	IsLoaded   bool      `json:"is_loaded"`
	LastUpdate time.Time `json:"last_update"`
}

type WebSocketStatsResponse struct {
	Connections   int64 `json:"connections"`
	Clients       int   `json:"clients"`
	Subscriptions int   `json:"subscriptions"`
	MessagesIn    int64 `json:"messages_in"`
	MessagesOut   int64 `json:"messages_out"`
}

type CacheStatsResponse struct {
	Hits   uint64  `json:"hits"`
	Misses uint64  `json:"misses"`
	Ratio  float64 `json:"hit_ratio"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(ServerStats.startTime)
	lineStats := h.store.GetStats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	var ratio float64
	if total := lineStats.CacheHits + lineStats.CacheMisses; total > 0 {
		ratio = float64(lineStats.CacheHits) / float64(total)
	}

	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     ServerStats.startTime,
			RequestCount:  ServerStats.requestCount.Load(),
			RateLimited:   ServerStats.rateLimitBlocked.Load(),
			Version:       "1.0.0",
		},
		Lines: LineStatsResponse{
			Catalogued: lineStats.LinesCount,
			Resident:   lineStats.ResidentCount,
			IsLoaded:   lineStats.IsLoaded,
			LastUpdate: lineStats.LastUpdate,
		},
		WebSocket: WebSocketStatsResponse{
			Connections: ServerStats.wsConnections.Load(),
			MessagesIn:  ServerStats.wsMessagesIn.Load(),
			MessagesOut: ServerStats.wsMessagesOut.Load(),
		},
		Cache: CacheStatsResponse{
			Hits:   lineStats.CacheHits,
			Misses: lineStats.CacheMisses,
			Ratio:  ratio,
		},
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}
	if h.ingestor != nil {
		response.Ingestor = h.ingestor.Stats()
	}
	if h.hub != nil {
		response.WebSocket.Clients = h.hub.ClientCount()
		response.WebSocket.Subscriptions = h.hub.SubscriptionCount()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(response)
}
