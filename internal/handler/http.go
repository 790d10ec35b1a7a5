package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"linemap/internal/cache"
	"linemap/internal/domain"
	"linemap/internal/layout"
	"linemap/internal/store"
)

// SharedCache serves the catalogue and style published by the cache warmer.
type SharedCache interface {
	Catalog(ctx context.Context) (*cache.Catalog, bool, error)
	Style(ctx context.Context) (domain.Style, bool, error)
}

type LineHandler struct {
	store     *store.LineStore
	shared    SharedCache
	minWidth  int
	minHeight int
	logger    *slog.Logger
}

func NewLineHandler(s *store.LineStore, minWidth, minHeight int, logger *slog.Logger) *LineHandler {
	return &LineHandler{
		store:     s,
		minWidth:  minWidth,
		minHeight: minHeight,
		logger:    logger.With("handler", "lines"),
	}
}

// SetSharedCache makes ListLines and GetStyle read through the shared cache
// before falling back to the store.
func (h *LineHandler) SetSharedCache(shared SharedCache) {
	h.shared = shared
}

type LinesResponse struct {
	Lines      []store.LineSummary `json:"lines"`
	Count      int                 `json:"count"`
	ServerTime time.Time           `json:"serverTime"`
}

func (h *LineHandler) ListLines(w http.ResponseWriter, r *http.Request) {
	lines := h.cachedSummaries(r.Context())
	if lines == nil {
		lines = h.store.Summaries()
	}
	respondJSON(w, http.StatusOK, LinesResponse{
		Lines:      lines,
		Count:      len(lines),
		ServerTime: time.Now(),
	})
}

type LineResponse struct {
	ID          string           `json:"id"`
	Fingerprint string           `json:"fingerprint"`
	Info        *domain.LineInfo `json:"info"`
}

func (h *LineHandler) GetLine(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if notModified(w, r, entry.Fingerprint) {
		return
	}
	respondJSON(w, http.StatusOK, LineResponse{
		ID:          entry.ID,
		Fingerprint: entry.Fingerprint,
		Info:        entry.Info,
	})
}

func (h *LineHandler) GetDiagram(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	span, err := parseSpan(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}

	engine := layout.New(entry.Info, h.store.Style(), h.minWidth, h.minHeight)
	diagram, err := engine.Layout(span)
	if err != nil {
		h.logger.Error("layout failed", "line_id", entry.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "layout failed")
		return
	}

	h.logger.Debug("diagram computed",
		"line_id", entry.ID,
		"stations", len(diagram.Stations),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	respondJSON(w, http.StatusOK, diagram)
}

type TotalsResponse struct {
	ID         string              `json:"id"`
	Span       domain.ResolvedSpan `json:"span"`
	Minutes    int                 `json:"minutes"`
	Kilometers float64             `json:"kilometers"`
}

// GetTotals reports the travel time and distance from the span's base to its
// end, walking from its begin. Descending spans give negative totals.
func (h *LineHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	span, err := parseSpan(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}

	info := entry.Info
	resolved := span.Resolve(info.StationCount())
	totals := info.Elapsed(resolved, info.BaseTotals(resolved), resolved.End)

	respondJSON(w, http.StatusOK, TotalsResponse{
		ID:         entry.ID,
		Span:       resolved,
		Minutes:    totals.Minutes,
		Kilometers: totals.Kilometers,
	})
}

// GetGeometry returns the line as GeoJSON: one point per station, the route
// through the stations in travel order, and one segment per link carrying
// its straight-line length next to the scheduled distance.
func (h *LineHandler) GetGeometry(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if notModified(w, r, entry.Fingerprint) {
		return
	}

	data, err := LineGeometry(entry.Info).MarshalJSON()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "encode geometry")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// LineGeometry builds the GeoJSON view of a line.
func LineGeometry(info *domain.LineInfo) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, s := range info.Stations {
		f := geojson.NewFeature(s.Position.Point())
		f.Properties["kind"] = "station"
		f.Properties["idx"] = s.Index
		f.Properties["name"] = s.Name
		if s.HasCode() {
			f.Properties["code"] = s.Code
		}
		fc.Append(f)
	}

	var route orb.LineString
	for idx := range info.StationsBetween(0, -1) {
		for _, s := range info.StationsAt(idx) {
			route = append(route, s.Position.Point())
		}
	}
	if len(route) > 1 {
		f := geojson.NewFeature(route)
		f.Properties["kind"] = "route"
		f.Properties["name"] = info.Line.Name
		f.Properties["color"] = info.Line.Color
		fc.Append(f)
	}

	for _, link := range info.Links {
		from, to := info.StationsAt(link.Begin), info.StationsAt(link.End)
		if len(from) == 0 || len(to) == 0 {
			continue
		}
		a, b := from[0].Position.Point(), to[0].Position.Point()
		f := geojson.NewFeature(orb.LineString{a, b})
		f.Properties["kind"] = "link"
		f.Properties["beginIdx"] = link.Begin
		f.Properties["endIdx"] = link.End
		f.Properties["minutes"] = link.Minutes
		f.Properties["kilometers"] = link.Kilometers
		f.Properties["straightKilometers"] = geo.DistanceHaversine(a, b) / 1000
		fc.Append(f)
	}

	return fc
}

func (h *LineHandler) GetStyle(w http.ResponseWriter, r *http.Request) {
	if h.shared != nil {
		style, ok, err := h.shared.Style(r.Context())
		if err != nil {
			h.logger.Warn("shared style read failed", "error", err)
		} else if ok {
			respondJSON(w, http.StatusOK, style)
			return
		}
	}
	respondJSON(w, http.StatusOK, h.store.Style())
}

func (h *LineHandler) cachedSummaries(ctx context.Context) []store.LineSummary {
	if h.shared == nil {
		return nil
	}
	catalog, ok, err := h.shared.Catalog(ctx)
	if err != nil {
		h.logger.Warn("shared catalog read failed", "error", err)
		return nil
	}
	if !ok || catalog.Lines == nil {
		return nil
	}
	return catalog.Lines
}

func (h *LineHandler) lookup(w http.ResponseWriter, r *http.Request) (*store.Entry, bool) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing line id")
		return nil, false
	}

	entry, err := h.store.Get(id)
	if errors.Is(err, store.ErrLineNotFound) {
		respondError(w, http.StatusNotFound, "line not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to load line", "line_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load line")
		return nil, false
	}
	return entry, true
}

// parseSpan reads begin, end and base from the query. begin defaults to the
// first station, end to the last, base to begin.
func parseSpan(r *http.Request) (domain.Span, error) {
	q := r.URL.Query()

	begin, err := queryInt(q.Get("begin"), 0)
	if err != nil {
		return domain.Span{}, fmt.Errorf("invalid begin parameter: %w", err)
	}
	end, err := queryInt(q.Get("end"), -1)
	if err != nil {
		return domain.Span{}, fmt.Errorf("invalid end parameter: %w", err)
	}

	span := domain.NewSpan(begin, end)
	if v := q.Get("base"); v != "" {
		base, err := strconv.Atoi(v)
		if err != nil {
			return domain.Span{}, fmt.Errorf("invalid base parameter: %w", err)
		}
		span = span.WithBase(base)
	}
	return span, nil
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// notModified answers 304 when the client already holds the document with
// this fingerprint, and sets the ETag otherwise.
func notModified(w http.ResponseWriter, r *http.Request, fingerprint string) bool {
	etag := fmt.Sprintf(`"%s"`, fingerprint)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	w.Header().Set("ETag", etag)
	return false
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
