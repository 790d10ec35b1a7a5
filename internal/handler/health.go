package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"linemap/internal/store"
)

// ReadinessChecker reports whether the first line scan has completed.
type ReadinessChecker interface {
	IsReady() bool
}

type HealthHandler struct {
	ingestor ReadinessChecker
	store    *store.LineStore
}

func NewHealthHandler(ing ReadinessChecker, s *store.LineStore) *HealthHandler {
	return &HealthHandler{
		ingestor: ing,
		store:    s,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready      bool      `json:"ready"`
	LineCount  int       `json:"lineCount"`
	ServerTime time.Time `json:"serverTime"`
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.ingestor.IsReady()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ReadyResponse{
		Ready:      ready,
		LineCount:  len(h.store.IDs()),
		ServerTime: time.Now(),
	})
}
