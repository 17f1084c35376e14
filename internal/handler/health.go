package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// UpstreamStatus reports how the last upstream call went.
type UpstreamStatus interface {
	LastSuccess() time.Time
	LastError() error
}

type SessionCounter interface {
	ClientCount() int
}

// ClientTracker reports how many client IPs the rate limiter is tracking.
type ClientTracker interface {
	TrackedClients() int
}

type HealthHandler struct {
	upstream UpstreamStatus
	sessions SessionCounter
	limiter  ClientTracker
}

func NewHealthHandler(upstream UpstreamStatus, sessions SessionCounter, limiter ClientTracker) *HealthHandler {
	return &HealthHandler{
		upstream: upstream,
		sessions: sessions,
		limiter:  limiter,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready           bool       `json:"ready"`
	Sessions        int        `json:"sessions"`
	TrackedClients  int        `json:"trackedClients"`
	LastUpstreamOK  *time.Time `json:"lastUpstreamOk,omitempty"`
	LastUpstreamErr string     `json:"lastUpstreamError,omitempty"`
	ServerTime      time.Time  `json:"serverTime"`
}

// Readyz reports not ready while the most recent upstream call has failed.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{
		Ready:      true,
		Sessions:       h.sessions.ClientCount(),
		TrackedClients: h.limiter.TrackedClients(),
		ServerTime:     time.Now(),
	}
	if last := h.upstream.LastSuccess(); !last.IsZero() {
		resp.LastUpstreamOK = &last
	}
	if err := h.upstream.LastError(); err != nil {
		resp.Ready = false
		resp.LastUpstreamErr = err.Error()
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
