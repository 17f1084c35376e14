package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"mtreta/internal/directory"
	"mtreta/internal/domain"
	"mtreta/internal/reconciler"
	"mtreta/internal/selection"
	"mtreta/internal/session"
)

type DirectoryHandler struct {
	dir *directory.Directory
}

func NewDirectoryHandler(dir *directory.Directory) *DirectoryHandler {
	return &DirectoryHandler{dir: dir}
}

type LinesResponse struct {
	Lines []domain.Line `json:"lines"`
	Count int           `json:"count"`
}

func (h *DirectoryHandler) ListLines(w http.ResponseWriter, r *http.Request) {
	lines := h.dir.Lines()
	respondJSON(w, http.StatusOK, LinesResponse{Lines: lines, Count: len(lines)})
}

func (h *DirectoryHandler) GetLine(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("line")
	line, ok := h.dir.Line(code)
	if !ok {
		respondError(w, http.StatusNotFound, "line not found")
		return
	}
	respondJSON(w, http.StatusOK, line)
}

// ArrivalsHandler answers one-off arrival queries without a session.
type ArrivalsHandler struct {
	dir     *directory.Directory
	fetcher session.Fetcher
	opts    reconciler.Options
	logger  *slog.Logger
}

func NewArrivalsHandler(dir *directory.Directory, fetcher session.Fetcher, opts reconciler.Options, logger *slog.Logger) *ArrivalsHandler {
	return &ArrivalsHandler{dir: dir, fetcher: fetcher, opts: opts, logger: logger}
}

type ArrivalsResponse struct {
	Board        domain.Board         `json:"board"`
	Notification *domain.Notification `json:"notification,omitempty"`
	ServerTime   time.Time            `json:"serverTime"`
}

func (h *ArrivalsHandler) GetArrivals(w http.ResponseWriter, r *http.Request) {
	lineCode := r.URL.Query().Get("line")
	stationCode := r.URL.Query().Get("sta")
	if lineCode == "" || stationCode == "" {
		respondError(w, http.StatusBadRequest, "line and sta parameters are required")
		return
	}

	holder := selection.New(h.dir)
	if err := holder.SelectLine(lineCode); err != nil {
		respondError(w, http.StatusNotFound, "line not found")
		return
	}
	if err := holder.SelectStation(stationCode); err != nil {
		respondError(w, http.StatusNotFound, "station not found on line")
		return
	}
	line, _ := holder.Line()
	station, _ := holder.Station()
	params, _ := holder.Params()

	rec := reconciler.New(h.dir, h.opts, h.logger)
	ticket := rec.Begin(reconciler.Foreground, line.Code, station.Code)
	resp, err := h.fetcher.Fetch(r.Context(), params)
	out := rec.Complete(ticket, resp, err)

	board := rec.Board()
	board.LineCode = line.Code
	board.LineColor = line.Color
	board.StationCode = station.Code
	board.StationName = station.Name
	board.Background = holder.Background()

	status := http.StatusOK
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		status = http.StatusBadGateway
	}

	respondJSON(w, status, ArrivalsResponse{
		Board:        board,
		Notification: out.Notification,
		ServerTime:   time.Now(),
	})
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
