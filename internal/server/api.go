package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/render"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
)

// startRequest is the body of POST /api/start. The tuning fields are
// optional; zero values fall back to the defaults.
type startRequest struct {
	Source string `json:"source"` // registry name, empty selects the default
	source.Tuning
}

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Running bool           `json:"running"`
	Source  string         `json:"source,omitempty"`
	Tuning  source.Tuning  `json:"tuning"`
	Uptime  string         `json:"uptime"`
	Stats   map[string]any `json:"stats"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid start request: %v", err))
		return
	}

	err := s.manager.Start(req.Source, req.Tuning)
	switch {
	case errors.Is(err, source.ErrAlreadyStreaming):
		state := s.manager.State()
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "already_running",
			"source": state.Source,
			"tuning": state.Tuning,
		})
		return
	case errors.Is(err, source.ErrUnknownSource):
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, source.ErrNoSources):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	state := s.manager.State()
	s.hub.BroadcastStatus(state)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "started",
		"source": state.Source,
		"tuning": state.Tuning,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.manager.Stop()
	s.hub.BroadcastStatus(s.manager.State())
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state := s.manager.State()
	stats := s.metrics.Stats()

	writeJSON(w, http.StatusOK, statusResponse{
		Running: state.Running,
		Source:  state.Source,
		Tuning:  state.Tuning,
		Uptime:  stats.UptimeString(),
		Stats: map[string]any{
			"frames_ingested":  stats.FramesIngested,
			"frames_dropped":   stats.FramesDropped,
			"frames_malformed": stats.FramesMalformed,
			"rows_evicted":     stats.RowsEvicted,
			"renders":          stats.Renders,
			"clients":          stats.Clients,
		},
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Descriptors())
}

// handleWaterfallPNG renders the current scene snapshot as a PNG.
func (s *Server) handleWaterfallPNG(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := s.rasterizer.WritePNG(&buf, s.engine.Snapshot()); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("rendering waterfall: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// handleChart renders the latest frame as an HTML line chart.
func (s *Server) handleChart(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	err := render.WriteSpectrumChart(&buf, s.engine.LatestFrame())
	switch {
	case errors.Is(err, render.ErrNoFrame):
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("rendering chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
