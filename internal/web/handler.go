package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kicad-gtm/kicad-gtm/internal/config"
	"github.com/kicad-gtm/kicad-gtm/internal/engine"
	"github.com/kicad-gtm/kicad-gtm/internal/models"
	"github.com/kicad-gtm/kicad-gtm/pkg/utils"
)

const defaultErrorLimit = 20

// StatusSource provides the live engine status.
type StatusSource interface {
	Snapshot() engine.Status
}

// ErrorSource lists stored tick errors.
type ErrorSource interface {
	RecentErrors(limit int) ([]*models.ErrorLog, error)
}

type Handler struct {
	config  *config.Config
	status  StatusSource
	errors  ErrorSource
	metrics http.Handler
	logger  zerolog.Logger
}

func NewHandler(cfg *config.Config, status StatusSource, errs ErrorSource, metrics http.Handler, logger zerolog.Logger) *Handler {
	return &Handler{
		config:  cfg,
		status:  status,
		errors:  errs,
		metrics: metrics,
		logger:  logger.With().Str("component", "web").Logger(),
	}
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/errors", h.handleErrors)

	mux.HandleFunc("/health", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics)
	}

	mux.HandleFunc("/", h.handleIndex)
}

type statusResponse struct {
	engine.Status
	Text         string `json:"status"`
	LastActivity string `json:"last_activity"`
	LastAgo      string `json:"last_activity_ago,omitempty"`
	PollInterval string `json:"poll_interval"`
	DatabasePath string `json:"database_path"`
	RecordingOff bool   `json:"recording_disabled"`
}

func (h *Handler) buildStatus() statusResponse {
	s := h.status.Snapshot()
	resp := statusResponse{
		Status:       s,
		Text:         s.Text(),
		LastActivity: s.LastActivity(),
		PollInterval: h.config.Tracker.PollInterval.String(),
		DatabasePath: h.config.Database.Path,
		RecordingOff: h.config.Sink.DisableRecording,
	}
	if s.LastRecordedAt != nil {
		resp.LastAgo = utils.Ago(*s.LastRecordedAt, time.Now())
	}
	return resp
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.respondJSON(w, h.buildStatus())
}

func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultErrorLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = l
	}

	logs, err := h.errors.RecentErrors(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch errors: %v", err), http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []*models.ErrorLog{}
	}

	h.respondJSON(w, logs)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta http-equiv="refresh" content="5">
    <title>kicad-gtm</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 2em; color: #333; }
        h1 { color: #314cb0; }
        table { border-collapse: collapse; }
        td { padding: 4px 12px; border-bottom: 1px solid #eee; }
        td.label { color: #777; }
        .ok { color: #2e7d32; font-weight: bold; }
        .warn { color: #c62828; font-weight: bold; }
    </style>
</head>
<body>
    <h1>kicad-gtm</h1>
    <table>
        <tr><td class="label">status</td><td class="{{if eq .Text "OK"}}ok{{else}}warn{{end}}">{{.Text}}</td></tr>
        <tr><td class="label">projects folder</td><td>{{.ProjectsFolder}}</td></tr>
        <tr><td class="label">indexed files</td><td>{{.IndexedFiles}}</td></tr>
        <tr><td class="label">focused window</td><td>{{.WindowTitle}}</td></tr>
        <tr><td class="label">tracked file</td><td>{{.CurrentFullPath}}</td></tr>
        <tr><td class="label">last activity recorded</td><td>{{.LastActivity}}{{if .LastAgo}} ({{.LastAgo}}){{end}}</td></tr>
        {{if .RecordingOff}}<tr><td class="label">recording</td><td class="warn">disabled</td></tr>{{end}}
    </table>
    <p><a href="/api/status">status</a> · <a href="/api/errors">errors</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`))

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, h.buildStatus()); err != nil {
		h.logger.Error().Err(err).Msg("failed to render index")
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("error encoding JSON")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
