package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/videoforge/videoforge/pkg/dispatch"
	"github.com/videoforge/videoforge/pkg/logging"
	"github.com/videoforge/videoforge/pkg/models"
	"github.com/videoforge/videoforge/pkg/store"
)

// Dispatcher is the job-control surface the API needs
type Dispatcher interface {
	Submit(job *models.Job) (string, error)
	Cancel(id string) error
	QueueDepth() int
	ActiveJobs() int
}

// Sampler exposes the most recent resource reading
type Sampler interface {
	Latest() *models.MetricSample
}

// Handler serves the job and monitoring HTTP API
type Handler struct {
	store      store.Store
	dispatcher Dispatcher
	sampler    Sampler
	log        *logging.Logger
	startTime  time.Time
}

// NewHandler creates an API handler
func NewHandler(st store.Store, d Dispatcher, s Sampler, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &Handler{
		store:      st,
		dispatcher: d,
		sampler:    s,
		log:        log.WithField("component", "api"),
		startTime:  time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Job routes
	r.HandleFunc("/jobs", h.SubmitJob).Methods("POST")
	r.HandleFunc("/jobs", h.ListJobs).Methods("GET")
	r.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	r.HandleFunc("/jobs/{id}/cancel", h.CancelJob).Methods("POST")

	// Monitoring routes
	r.HandleFunc("/stats", h.GetStatistics).Methods("GET")
	r.HandleFunc("/metrics/history", h.GetMetricHistory).Methods("GET")
	r.HandleFunc("/alerts", h.ListAlerts).Methods("GET")
	r.HandleFunc("/alerts/{id}/ack", h.AcknowledgeAlert).Methods("POST")
	r.HandleFunc("/dashboard", h.Dashboard).Methods("GET")

	r.HandleFunc("/health", h.Health).Methods("GET")
}

// SubmitJob accepts a job and queues it for dispatch
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req models.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Kind {
	case models.JobKindGenerateImages, models.JobKindUpscaleImage, models.JobKindSuperResolveVideo:
	default:
		http.Error(w, fmt.Sprintf("Unknown job kind: %s", req.Kind), http.StatusBadRequest)
		return
	}

	job := &models.Job{
		ID:         req.ID,
		Kind:       req.Kind,
		User:       req.User,
		Parameters: req.Parameters,
	}

	id, err := h.dispatcher.Submit(job)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateJob):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, dispatch.ErrQueueFull):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			h.log.Error("Job submission failed", map[string]interface{}{"error": err.Error()})
			http.Error(w, "Failed to submit job", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"job_id": id,
		"status": models.JobStatusQueued,
	})
}

// ListJobs returns the most recently created jobs
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	jobs, err := h.store.ListRecentJobs(limit)
	if err != nil {
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, jobs)
}

// GetJob returns one job by ID
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.store.GetJob(id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// CancelJob cancels a queued job. Jobs already running are rejected.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.dispatcher.Cancel(id); err != nil {
		switch {
		case errors.Is(err, store.ErrJobNotFound):
			http.Error(w, "Job not found", http.StatusNotFound)
		case errors.Is(err, dispatch.ErrNotCancellable):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, "Failed to cancel job", http.StatusInternalServerError)
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": id,
		"status": models.JobStatusCancelled,
	})
}

// GetStatistics returns aggregated job outcomes over a trailing window
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	stats, err := h.store.Statistics(time.Duration(hours) * time.Hour)
	if err != nil {
		http.Error(w, "Failed to compute statistics", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// GetMetricHistory returns resource samples over a trailing window
func (h *Handler) GetMetricHistory(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 1)
	history, err := h.store.MetricHistory(time.Duration(hours) * time.Hour)
	if err != nil {
		http.Error(w, "Failed to load metric history", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

// ListAlerts returns the most recent alerts
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	alerts, err := h.store.RecentAlerts(limit)
	if err != nil {
		http.Error(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, alerts)
}

// AcknowledgeAlert marks an alert as acknowledged by an operator
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid alert id", http.StatusBadRequest)
		return
	}

	var body struct {
		User string `json:"user"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	if body.User == "" {
		body.User = "operator"
	}

	if err := h.store.AcknowledgeAlert(id, body.User); err != nil {
		if errors.Is(err, store.ErrAlertNotFound) {
			http.Error(w, "Alert not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to acknowledge alert", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"alert_id":     id,
		"acknowledged": true,
	})
}

// Dashboard returns a combined operational snapshot
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	snapshot := map[string]interface{}{
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
		"queue_depth":    h.dispatcher.QueueDepth(),
		"active_jobs":    h.dispatcher.ActiveJobs(),
	}

	if h.sampler != nil {
		snapshot["system"] = h.sampler.Latest()
	}
	if jobs, err := h.store.ListRecentJobs(10); err == nil {
		snapshot["recent_jobs"] = jobs
	}
	if alerts, err := h.store.RecentAlerts(10); err == nil {
		snapshot["recent_alerts"] = alerts
	}
	if stats, err := h.store.Statistics(24 * time.Hour); err == nil {
		snapshot["statistics"] = stats
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

// Health is a liveness probe
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
