package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/videoforge/videoforge/pkg/dispatch"
	"github.com/videoforge/videoforge/pkg/models"
	"github.com/videoforge/videoforge/pkg/store"
)

type staticSampler struct {
	sample *models.MetricSample
}

func (s *staticSampler) Latest() *models.MetricSample {
	return s.sample
}

// newTestAPI wires a handler against a memory store and a dispatcher
// that is never started, so submitted jobs stay queued.
func newTestAPI(t *testing.T) (*mux.Router, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	worker := dispatch.NewStubWorker()
	d := dispatch.New(st, worker, dispatch.DefaultConfig(), nil)

	h := NewHandler(st, d, &staticSampler{sample: &models.MetricSample{CPUPercent: 12}}, nil)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r, st
}

func doRequest(t *testing.T, r *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSubmitJobEndpoint(t *testing.T) {
	r, st := newTestAPI(t)

	rec := doRequest(t, r, "POST", "/jobs", models.JobRequest{
		Kind: models.JobKindGenerateImages,
		User: "alice",
		Parameters: &models.JobPayload{
			Generate: &models.GenerateParams{Prompt: "sunset"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Bad response body: %v", err)
	}
	if resp["job_id"] == "" {
		t.Fatal("Expected a job_id in response")
	}

	job, err := st.GetJob(resp["job_id"])
	if err != nil {
		t.Fatalf("Job not recorded: %v", err)
	}
	if job.User != "alice" || job.Kind != models.JobKindGenerateImages {
		t.Errorf("Job fields lost: %+v", job)
	}
}

func TestSubmitJobUnknownKind(t *testing.T) {
	r, _ := newTestAPI(t)
	rec := doRequest(t, r, "POST", "/jobs", models.JobRequest{Kind: "transcode"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown kind, got %d", rec.Code)
	}
}

func TestSubmitDuplicateJob(t *testing.T) {
	r, _ := newTestAPI(t)
	req := models.JobRequest{ID: "dup", Kind: models.JobKindUpscaleImage}
	if rec := doRequest(t, r, "POST", "/jobs", req); rec.Code != http.StatusCreated {
		t.Fatalf("First submit failed: %d", rec.Code)
	}
	if rec := doRequest(t, r, "POST", "/jobs", req); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate, got %d", rec.Code)
	}
}

func TestGetJobNotFound(t *testing.T) {
	r, _ := newTestAPI(t)
	rec := doRequest(t, r, "GET", "/jobs/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestCancelFlow(t *testing.T) {
	r, st := newTestAPI(t)

	doRequest(t, r, "POST", "/jobs", models.JobRequest{ID: "c1", Kind: models.JobKindGenerateImages})

	rec := doRequest(t, r, "POST", "/jobs/c1/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 cancelling queued job, got %d: %s", rec.Code, rec.Body.String())
	}

	job, _ := st.GetJob("c1")
	if job.Status != models.JobStatusCancelled {
		t.Errorf("Job not cancelled: %s", job.Status)
	}

	// Terminal jobs cannot be cancelled again.
	if rec := doRequest(t, r, "POST", "/jobs/c1/cancel", nil); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 cancelling terminal job, got %d", rec.Code)
	}

	if rec := doRequest(t, r, "POST", "/jobs/ghost/cancel", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 cancelling unknown job, got %d", rec.Code)
	}
}

func TestListJobsEndpoint(t *testing.T) {
	r, _ := newTestAPI(t)
	for i := 0; i < 3; i++ {
		doRequest(t, r, "POST", "/jobs", models.JobRequest{
			ID:   fmt.Sprintf("j%d", i),
			Kind: models.JobKindGenerateImages,
		})
	}

	rec := doRequest(t, r, "GET", "/jobs?limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var jobs []models.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("Bad list body: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs with limit=2, got %d", len(jobs))
	}
}

func TestAlertAckEndpoint(t *testing.T) {
	r, st := newTestAPI(t)

	alert := &models.Alert{Type: "high_cpu_usage", Level: models.AlertLevelWarning, Message: "x"}
	if err := st.CreateAlert(alert); err != nil {
		t.Fatalf("Failed to seed alert: %v", err)
	}

	rec := doRequest(t, r, "POST", fmt.Sprintf("/alerts/%d/ack", alert.ID),
		map[string]string{"user": "ops"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	alerts, _ := st.RecentAlerts(1)
	if !alerts[0].Acknowledged || alerts[0].AcknowledgedBy != "ops" {
		t.Errorf("Alert not acknowledged: %+v", alerts[0])
	}

	if rec := doRequest(t, r, "POST", "/alerts/9999/ack", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown alert, got %d", rec.Code)
	}
	if rec := doRequest(t, r, "POST", "/alerts/abc/ack", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-numeric alert id, got %d", rec.Code)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	r, _ := newTestAPI(t)
	rec := doRequest(t, r, "GET", "/stats?hours=48", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var stats models.Statistics
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Bad stats body: %v", err)
	}
	if stats.WindowHours != 48 {
		t.Errorf("Window not honored: %d", stats.WindowHours)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	r, _ := newTestAPI(t)
	doRequest(t, r, "POST", "/jobs", models.JobRequest{ID: "d1", Kind: models.JobKindGenerateImages})

	rec := doRequest(t, r, "GET", "/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var snap map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Bad dashboard body: %v", err)
	}
	if snap["queue_depth"].(float64) != 1 {
		t.Errorf("Expected queue depth 1, got %v", snap["queue_depth"])
	}
	system := snap["system"].(map[string]interface{})
	if system["cpu_percent"].(float64) != 12 {
		t.Errorf("Sampler snapshot missing: %v", system)
	}
	if _, ok := snap["statistics"]; !ok {
		t.Error("Dashboard missing statistics")
	}
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestAPI(t)
	rec := doRequest(t, r, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}
