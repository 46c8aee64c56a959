package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clipforge/clipforge-render/internal/engine"
	"github.com/clipforge/clipforge-render/internal/jobs"
	"github.com/clipforge/clipforge-render/internal/playback"
	"github.com/clipforge/clipforge-render/internal/probe"
)

const testToken = "test-token"

type fakeRenderer struct {
	submitted *engine.RenderRequest
	job       *jobs.Job
	err       error
	paused    bool
	queued    int64
	active    int64
}

func (f *fakeRenderer) Submit(_ context.Context, req *engine.RenderRequest) (*jobs.Job, error) {
	f.submitted = req
	if f.err != nil {
		return nil, f.err
	}
	if f.job != nil {
		return f.job, nil
	}
	return &jobs.Job{ID: "job-1", Status: jobs.StatusQueued}, nil
}

func (f *fakeRenderer) IsPaused() bool     { return f.paused }
func (f *fakeRenderer) QueueDepth() int64  { return f.queued }
func (f *fakeRenderer) ActiveCount() int64 { return f.active }

type fakeChecker struct {
	report *probe.Report
	err    error
}

func (f *fakeChecker) Check(context.Context) (*probe.Report, error) {
	return f.report, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(t *testing.T) (ServerConfig, *fakeRenderer, *jobs.MemoryStore) {
	t.Helper()
	store := jobs.NewMemoryStore()
	if err := store.SetSetting(context.Background(), "auth_token", testToken); err != nil {
		t.Fatal(err)
	}
	renderer := &fakeRenderer{}
	logger := discardLogger()
	cfg := ServerConfig{
		Port:       0,
		Engine:     renderer,
		Store:      store,
		Doctor:     probe.NewCachedDoctor(&fakeChecker{report: &probe.Report{Ready: true, ProbedAt: time.Now()}}, logger),
		Playback:   playback.NewServer(logger),
		Logger:     logger,
		StartTime:  time.Now(),
		InstanceID: "inst-test",
		Version:    "0.1.0",
	}
	return cfg, renderer, store
}

func doRequest(cfg ServerConfig, method, path, body string, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rr := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return body
}

func TestHealthIsPublic(t *testing.T) {
	cfg, renderer, _ := newTestConfig(t)
	renderer.queued = 2
	renderer.active = 1

	rr := doRequest(cfg, http.MethodGet, "/health", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["instance_id"] != "inst-test" {
		t.Errorf("instance_id = %v", body["instance_id"])
	}
	if body["queue_depth"].(float64) != 2 {
		t.Errorf("queue_depth = %v, want 2", body["queue_depth"])
	}
	if body["active_jobs"].(float64) != 1 {
		t.Errorf("active_jobs = %v, want 1", body["active_jobs"])
	}
}

func TestRenderAccepted(t *testing.T) {
	cfg, renderer, _ := newTestConfig(t)
	renderer.job = &jobs.Job{ID: "job-42", Status: jobs.StatusQueued}

	body := `{"clips":[{"sourceUrl":"https://example.com/a.mp4"}],"output":{"quality":"medium"}}`
	rr := doRequest(cfg, http.MethodPost, "/v1/render", body, true)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status code = %d, want %d: %s", rr.Code, http.StatusAccepted, rr.Body.String())
	}

	resp := decodeJSONBody(t, rr)
	if resp["jobId"] != "job-42" {
		t.Errorf("jobId = %v, want job-42", resp["jobId"])
	}
	if resp["status"] != "processing" {
		t.Errorf("status = %v, want processing", resp["status"])
	}
	if renderer.submitted == nil || len(renderer.submitted.Clips) != 1 {
		t.Error("request did not reach the engine intact")
	}
}

func TestRenderValidationFailureIs400(t *testing.T) {
	cfg, renderer, _ := newTestConfig(t)
	renderer.err = &engine.ValidationError{Reason: "at least one clip is required"}

	rr := doRequest(cfg, http.MethodPost, "/v1/render", `{"clips":[]}`, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "VALIDATION_ERROR" {
		t.Errorf("code = %v, want VALIDATION_ERROR", body["code"])
	}
}

func TestRenderWhilePausedIs503(t *testing.T) {
	cfg, renderer, _ := newTestConfig(t)
	renderer.err = engine.ErrPaused

	rr := doRequest(cfg, http.MethodPost, "/v1/render", `{"clips":[{"sourceUrl":"x"}]}`, true)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestRenderMalformedBodyIs400(t *testing.T) {
	cfg, _, _ := newTestConfig(t)
	rr := doRequest(cfg, http.MethodPost, "/v1/render", `{not json`, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetJobReportsStageAndProgress(t *testing.T) {
	cfg, _, store := newTestConfig(t)
	job := &jobs.Job{ID: "job-7", Status: jobs.StatusQueued}
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if err := store.SetStatus(context.Background(), "job-7", jobs.StatusEncoding, 52); err != nil {
		t.Fatal(err)
	}

	rr := doRequest(cfg, http.MethodGet, "/v1/jobs/job-7", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	body := decodeJSONBody(t, rr)
	if body["status"] != "processing" {
		t.Errorf("status = %v, want processing", body["status"])
	}
	if body["stage"] != jobs.StatusEncoding {
		t.Errorf("stage = %v, want %s", body["stage"], jobs.StatusEncoding)
	}
	if body["progress"].(float64) != 52 {
		t.Errorf("progress = %v, want 52", body["progress"])
	}
}

func TestGetJobFailedIncludesErrorType(t *testing.T) {
	cfg, _, store := newTestConfig(t)
	if err := store.Create(context.Background(), &jobs.Job{ID: "job-8", Status: jobs.StatusQueued}); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed(context.Background(), "job-8", "clip 0: download failed", jobs.ErrTypeFetch); err != nil {
		t.Fatal(err)
	}

	rr := doRequest(cfg, http.MethodGet, "/v1/jobs/job-8", "", true)
	body := decodeJSONBody(t, rr)
	if body["status"] != jobs.StatusFailed {
		t.Errorf("status = %v, want failed", body["status"])
	}
	if body["errorType"] != jobs.ErrTypeFetch {
		t.Errorf("errorType = %v, want %s", body["errorType"], jobs.ErrTypeFetch)
	}
	if body["error"] != "clip 0: download failed" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestGetJobUnknownIs404(t *testing.T) {
	cfg, _, _ := newTestConfig(t)
	rr := doRequest(cfg, http.MethodGet, "/v1/jobs/nope", "", true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestListJobsNewestFirst(t *testing.T) {
	cfg, _, store := newTestConfig(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Create(context.Background(), &jobs.Job{ID: id, Status: jobs.StatusQueued}); err != nil {
			t.Fatal(err)
		}
	}

	rr := doRequest(cfg, http.MethodGet, "/v1/jobs", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp JobsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Jobs) != 3 {
		t.Fatalf("len(jobs) = %d, want 3", len(resp.Jobs))
	}
	if resp.Jobs[0].JobID != "c" {
		t.Errorf("first job = %s, want c", resp.Jobs[0].JobID)
	}
}

func TestArtifactNotReadyIs409(t *testing.T) {
	cfg, _, store := newTestConfig(t)
	if err := store.Create(context.Background(), &jobs.Job{ID: "job-9", Status: jobs.StatusEncoding}); err != nil {
		t.Fatal(err)
	}

	rr := doRequest(cfg, http.MethodGet, "/v1/jobs/job-9/artifact", "", true)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestArtifactServedWithRangeSupport(t *testing.T) {
	cfg, _, store := newTestConfig(t)

	artifact := filepath.Join(t.TempDir(), "job-10.mp4")
	if err := os.WriteFile(artifact, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(context.Background(), &jobs.Job{ID: "job-10", Status: jobs.StatusQueued}); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkCompleted(context.Background(), "job-10", artifact, ""); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/job-10/artifact", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Range", "bytes=2-5")
	rr := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rr, req)

	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusPartialContent)
	}
	if got := rr.Body.String(); got != "2345" {
		t.Errorf("body = %q, want %q", got, "2345")
	}
}

func TestDoctorReportsToolchain(t *testing.T) {
	cfg, _, _ := newTestConfig(t)

	rr := doRequest(cfg, http.MethodGet, "/v1/doctor", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeJSONBody(t, rr)
	if ready, ok := body["ready"].(bool); !ok || !ready {
		t.Errorf("ready = %v, want true", body["ready"])
	}
}
