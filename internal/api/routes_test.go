package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clipforge/clipforge-agent/internal/compose"
	"github.com/clipforge/clipforge-agent/internal/media"
	"github.com/clipforge/clipforge-agent/internal/playback"
	"github.com/clipforge/clipforge-agent/internal/segment"
	"github.com/clipforge/clipforge-agent/internal/session"
	"github.com/clipforge/clipforge-agent/internal/store"
)

const testToken = "test-token-123"

type stubAnalyzer struct {
	segments []segment.Segment
	err      error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, videoPath string, duration float64, onProgress func(string)) ([]segment.Segment, error) {
	return s.segments, s.err
}

type stubComposer struct {
	artifact string
	err      error
}

func (s *stubComposer) Compose(ctx context.Context, videoPath string, probe *media.ProbeResult, segments []segment.Segment) (string, error) {
	return s.artifact, s.err
}

type stubFFmpeg struct{}

func (s *stubFFmpeg) Probe(ctx context.Context, filePath string) (*media.ProbeResult, error) {
	return &media.ProbeResult{Duration: 60, Width: 640, Height: 360}, nil
}

func (s *stubFFmpeg) ExtractAudio(ctx context.Context, filePath, outputPath string) error {
	return nil
}

type memRepo struct {
	mu   sync.Mutex
	runs []*store.Run
	kv   map[string]string
}

func newMemRepo() *memRepo {
	return &memRepo{kv: map[string]string{"auth_token": testToken}}
}

func (r *memRepo) CreateRun(ctx context.Context, run *store.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *run
	r.runs = append(r.runs, &copied)
	return nil
}

func (r *memRepo) GetRun(ctx context.Context, id string) (*store.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListRuns(ctx context.Context, limit int) ([]*store.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*store.Run, len(r.runs))
	copy(out, r.runs)
	return out, nil
}

func (r *memRepo) FinishRun(ctx context.Context, id, status, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ID == id {
			run.Status = status
			run.Error = errorMsg
		}
	}
	return nil
}

func (r *memRepo) UpdateRunArtifact(ctx context.Context, id, artifactPath string, durationMs int64) error {
	return nil
}

func (r *memRepo) GetConfig(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kv[key], nil
}

func (r *memRepo) SetConfig(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kv[key] = value
	return nil
}

type testHarness struct {
	router  http.Handler
	session *session.Service
}

func newHarness(t *testing.T, analyzer *stubAnalyzer, composer *stubComposer) *testHarness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := session.NewService(
		analyzer,
		composer,
		&stubFFmpeg{},
		newMemRepo(),
		t.TempDir(),
		t.TempDir(),
		logger,
	)

	cfg := ServerConfig{
		Port:       0,
		Session:    svc,
		Playback:   playback.NewServer(logger),
		Repository: newMemRepo(),
		Progress:   compose.NewProgressLog(100),
		Toolchain:  &media.Capabilities{HasFFmpeg: true, HasFFprobe: true, ProbedAt: time.Now()},
		Logger:     logger,
		StartTime:  time.Now(),
		DeviceID:   "dev-test",
	}

	return &testHarness{router: NewRouter(cfg), session: svc}
}

func (h *testHarness) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func (h *testHarness) uploadAndWait(t *testing.T) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video", "talk.mp4")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("fake video bytes"))
	mw.Close()

	rr := h.do(t, http.MethodPost, "/video", &buf, mw.FormDataContentType())
	if rr.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d: %s", rr.Code, rr.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.session.State() == session.StateReady {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session did not reach ready, state = %s", h.session.State())
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v: %s", err, rr.Body.String())
	}
	return body
}

func apiSegments() []segment.Segment {
	return []segment.Segment{
		{ID: "seg-1", Start: 0, End: 2, Text: "Opening", Confidence: 0.9},
		{ID: "seg-2", Start: 5, End: 8, Text: "Main point", Confidence: 0.8},
	}
}

func TestHealthIsUnauthenticated(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{}, &stubComposer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["device_id"] != "dev-test" {
		t.Errorf("body = %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{}, &stubComposer{})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rr = httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rr.Code)
	}
}

func TestStatusReportsSessionAndToolchain(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{segments: apiSegments()}, &stubComposer{})

	rr := h.do(t, http.MethodGet, "/status", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["state"] != "idle" {
		t.Errorf("state = %v, want idle", body["state"])
	}
	toolchain, ok := body["toolchain"].(map[string]interface{})
	if !ok {
		t.Fatal("toolchain missing")
	}
	if toolchain["can_compose"] != true {
		t.Errorf("can_compose = %v", toolchain["can_compose"])
	}

	h.uploadAndWait(t)

	rr = h.do(t, http.MethodGet, "/status", nil, "")
	body = decodeJSONBody(t, rr)
	if body["state"] != "ready" {
		t.Errorf("state after analysis = %v", body["state"])
	}
	if body["segment_count"].(float64) != 2 {
		t.Errorf("segment_count = %v", body["segment_count"])
	}
}

func TestUploadRequiresMultipartField(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{}, &stubComposer{})

	rr := h.do(t, http.MethodPost, "/video", strings.NewReader("not multipart"), "video/mp4")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestSegmentsAndQueueFlow(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{segments: apiSegments()}, &stubComposer{})
	h.uploadAndWait(t)

	rr := h.do(t, http.MethodGet, "/segments", nil, "")
	body := decodeJSONBody(t, rr)
	if segs := body["segments"].([]interface{}); len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}

	// Unknown segment.
	rr = h.do(t, http.MethodPost, "/queue", strings.NewReader(`{"segment_id":"nope"}`), "application/json")
	if rr.Code != http.StatusNotFound {
		t.Errorf("enqueue unknown: status = %d, want 404", rr.Code)
	}

	// Queue order independent of source order.
	for _, id := range []string{"seg-2", "seg-1"} {
		rr = h.do(t, http.MethodPost, "/queue", strings.NewReader(`{"segment_id":"`+id+`"}`), "application/json")
		if rr.Code != http.StatusOK {
			t.Fatalf("enqueue %s: status = %d", id, rr.Code)
		}
	}

	rr = h.do(t, http.MethodGet, "/queue", nil, "")
	body = decodeJSONBody(t, rr)
	if body["selected_text"] != "Main point\nOpening" {
		t.Errorf("selected_text = %q", body["selected_text"])
	}

	// Out-of-range removal.
	rr = h.do(t, http.MethodDelete, "/queue/9", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("dequeue out of range: status = %d, want 404", rr.Code)
	}
	body = decodeJSONBody(t, rr)
	if body["code"] != "INDEX_OUT_OF_RANGE" {
		t.Errorf("code = %v", body["code"])
	}

	rr = h.do(t, http.MethodDelete, "/queue/0", nil, "")
	if rr.Code != http.StatusOK {
		t.Errorf("dequeue: status = %d", rr.Code)
	}

	rr = h.do(t, http.MethodDelete, "/queue", nil, "")
	if rr.Code != http.StatusOK {
		t.Errorf("clear: status = %d", rr.Code)
	}
	if got := len(h.session.QueueItems()); got != 0 {
		t.Errorf("queue after clear = %d", got)
	}
}

func TestComposeEmptyQueueRejected(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{segments: apiSegments()}, &stubComposer{})
	h.uploadAndWait(t)

	rr := h.do(t, http.MethodPost, "/compose", nil, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != "EMPTY_QUEUE" {
		t.Errorf("code = %v", body["code"])
	}
	if h.session.State() != session.StateReady {
		t.Errorf("state = %s, rejection must not transition", h.session.State())
	}
}

func TestComposeBeforeUploadConflicts(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{}, &stubComposer{})

	rr := h.do(t, http.MethodPost, "/compose", nil, "")
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestComposeFlowProducesArtifact(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{segments: apiSegments()}, &stubComposer{artifact: "/tmp/unused.webm"})
	h.uploadAndWait(t)

	h.do(t, http.MethodPost, "/queue", strings.NewReader(`{"segment_id":"seg-1"}`), "application/json")

	rr := h.do(t, http.MethodPost, "/compose", nil, "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.session.State() == session.StateCompleted {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if h.session.State() != session.StateCompleted {
		t.Fatalf("state = %s, want completed", h.session.State())
	}
}

func TestProgressEndpoint(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{}, &stubComposer{})

	rr := h.do(t, http.MethodGet, "/progress?since=abc", nil, "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad since: status = %d, want 400", rr.Code)
	}

	rr = h.do(t, http.MethodGet, "/progress", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if events, ok := body["events"].([]interface{}); !ok || len(events) != 0 {
		t.Errorf("events = %v, want empty list", body["events"])
	}
}

func TestArtifactAbsent(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{}, &stubComposer{})

	rr := h.do(t, http.MethodGet, "/artifact", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestExportEDL(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{segments: apiSegments()}, &stubComposer{})

	rr := h.do(t, http.MethodPost, "/export", nil, "")
	if rr.Code != http.StatusConflict {
		t.Errorf("no video: status = %d, want 409", rr.Code)
	}

	h.uploadAndWait(t)

	rr = h.do(t, http.MethodPost, "/export", nil, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty queue: status = %d, want 422", rr.Code)
	}

	h.do(t, http.MethodPost, "/queue", strings.NewReader(`{"segment_id":"seg-1"}`), "application/json")

	rr = h.do(t, http.MethodPost, "/export", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "TITLE:") {
		t.Errorf("body does not look like an EDL:\n%s", rr.Body.String())
	}
}

func TestDismissError(t *testing.T) {
	h := newHarness(t, &stubAnalyzer{err: errors.New("whisper exploded")}, &stubComposer{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("video", "talk.mp4")
	part.Write([]byte("x"))
	mw.Close()
	h.do(t, http.MethodPost, "/video", &buf, mw.FormDataContentType())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.session.State() == session.StateIdle && h.session.LastError() != "" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if h.session.LastError() == "" {
		t.Fatal("expected recorded analysis error")
	}

	rr := h.do(t, http.MethodDelete, "/error", nil, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if h.session.LastError() != "" {
		t.Error("error not cleared")
	}
}
