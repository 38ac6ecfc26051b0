package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/videowizard/render-api/internal/engine"
	"github.com/videowizard/render-api/internal/handler"
	"github.com/videowizard/render-api/internal/model"
	"github.com/videowizard/render-api/internal/queue"
)

// fakeEngine renders instantly (or after a fixed delay) without touching any
// external process.
type fakeEngine struct {
	delay time.Duration
	err   error
}

func (f *fakeEngine) SelectComposition(_ context.Context, compositionID string, _ json.RawMessage) (*engine.Composition, error) {
	return &engine.Composition{ID: compositionID}, nil
}

func (f *fakeEngine) Render(_ context.Context, spec engine.RenderSpec) error {
	if f.delay > 0 {
		select {
		case <-spec.Cancel.Done():
			return engine.ErrCancelled
		case <-time.After(f.delay):
		}
	}
	return f.err
}

// setupApp builds a Fiber app wired like main.go, minus rate limiting and the
// websocket hub.
func setupApp(t *testing.T, eng engine.Engine) *fiber.App {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	q := queue.New(queue.Config{
		RendersDir: t.TempDir(),
		PublicURL:  "http://localhost:3001",
	}, eng, queue.NewRegistry(), log)
	q.Start()
	t.Cleanup(q.Stop)

	renderHandler := handler.NewRenderHandler(q, validator.New())

	app := fiber.New()
	app.Get("/health", handler.Health)
	app.Post("/renders", renderHandler.Create)
	app.Get("/renders", renderHandler.List)
	app.Get("/renders/:jobId", renderHandler.Get)
	app.Delete("/renders/:jobId", renderHandler.Cancel)

	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, 2000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", string(data), err)
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Errorf("expected status %d, got %d", want, resp.StatusCode)
	}
}

func validCreateBody() string {
	return `{
		"compositionId": "VideoWithSubtitles",
		"inputProps": {
			"videoUrl": "https://example.com/video.mp4",
			"subtitles": [
				{"id": 1, "start": 0, "end": 1.5, "text": "hello"},
				{"id": 2, "start": 1.5, "end": 3, "text": "world"}
			],
			"template": "viral",
			"backgroundColor": "#000000"
		}
	}`
}

func TestHealth(t *testing.T) {
	app := setupApp(t, &fakeEngine{})

	resp := doRequest(t, app, http.MethodGet, "/health", "")
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", result["status"])
	}
	if result["timestamp"] == nil {
		t.Error("expected 'timestamp' in response")
	}
}

func TestCreateRender_Success(t *testing.T) {
	app := setupApp(t, &fakeEngine{})

	resp := doRequest(t, app, http.MethodPost, "/renders", validCreateBody())
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	jobID, _ := result["jobId"].(string)
	if jobID == "" {
		t.Fatal("expected 'jobId' in response")
	}

	resp = doRequest(t, app, http.MethodGet, "/renders/"+jobID, "")
	assertStatus(t, resp, http.StatusOK)
	job := parseJSON(t, resp)
	if job["id"] != jobID {
		t.Errorf("expected job id %q, got %v", jobID, job["id"])
	}
}

func TestCreateRender_ValidationMatrix(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing compositionId", `{"inputProps": {"videoUrl": "https://example.com/v.mp4", "subtitles": []}}`},
		{"non-string compositionId", `{"compositionId": 42, "inputProps": {"videoUrl": "https://example.com/v.mp4", "subtitles": []}}`},
		{"missing inputProps", `{"compositionId": "VideoWithSubtitles"}`},
		{"non-object inputProps", `{"compositionId": "VideoWithSubtitles", "inputProps": "props"}`},
		{"missing videoUrl", `{"compositionId": "VideoWithSubtitles", "inputProps": {"subtitles": []}}`},
		{"non-string videoUrl", `{"compositionId": "VideoWithSubtitles", "inputProps": {"videoUrl": 7, "subtitles": []}}`},
		{"missing subtitles", `{"compositionId": "VideoWithSubtitles", "inputProps": {"videoUrl": "https://example.com/v.mp4"}}`},
		{"subtitles not an array", `{"compositionId": "VideoWithSubtitles", "inputProps": {"videoUrl": "https://example.com/v.mp4", "subtitles": "nope"}}`},
		{"empty body", `{}`},
	}

	app := setupApp(t, &fakeEngine{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, app, http.MethodPost, "/renders", tt.body)
			assertStatus(t, resp, http.StatusBadRequest)
		})
	}
}

func TestCreateRender_ValidationMessages(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			"missing compositionId",
			`{"inputProps": {"videoUrl": "https://example.com/v.mp4", "subtitles": []}}`,
			"compositionId is required and must be a string",
		},
		{
			"missing inputProps",
			`{"compositionId": "VideoWithSubtitles"}`,
			"inputProps is required and must be an object",
		},
		{
			"missing videoUrl",
			`{"compositionId": "VideoWithSubtitles", "inputProps": {"subtitles": []}}`,
			"inputProps.videoUrl is required and must be a string",
		},
		{
			"missing subtitles",
			`{"compositionId": "VideoWithSubtitles", "inputProps": {"videoUrl": "https://example.com/v.mp4"}}`,
			"inputProps.subtitles is required and must be an array",
		},
	}

	app := setupApp(t, &fakeEngine{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, app, http.MethodPost, "/renders", tt.body)
			assertStatus(t, resp, http.StatusBadRequest)

			result := parseJSON(t, resp)
			errObj, _ := result["error"].(map[string]interface{})
			if errObj == nil {
				t.Fatal("expected error envelope in response")
			}
			if errObj["message"] != tt.message {
				t.Errorf("expected message %q, got %v", tt.message, errObj["message"])
			}
		})
	}
}

func TestCreateRender_EmptySubtitlesAllowed(t *testing.T) {
	app := setupApp(t, &fakeEngine{})

	body := `{"compositionId": "VideoWithSubtitles", "inputProps": {"videoUrl": "https://example.com/v.mp4", "subtitles": []}}`
	resp := doRequest(t, app, http.MethodPost, "/renders", body)
	assertStatus(t, resp, http.StatusOK)
}

func TestGetRender_NotFound(t *testing.T) {
	app := setupApp(t, &fakeEngine{})

	resp := doRequest(t, app, http.MethodGet, "/renders/unknown-id", "")
	assertStatus(t, resp, http.StatusNotFound)
}

func TestGetRender_CompletedJobHasResultLocator(t *testing.T) {
	app := setupApp(t, &fakeEngine{})

	resp := doRequest(t, app, http.MethodPost, "/renders", validCreateBody())
	jobID := parseJSON(t, resp)["jobId"].(string)

	var job map[string]interface{}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp = doRequest(t, app, http.MethodGet, "/renders/"+jobID, "")
		job = parseJSON(t, resp)
		if job["status"] == string(model.JobStatusCompleted) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if job["status"] != string(model.JobStatusCompleted) {
		t.Fatalf("job did not complete, last status %v", job["status"])
	}
	videoURL, _ := job["videoUrl"].(string)
	if !strings.Contains(videoURL, jobID) {
		t.Errorf("expected videoUrl to contain the job id, got %q", videoURL)
	}
}

func TestCancelRender_NotFound(t *testing.T) {
	app := setupApp(t, &fakeEngine{})

	resp := doRequest(t, app, http.MethodDelete, "/renders/unknown-id", "")
	assertStatus(t, resp, http.StatusNotFound)
}

func TestCancelRender_QueuedJob(t *testing.T) {
	app := setupApp(t, &fakeEngine{delay: 300 * time.Millisecond})

	// First job occupies the pipeline; the second stays queued.
	doRequest(t, app, http.MethodPost, "/renders", validCreateBody())
	resp := doRequest(t, app, http.MethodPost, "/renders", validCreateBody())
	jobID := parseJSON(t, resp)["jobId"].(string)

	resp = doRequest(t, app, http.MethodDelete, "/renders/"+jobID, "")
	assertStatus(t, resp, http.StatusOK)

	// A cancelled queued job is gone.
	resp = doRequest(t, app, http.MethodGet, "/renders/"+jobID, "")
	assertStatus(t, resp, http.StatusNotFound)
}

func TestCancelRender_TerminalJob(t *testing.T) {
	app := setupApp(t, &fakeEngine{})

	resp := doRequest(t, app, http.MethodPost, "/renders", validCreateBody())
	jobID := parseJSON(t, resp)["jobId"].(string)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp = doRequest(t, app, http.MethodGet, "/renders/"+jobID, "")
		if parseJSON(t, resp)["status"] == string(model.JobStatusCompleted) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	resp = doRequest(t, app, http.MethodDelete, "/renders/"+jobID, "")
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestListRenders(t *testing.T) {
	app := setupApp(t, &fakeEngine{})

	doRequest(t, app, http.MethodPost, "/renders", validCreateBody())
	doRequest(t, app, http.MethodPost, "/renders", validCreateBody())

	resp := doRequest(t, app, http.MethodGet, "/renders", "")
	assertStatus(t, resp, http.StatusOK)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var jobs []map[string]interface{}
	if err := json.Unmarshal(data, &jobs); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}
}
