package server

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
	"testing"
	"time"

	"github.com/dusk-indust/vlab/internal/completion/completiontest"
	"github.com/dusk-indust/vlab/internal/orchestrator"
	"github.com/dusk-indust/vlab/internal/project"
	"github.com/dusk-indust/vlab/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brief = "Develop nanobodies against the SARS-CoV-2 spike protein within 2 months. Budget is $30,000. Goal: therapeutic candidates."

func newTestServer(t *testing.T, client *completiontest.Client) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lab := orchestrator.NewLab(client, orchestrator.WithLogger(logger))
	svc := project.NewService(lab, session.NewStore(), project.WithLogger(logger))
	srv := httptest.NewServer(New(Config{
		Service:              svc,
		Logger:               logger,
		AllowedOrigins:       []string{"http://localhost:5173"},
		CompletionConfigured: true,
		Version:              "test",
	}))
	t.Cleanup(srv.Close)
	return srv
}

func uploadBrief(t *testing.T, srv *httptest.Server, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func confirmBodyFor(projectID string, facts project.UploadResult) ConfirmBody {
	return ConfirmBody{
		ProjectID: projectID,
		ConfirmedData: FactsBody{
			Target:     facts.ExtractedData.Target,
			Timeline:   facts.ExtractedData.Timeline,
			Budget:     facts.ExtractedData.Budget,
			Goal:       facts.ExtractedData.Goal,
			Confidence: facts.ExtractedData.Confidence,
		},
	}
}

func TestServer_Meta(t *testing.T) {
	srv := newTestServer(t, completiontest.New())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[HealthBody](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.CompletionConfigured)
	assert.Equal(t, 0, health.Sessions)

	resp = uploadBrief(t, srv, "brief.txt", brief)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, 1, decode[HealthBody](t, resp).Sessions)

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	banner := decode[BannerBody](t, resp)
	assert.Equal(t, "AI Virtual Lab API", banner.Message)
	assert.Equal(t, "test", banner.Version)
}

func TestServer_FullFlow(t *testing.T) {
	srv := newTestServer(t, completiontest.New())

	resp := uploadBrief(t, srv, "brief.txt", brief)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	up := decode[project.UploadResult](t, resp)
	require.NotEmpty(t, up.ProjectID)
	assert.Equal(t, "brief.txt", up.Filename)
	assert.Equal(t, orchestrator.CheckpointUnderstanding, up.Checkpoint)
	assert.Len(t, up.ProgressEvents, 2)

	resp = postJSON(t, srv, "/api/confirm-understanding", confirmBodyFor(up.ProjectID, up))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	conf := decode[project.ConfirmResult](t, resp)
	assert.Equal(t, orchestrator.CheckpointWorkflowSelection, conf.Checkpoint)
	require.NotNil(t, conf.Strategy)
	require.NotNil(t, conf.WorkflowOptions)
	assert.Equal(t, "$350", conf.WorkflowOptions.TotalEstimatedCost)
	assert.Len(t, conf.AgentInsights, 3)

	resp = postJSON(t, srv, "/api/finalize-workflow", FinalizeBody{
		ProjectID:     up.ProjectID,
		SelectedSteps: []string{"affinity_prediction"},
		UserNotes:     "skip structure",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fin := decode[project.FinalizeResult](t, resp)
	assert.Equal(t, session.PhaseFinalized, fin.Status)
	assert.Len(t, fin.FinalWorkflow, 3)
	assert.Equal(t, "$50", fin.TotalEstimatedCost)
	assert.Equal(t, "/api/report/"+up.ProjectID, fin.ShareURL)

	resp, err := http.Get(srv.URL + fin.ShareURL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep := decode[session.Report](t, resp)
	assert.Equal(t, up.ProjectID, rep.ProjectID)
	assert.Equal(t, session.PhaseFinalized, rep.Status)
	assert.Equal(t, "skip structure", rep.Checkpoint2.UserSelections.UserNotes)

	resp, err = http.Get(srv.URL + "/api/project/" + up.ProjectID + "/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[session.Status](t, resp)
	assert.True(t, st.Checkpoints.Checkpoint1Complete)
	assert.True(t, st.Checkpoints.Checkpoint2Complete)
}

func TestServer_UploadErrors(t *testing.T) {
	srv := newTestServer(t, completiontest.New())

	tests := []struct {
		name     string
		filename string
		content  string
		code     string
	}{
		{"unsupported extension", "brief.png", brief, "unsupported_type"},
		{"too short", "brief.txt", "too short", "too_short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := uploadBrief(t, srv, tt.filename, tt.content)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			env := decode[errorEnvelope](t, resp)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	t.Run("missing file field", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/upload", "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		env := decode[errorEnvelope](t, resp)
		assert.Equal(t, "bad_request", env.Error.Code)
	})
}

func TestServer_UploadAnalysisFailure(t *testing.T) {
	client := completiontest.New().Fail(completiontest.KeyFacts, errors.New("rate limited"))
	srv := newTestServer(t, client)

	resp := uploadBrief(t, srv, "brief.txt", brief)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	env := decode[errorEnvelope](t, resp)
	assert.Equal(t, "analysis_failed", env.Error.Code)
	assert.Contains(t, env.Error.Message, "rate limited")
}

func TestServer_NotFound(t *testing.T) {
	srv := newTestServer(t, completiontest.New())

	for _, path := range []string{"/api/report/missing", "/api/project/missing/status"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		env := decode[errorEnvelope](t, resp)
		assert.Equal(t, "not_found", env.Error.Code)
	}

	resp := postJSON(t, srv, "/api/confirm-understanding", ConfirmBody{
		ProjectID:     "missing",
		ConfirmedData: FactsBody{Target: "t", Timeline: "1 month", Budget: "$1", Goal: "g"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_PhaseMismatch(t *testing.T) {
	srv := newTestServer(t, completiontest.New())

	up := decode[project.UploadResult](t, uploadBrief(t, srv, "brief.txt", brief))

	resp := postJSON(t, srv, "/api/finalize-workflow", FinalizeBody{
		ProjectID:     up.ProjectID,
		SelectedSteps: []string{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decode[errorEnvelope](t, resp)
	assert.Equal(t, "phase_mismatch", env.Error.Code)
	assert.Equal(t, string(session.PhaseCheckpoint1), env.Error.Details["current"])
}

func TestServer_InvalidSelection(t *testing.T) {
	srv := newTestServer(t, completiontest.New())

	up := decode[project.UploadResult](t, uploadBrief(t, srv, "brief.txt", brief))
	resp := postJSON(t, srv, "/api/confirm-understanding", confirmBodyFor(up.ProjectID, up))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv, "/api/finalize-workflow", FinalizeBody{
		ProjectID:     up.ProjectID,
		SelectedSteps: []string{"teleport_protein"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decode[errorEnvelope](t, resp)
	assert.Equal(t, "invalid_selection", env.Error.Code)
}

func TestServer_ValidationUsesEnvelope(t *testing.T) {
	srv := newTestServer(t, completiontest.New())

	resp, err := http.Post(srv.URL+"/api/confirm-understanding", "application/json", strings.NewReader(`{"project_id":""}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	env := decode[errorEnvelope](t, resp)
	assert.Equal(t, "bad_request", env.Error.Code)
	assert.NotEmpty(t, env.Error.Message)
}

func TestServer_CORS(t *testing.T) {
	srv := newTestServer(t, completiontest.New())

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/confirm-understanding", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func readFrames(t *testing.T, resp *http.Response) []StreamFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var frames []StreamFrame
	for f := range ReadStream(ctx, resp.Body) {
		require.NoError(t, f.Err)
		frames = append(frames, f)
	}
	return frames
}

func TestServer_ConfirmStream(t *testing.T) {
	srv := newTestServer(t, completiontest.New())
	up := decode[project.UploadResult](t, uploadBrief(t, srv, "brief.txt", brief))

	resp := postJSON(t, srv, "/api/confirm-understanding-stream", confirmBodyFor(up.ProjectID, up))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := readFrames(t, resp)
	require.Len(t, frames, 13)

	var progress []float64
	for _, f := range frames[:12] {
		require.Equal(t, project.MessageProgress, f.Type)
		require.NotNil(t, f.Event)
		progress = append(progress, f.Event.Progress)
	}
	assert.Equal(t, []float64{0, 5, 15, 30, 35, 50, 55, 70, 75, 90, 92, 100}, progress)

	last := frames[12]
	assert.Equal(t, project.MessageComplete, last.Type)
	require.NotNil(t, last.Data)
	assert.Equal(t, up.ProjectID, last.Data.ProjectID)
	assert.Equal(t, orchestrator.CheckpointWorkflowSelection, last.Data.Checkpoint)
}

func TestServer_ConfirmStreamAnalysisError(t *testing.T) {
	client := completiontest.New()
	srv := newTestServer(t, client)
	up := decode[project.UploadResult](t, uploadBrief(t, srv, "brief.txt", brief))

	client.Fail(completiontest.KeyMLSpecialist, errors.New("upstream down"))
	resp := postJSON(t, srv, "/api/confirm-understanding-stream", confirmBodyFor(up.ProjectID, up))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frames := readFrames(t, resp)
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, project.MessageError, last.Type)
	assert.Contains(t, last.Error, "upstream down")

	var errorEvents int
	for _, f := range frames[:len(frames)-1] {
		if f.Event != nil && f.Event.Type == orchestrator.EventError {
			errorEvents++
		}
	}
	assert.Equal(t, 1, errorEvents)
}

func TestServer_ConfirmStreamRejectsBeforeStreaming(t *testing.T) {
	srv := newTestServer(t, completiontest.New())

	resp := postJSON(t, srv, "/api/confirm-understanding-stream", ConfirmBody{ProjectID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	env := decode[errorEnvelope](t, resp)
	assert.Equal(t, "not_found", env.Error.Code)

	resp, err := http.Post(srv.URL+"/api/confirm-understanding-stream", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_ConfirmRejectsOutOfRangeConfidence(t *testing.T) {
	srv := newTestServer(t, completiontest.New())

	resp := uploadBrief(t, srv, "brief.txt", brief)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	up := decode[project.UploadResult](t, resp)

	body := confirmBodyFor(up.ProjectID, up)
	body.ConfirmedData.Confidence = 5

	for _, path := range []string{"/api/confirm-understanding", "/api/confirm-understanding-stream"} {
		t.Run(path, func(t *testing.T) {
			resp := postJSON(t, srv, path, body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			env := decode[errorEnvelope](t, resp)
			assert.Equal(t, "bad_request", env.Error.Code)
		})
	}

	resp = postJSON(t, srv, "/api/confirm-understanding-stream", ConfirmBody{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/project/" + up.ProjectID + "/status")
	require.NoError(t, err)
	st := decode[session.Status](t, resp)
	assert.Equal(t, session.PhaseCheckpoint1, st.Phase)
}

func TestReadStream(t *testing.T) {
	body := ": keepalive\n" +
		"data: {\"type\":\"progress\",\n" +
		"data: \"event\":{\"event_type\":\"step_start\",\"step_name\":\"a\",\"progress\":0,\"message\":\"m\",\"timestamp\":\"2026-01-01T00:00:00Z\"}}\n" +
		"\n" +
		"event: ignored\n" +
		"data: not json\n" +
		"\n" +
		"data: {\"type\":\"complete\"}"

	ctx := context.Background()
	var frames []StreamFrame
	for f := range ReadStream(ctx, io.NopCloser(strings.NewReader(body))) {
		frames = append(frames, f)
	}
	require.Len(t, frames, 3)

	require.NoError(t, frames[0].Err)
	assert.Equal(t, project.MessageProgress, frames[0].Type)
	require.NotNil(t, frames[0].Event)
	assert.Equal(t, orchestrator.EventStepStart, frames[0].Event.Type)

	assert.Error(t, frames[1].Err)

	require.NoError(t, frames[2].Err)
	assert.Equal(t, project.MessageComplete, frames[2].Type)
}

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewSSEWriter(rec)
	assert.False(t, sw.Started())

	require.NoError(t, sw.WriteMessage(project.StreamMessage{Type: project.MessageError, Error: "boom"}))
	assert.True(t, sw.Started())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "data: {\"type\":\"error\",\"error\":\"boom\"}\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}
