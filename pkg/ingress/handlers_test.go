package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
	"github.com/codewatch-ai/revbot/pkg/terminal"
)

type fakeOrchestrator struct {
	started    *domain.Pipeline
	startCalls int
	suppressed bool
	suppressErr error
	snapshot   domain.Pipeline
	snapshotOK bool
	activeIDs  []string
}

func (f *fakeOrchestrator) Start(ctx context.Context, repo string, pr int, headBranch, cloneURL string, trigger domain.Trigger) *domain.Pipeline {
	f.startCalls++
	if f.started == nil {
		f.started = &domain.Pipeline{ID: "p1", Repo: repo, PR: pr}
	}
	return f.started
}

func (f *fakeOrchestrator) ShouldSuppress(ctx context.Context, repo, headRef string) (bool, error) {
	return f.suppressed, f.suppressErr
}

func (f *fakeOrchestrator) Snapshot(id string) (domain.Pipeline, bool) {
	return f.snapshot, f.snapshotOK
}

func (f *fakeOrchestrator) ActiveIDs() []string { return f.activeIDs }

type fakeTerminals struct{}

func (fakeTerminals) Start(sessionID, command, cwd string) error         { return nil }
func (fakeTerminals) Terminate(sessionID string) error                  { return nil }
func (fakeTerminals) Status(sessionID string) (terminal.Status, error)  { return terminal.Status{}, nil }
func (fakeTerminals) ListSessions() []string                            { return nil }
func (fakeTerminals) OnLastSubscriberDisconnect(sessionID string)       {}

func newTestServer(orch *fakeOrchestrator) *Server {
	bus := events.NewBus(events.AllPipelinesTopic)
	return NewServer(bus, orch, fakeTerminals{})
}

func TestGithubWebhookHandler_AdmitsOpened(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{})

	body := `{"action":"opened","pull_request":{"number":7,"head":{"ref":"feature","sha":"abc"}},"repository":{"full_name":"o/r"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp webhookAdmittedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "starting", resp.PipelineStatus)
	assert.Equal(t, "p1", resp.PipelineID)
}

func TestGithubWebhookHandler_IgnoresOtherActions(t *testing.T) {
	orch := &fakeOrchestrator{}
	s := newTestServer(orch)

	body := `{"action":"closed","pull_request":{"number":7},"repository":{"full_name":"o/r"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, orch.startCalls)
}

func TestGithubWebhookHandler_SynchronizeSuppressed(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{suppressed: true})

	body := `{"action":"synchronize","pull_request":{"number":7,"head":{"ref":"feature","sha":"abc"}},"repository":{"full_name":"o/r"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp webhookIgnoredResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ai_generated_commit", resp.Reason)
}

func TestGithubWebhookHandler_MalformedPayload(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewBufferString(`{`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTriggerHandler_MissingFields(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/agents/trigger", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerHandler_Admits(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{})

	body := `{"pr_number":9,"repo_name":"o/r"}`
	req := httptest.NewRequest(http.MethodPost, "/agents/trigger", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp triggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "initiated", resp.Status)
}

func TestResultsWebhookHandler_ValidatesEventType(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/webhook/results", bytes.NewBufferString(`{"event_type":"other","results":{}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipelineHandler_UnknownID(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{snapshotOK: false})

	req := httptest.NewRequest(http.MethodGet, "/pipeline/missing", nil)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestPipelineHandler_KnownID(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{
		snapshotOK: true,
		snapshot:   domain.Pipeline{ID: "p1", Stage: domain.StageBuild, PR: 3, Repo: "o/r"},
	})

	req := httptest.NewRequest(http.MethodGet, "/pipeline/p1", nil)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp pipelineSnapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "build", resp.Stage)
}

func TestActivePipelinesHandler(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{activeIDs: []string{"a", "b"}})

	req := httptest.NewRequest(http.MethodGet, "/pipelines/active", nil)
	rec := httptest.NewRecorder()

	s.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp activePipelinesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.PipelineCount)
}

func TestValidateWiring_ReportsMissing(t *testing.T) {
	s := &Server{}
	err := s.ValidateWiring()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event bus")
	assert.Contains(t, err.Error(), "orchestrator")
	assert.Contains(t, err.Error(), "terminal streamer")
}
