package ingress

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

// githubWebhookHandler handles POST /webhook/github (spec §6). It admits
// opened and synchronize actions, applies the recursion filter to
// synchronize events, and spawns a pipeline on admission.
func (s *Server) githubWebhookHandler(c *echo.Context) error {
	var payload githubWebhookPayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "malformed webhook payload"})
	}

	if payload.Action != "opened" && payload.Action != "synchronize" {
		return c.JSON(http.StatusOK, webhookIgnoredResponse{Message: "action ignored: " + payload.Action})
	}

	repo := payload.Repository.FullName
	pr := payload.PullRequest.Number
	headBranch := payload.PullRequest.Head.Ref
	headSHA := payload.PullRequest.Head.SHA
	cloneURL := payload.PullRequest.Head.Repo.CloneURL

	if payload.Action == "synchronize" {
		suppressed, err := s.orch.ShouldSuppress(c.Request().Context(), repo, headSHA)
		if err != nil {
			return c.JSON(http.StatusOK, webhookIgnoredResponse{Message: "recursion check failed", Reason: err.Error()})
		}
		if suppressed {
			return c.JSON(http.StatusOK, webhookIgnoredResponse{Reason: "ai_generated_commit"})
		}
	}

	trigger := domain.Trigger{
		Source:    "webhook",
		EventKind: payload.Action,
		Timestamp: time.Now(),
	}
	p := s.orch.Start(c.Request().Context(), repo, pr, headBranch, cloneURL, trigger)

	return c.JSON(http.StatusOK, webhookAdmittedResponse{
		Message:        "pipeline started",
		PRNumber:       pr,
		Repo:           repo,
		PipelineID:     p.ID,
		PipelineStatus: "starting",
	})
}

// triggerHandler handles POST /agents/trigger: a manual pipeline admission
// equivalent to a webhook "opened" event.
func (s *Server) triggerHandler(c *echo.Context) error {
	var req triggerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.RepoName == "" || req.PRNumber == 0 {
		return badRequest(c, "pr_number and repo_name are required")
	}

	trigger := domain.Trigger{Source: "manual", EventKind: "trigger", Timestamp: time.Now()}
	p := s.orch.Start(c.Request().Context(), req.RepoName, req.PRNumber, "", "", trigger)

	return c.JSON(http.StatusOK, triggerResponse{PipelineID: p.ID, Status: "initiated"})
}

// resultsWebhookHandler handles POST /webhook/results: this system's own
// comprehensive-results re-ingestion endpoint, for self-integration.
func (s *Server) resultsWebhookHandler(c *echo.Context) error {
	var payload resultsWebhookPayload
	if err := c.Bind(&payload); err != nil {
		return badRequest(c, err.Error())
	}
	if payload.EventType != "pipeline_complete" {
		return badRequest(c, "event_type must be pipeline_complete")
	}
	if payload.Results == nil {
		return badRequest(c, "results is required")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "accepted"})
}

// pipelineHandler handles GET /pipeline/{id}.
func (s *Server) pipelineHandler(c *echo.Context) error {
	id := c.Param("id")
	p, ok := s.orch.Snapshot(id)
	if !ok {
		return c.JSON(http.StatusOK, errorResponse{Error: "pipeline not found"})
	}

	return c.JSON(http.StatusOK, pipelineSnapshotResponse{
		PipelineID: p.ID,
		Stage:      string(p.Stage),
		PRNumber:   p.PR,
		RepoName:   p.Repo,
		Duration:   time.Since(p.StartTime).Seconds(),
		Results: map[string]any{
			"build":    p.Build,
			"analysis": p.Analysis,
			"fix":      p.Fix,
			"test":     p.Test,
		},
		Errors: p.Errors,
	})
}

// activePipelinesHandler handles GET /pipelines/active.
func (s *Server) activePipelinesHandler(c *echo.Context) error {
	stats := s.bus.Stats()
	total := 0
	for _, n := range stats {
		total += n
	}
	return c.JSON(http.StatusOK, activePipelinesResponse{
		ActiveConnections: stats,
		TotalConnections:  total,
		PipelineCount:     len(s.orch.ActiveIDs()),
	})
}
