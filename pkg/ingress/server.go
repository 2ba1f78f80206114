// Package ingress implements the HTTP/WebSocket front door (spec §6): the
// webhook and trigger endpoints that admit pipelines, the read-only
// snapshot/status endpoints, and the event/terminal WebSocket streams.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
	"github.com/codewatch-ai/revbot/pkg/terminal"
	"github.com/codewatch-ai/revbot/pkg/version"
)

// orchestrator is the narrow slice of pkg/pipeline.Orchestrator the ingress
// layer depends on, so handlers can be tested against a fake.
type orchestrator interface {
	Start(ctx context.Context, repo string, pr int, headBranch, cloneURL string, trigger domain.Trigger) *domain.Pipeline
	ShouldSuppress(ctx context.Context, repo, headRef string) (bool, error)
	Snapshot(id string) (domain.Pipeline, bool)
	ActiveIDs() []string
}

// terminalStreamer is the slice of pkg/terminal.Streamer the ingress layer
// depends on.
type terminalStreamer interface {
	Start(sessionID, command, cwd string) error
	Terminate(sessionID string) error
	Status(sessionID string) (terminal.Status, error)
	ListSessions() []string
	OnLastSubscriberDisconnect(sessionID string)
}

// Server is the revbot HTTP/WebSocket front door.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	bus       *events.Bus
	orch      orchestrator
	terminals terminalStreamer
	startedAt time.Time
}

// NewServer constructs a Server and registers every route.
func NewServer(bus *events.Bus, orch orchestrator, terminals terminalStreamer) *Server {
	e := echo.New()
	e.Use(middleware.BodyLimit(2 * 1024 * 1024))

	s := &Server{echo: e, bus: bus, orch: orch, terminals: terminals, startedAt: time.Now()}
	s.setupRoutes()
	return s
}

// ValidateWiring reports every required dependency left unset, so a wiring
// gap surfaces at startup rather than as a nil-pointer panic mid-request.
func (s *Server) ValidateWiring() error {
	var errs []error
	if s.bus == nil {
		errs = append(errs, fmt.Errorf("event bus not set"))
	}
	if s.orch == nil {
		errs = append(errs, fmt.Errorf("orchestrator not set"))
	}
	if s.terminals == nil {
		errs = append(errs, fmt.Errorf("terminal streamer not set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("ingress server wiring incomplete: %w", errors.Join(errs...))
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/", s.rootHandler)

	s.echo.POST("/webhook/github", s.githubWebhookHandler)
	s.echo.POST("/agents/trigger", s.triggerHandler)
	s.echo.POST("/webhook/results", s.resultsWebhookHandler)

	s.echo.GET("/pipeline/:id", s.pipelineHandler)
	s.echo.GET("/pipelines/active", s.activePipelinesHandler)

	s.echo.GET("/ws/:pipeline_id", s.eventWSHandler)
	s.echo.GET("/ws/all", s.eventAllWSHandler)
	s.echo.GET("/ws/terminal/:session_id", s.terminalWSHandler)
	s.echo.GET("/ws/terminal/all", s.terminalAllWSHandler)
}

// Start runs the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener runs the HTTP server on a pre-created listener, used by
// tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully drains in-flight requests and closes listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:          "healthy",
		Version:         version.Full(),
		UptimeSeconds:   time.Since(s.startedAt).Seconds(),
		ActivePipelines: len(s.orch.ActiveIDs()),
		EventBusSubs:    s.bus.Stats(),
	})
}

func (s *Server) rootHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"service": "revbot", "version": version.Full()})
}
