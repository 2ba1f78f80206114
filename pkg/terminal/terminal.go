// Package terminal implements the Terminal Streamer component: it spawns a
// shell command per session, captures stdout/stderr line-by-line via
// pkg/procexec, and publishes an ordered stream of terminal_* events on the
// event bus topic named after the session id.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codewatch-ai/revbot/pkg/events"
	"github.com/codewatch-ai/revbot/pkg/procexec"
)

// ErrSessionExists is returned by Start when a session id is already
// running.
var ErrSessionExists = errors.New("terminal: session already running")

// ErrSessionNotFound is returned by Terminate/Status for an unknown or
// already-finished session id.
var ErrSessionNotFound = errors.New("terminal: session not found")

// Status reports a session's current state.
type Status struct {
	SessionID       string     `json:"session_id"`
	Running         bool       `json:"running"`
	Command         string     `json:"command"`
	Cwd             string     `json:"cwd,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	ExitCode        *int       `json:"exit_code,omitempty"`
	SubscriberCount int        `json:"subscriber_count"`
}

type session struct {
	id      string
	command string
	cwd     string
	cancel  context.CancelFunc

	mu       sync.Mutex
	running  bool
	started  time.Time
	ended    *time.Time
	exitCode *int
}

// Streamer manages the set of live terminal sessions for one process.
type Streamer struct {
	bus     *events.Bus
	spawner *procexec.Spawner
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewStreamer constructs a Streamer backed by bus for event delivery.
func NewStreamer(bus *events.Bus) *Streamer {
	return &Streamer{
		bus:      bus,
		spawner:  procexec.New(),
		sessions: make(map[string]*session),
		logger:   slog.With("component", "terminal.Streamer"),
	}
}

// Start launches command under a shell in cwd (the empty string uses the
// process's own working directory) and begins streaming its output on the
// bus topic sessionID. It returns after registering the session and
// publishing terminal_start; the process itself is spawned in the
// background, so a process that cannot be spawned is reported by a
// terminal_end event with exit code -1, not by an error from Start. Output
// streaming continues in the background until the process exits or is
// terminated.
func (s *Streamer) Start(sessionID, command, cwd string) error {
	s.mu.Lock()
	if _, exists := s.sessions[sessionID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:      sessionID,
		command: command,
		cwd:     cwd,
		cancel:  cancel,
		running: true,
		started: time.Now(),
	}
	s.sessions[sessionID] = sess
	s.mu.Unlock()

	start := events.New(events.EventTypeTerminalStart, "")
	start.PipelineID = sessionID
	start.Details = map[string]any{"command": command, "cwd": cwd}
	s.bus.Publish(sessionID, start)

	go s.run(ctx, sess)
	return nil
}

func (s *Streamer) run(ctx context.Context, sess *session) {
	onLine := func(l procexec.Line) {
		ev := events.New(events.EventTypeTerminalOutput, "")
		ev.PipelineID = sess.id
		ev.Details = map[string]any{
			"stream": string(l.Stream),
			"line":   l.Text,
		}
		s.bus.Publish(sess.id, ev)
	}

	res := s.spawner.Run(ctx, sess.cwd, nil, onLine, "sh", "-c", sess.command)

	now := time.Now()
	sess.mu.Lock()
	sess.running = false
	sess.ended = &now
	code := res.ExitCode
	sess.exitCode = &code
	sess.mu.Unlock()

	end := events.New(events.EventTypeTerminalEnd, "")
	end.PipelineID = sess.id
	end.Details = map[string]any{
		"exit_code": res.ExitCode,
		"duration":  now.Sub(sess.startedAt()).Seconds(),
	}
	s.bus.Publish(sess.id, end)

	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
}

func (sess *session) startedAt() time.Time {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.started
}

// Terminate signals the running process for sessionID to stop. A
// terminal_terminating event is published immediately; terminal_end follows
// once the process actually exits.
func (s *Streamer) Terminate(sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	terminating := events.New(events.EventTypeTerminalTerminating, "")
	terminating.PipelineID = sessionID
	s.bus.Publish(sessionID, terminating)

	sess.cancel()
	return nil
}

// Status reports the current state of sessionID.
func (s *Streamer) Status(sessionID string) (Status, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return Status{
		SessionID:       sess.id,
		Running:         sess.running,
		Command:         sess.command,
		Cwd:             sess.cwd,
		StartedAt:       sess.started,
		EndedAt:         sess.ended,
		ExitCode:        sess.exitCode,
		SubscriberCount: s.bus.TopicCount(sess.id),
	}, nil
}

// ListSessions returns the ids of all currently running sessions.
func (s *Streamer) ListSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// OnLastSubscriberDisconnect auto-terminates sessionID once its subscriber
// count drops to zero, per the Terminal Streamer's auto-terminate
// invariant. Callers invoke this from the ingress layer's disconnect
// handler after the subscription is removed from the bus.
func (s *Streamer) OnLastSubscriberDisconnect(sessionID string) {
	if s.bus.TopicCount(sessionID) > 0 {
		return
	}
	if err := s.Terminate(sessionID); err != nil {
		s.logger.Debug("auto-terminate skipped", "session_id", sessionID, "err", err)
	}
}
