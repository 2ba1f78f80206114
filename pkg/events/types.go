// Package events implements the in-process publish/subscribe event fabric
// that fans out pipeline and terminal-session progress to any number of
// subscribers (spec §4.1). There is no database-backed persistence or
// cross-pod NOTIFY/LISTEN here: delivery is process-local only, per the
// system's Non-goals.
package events

import "time"

// EventType enumerates every event discriminator the bus carries (spec §3).
type EventType string

const (
	EventTypePipelineStart        EventType = "pipeline_start"
	EventTypeStageStart           EventType = "stage_start"
	EventTypeStatusUpdate         EventType = "status_update"
	EventTypeStageComplete        EventType = "stage_complete"
	EventTypePipelineComplete     EventType = "pipeline_complete"
	EventTypePipelineResultsFinal EventType = "pipeline_results_complete"
	EventTypeError                EventType = "error"
	EventTypeFunctionsDiscovered  EventType = "functions_discovered"
	EventTypeTestStart            EventType = "test_start"
	EventTypeTestGenerationStart  EventType = "test_generation_start"
	EventTypeTestGenerated        EventType = "test_generated"
	EventTypeTestGenerationFailed EventType = "test_generation_failed"
	EventTypeTestExecutionResult  EventType = "test_execution_result"
	EventTypeTerminalConnected    EventType = "terminal_connected"
	EventTypeTerminalStart        EventType = "terminal_start"
	EventTypeTerminalOutput       EventType = "terminal_output"
	EventTypeTerminalEnd          EventType = "terminal_end"
	EventTypeTerminalTerminating  EventType = "terminal_terminating"
	EventTypeAck                  EventType = "ack"
	EventTypePong                 EventType = "pong"
)

// Stage names used in stage_start/stage_complete events.
type Stage string

const (
	StageBuild   Stage = "build"
	StageAnalyze Stage = "analyze"
	StageFix     Stage = "fix"
	StageTest    Stage = "test"
)

// AllPipelinesTopic is the sentinel cross-cutting topic that receives a copy
// of every event published on any pipeline-id topic, with PipelineID
// injected (spec §4.1, "all pipelines" topic).
const AllPipelinesTopic = "all_pipelines"

// AllTerminalsTopic is the analogous sentinel for terminal session output.
const AllTerminalsTopic = "all_terminals"

// Event is the tagged record published and delivered by the Bus. All fields
// are exported for direct JSON marshaling to WebSocket clients.
type Event struct {
	Type       EventType      `json:"type"`
	PipelineID string         `json:"pipeline_id,omitempty"`
	Stage      Stage          `json:"stage,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Progress   *int           `json:"progress,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Results    map[string]any `json:"results,omitempty"`
}

// WithProgress returns a copy of the event carrying the given progress value.
func (e Event) WithProgress(p int) Event {
	e.Progress = &p
	return e
}

// WithProgressPtr returns a copy of the event carrying p verbatim, including
// a nil value for a sub-step tick with no percentage.
func (e Event) WithProgressPtr(p *int) Event {
	e.Progress = p
	return e
}

// WithDetails returns a copy of the event carrying the given details map.
func (e Event) WithDetails(d map[string]any) Event {
	e.Details = d
	return e
}

// WithResults returns a copy of the event carrying the given results
// projection (used by stage_complete).
func (e Event) WithResults(r map[string]any) Event {
	e.Results = r
	return e
}

// New builds an Event stamped with the current time.
func New(typ EventType, stage Stage) Event {
	return Event{Type: typ, Stage: stage, Timestamp: time.Now()}
}

// ClientMessage is the JSON structure for client → server WebSocket messages
// on the event-subscription and terminal endpoints (spec §6).
type ClientMessage struct {
	Action      string `json:"action,omitempty"`       // subscribe/unsubscribe/ping, or terminal actions
	Command     string `json:"command,omitempty"`      // command for start_session
	Cwd         string `json:"cwd,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	LastEventID *int   `json:"last_event_id,omitempty"`
}
