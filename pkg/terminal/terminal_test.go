package terminal

import (
	"testing"
	"time"

	"github.com/codewatch-ai/revbot/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, sub *events.Subscription, want events.EventType, timeout time.Duration) events.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-sub.Events():
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event type %s", want)
		}
	}
}

func TestStreamer_StartEmitsStartThenEnd(t *testing.T) {
	bus := events.NewBus(events.AllTerminalsTopic)
	streamer := NewStreamer(bus)
	sub := bus.Subscribe("sess-1")
	defer sub.Close()

	require.NoError(t, streamer.Start("sess-1", "echo hello", ""))

	startEv := drain(t, sub, events.EventTypeTerminalStart, 2*time.Second)
	assert.Equal(t, "sess-1", startEv.PipelineID)

	outputEv := drain(t, sub, events.EventTypeTerminalOutput, 2*time.Second)
	assert.Equal(t, "hello", outputEv.Details["line"])

	endEv := drain(t, sub, events.EventTypeTerminalEnd, 2*time.Second)
	assert.Equal(t, 0, endEv.Details["exit_code"])
}

func TestStreamer_StartTwiceRejected(t *testing.T) {
	bus := events.NewBus("")
	streamer := NewStreamer(bus)
	sub := bus.Subscribe("sess-2")
	defer sub.Close()

	require.NoError(t, streamer.Start("sess-2", "sleep 2", ""))
	err := streamer.Start("sess-2", "sleep 2", "")
	assert.ErrorIs(t, err, ErrSessionExists)

	_ = streamer.Terminate("sess-2")
}

func TestStreamer_TerminateEmitsTerminatingAndEnd(t *testing.T) {
	bus := events.NewBus("")
	streamer := NewStreamer(bus)
	sub := bus.Subscribe("sess-3")
	defer sub.Close()

	require.NoError(t, streamer.Start("sess-3", "sleep 5", ""))
	drain(t, sub, events.EventTypeTerminalStart, 2*time.Second)

	require.NoError(t, streamer.Terminate("sess-3"))
	drain(t, sub, events.EventTypeTerminalTerminating, 2*time.Second)
	drain(t, sub, events.EventTypeTerminalEnd, 2*time.Second)
}

func TestStreamer_StatusUnknownSession(t *testing.T) {
	bus := events.NewBus("")
	streamer := NewStreamer(bus)

	_, err := streamer.Status("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
