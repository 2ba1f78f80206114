package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishFanOutAndAllTopic(t *testing.T) {
	bus := NewBus(AllPipelinesTopic)

	direct := bus.Subscribe("pipeline-1")
	defer direct.Close()
	all := bus.Subscribe(AllPipelinesTopic)
	defer all.Close()

	ev := New(EventTypeStageStart, StageBuild)
	ev.PipelineID = "pipeline-1"
	bus.Publish("pipeline-1", ev)

	select {
	case got := <-direct.Events():
		assert.Equal(t, EventTypeStageStart, got.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for direct-topic delivery")
	}

	select {
	case got := <-all.Events():
		assert.Equal(t, "pipeline-1", got.PipelineID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for all-topic mirror")
	}
}

func TestBus_UnrelatedTopicDoesNotReceive(t *testing.T) {
	bus := NewBus(AllPipelinesTopic)
	other := bus.Subscribe("pipeline-2")
	defer other.Close()

	bus.Publish("pipeline-1", New(EventTypeStageStart, StageBuild))

	select {
	case ev := <-other.Events():
		t.Fatalf("unexpected delivery to unrelated topic: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_SlowSubscriberIsEvicted(t *testing.T) {
	bus := NewBus("")
	sub := bus.Subscribe("pipeline-1")

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish("pipeline-1", New(EventTypeStatusUpdate, StageBuild))
	}

	require.Equal(t, 0, bus.TopicCount("pipeline-1"))

	// Closing the channel keeps the events already buffered readable.
	for i := 0; i < subscriberBuffer; i++ {
		<-sub.Events()
	}
	_, open := <-sub.Events()
	assert.False(t, open, "evicted subscriber's channel should be closed")
}

func TestBus_FIFOOrderingPerTopic(t *testing.T) {
	bus := NewBus("")
	sub := bus.Subscribe("pipeline-1")
	defer sub.Close()

	for i := 0; i < 20; i++ {
		ev := New(EventTypeStatusUpdate, StageAnalyze).WithProgress(i)
		bus.Publish("pipeline-1", ev)
	}

	for i := 0; i < 20; i++ {
		select {
		case got := <-sub.Events():
			require.NotNil(t, got.Progress)
			assert.Equal(t, i, *got.Progress)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus("")
	sub := bus.Subscribe("pipeline-1")

	sub.Close()
	assert.NotPanics(t, func() { sub.Close() })
	assert.NotPanics(t, func() { bus.Unsubscribe(sub) })

	assert.Equal(t, 0, bus.TopicCount("pipeline-1"))
}

func TestBus_StatsReportsPerTopicSubscriberCounts(t *testing.T) {
	bus := NewBus(AllPipelinesTopic)
	a := bus.Subscribe("pipeline-1")
	defer a.Close()
	b := bus.Subscribe("pipeline-1")
	defer b.Close()
	c := bus.Subscribe(AllPipelinesTopic)
	defer c.Close()

	stats := bus.Stats()
	assert.Equal(t, 2, stats["pipeline-1"])
	assert.Equal(t, 1, stats[AllPipelinesTopic])
}
