package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewatch-ai/revbot/pkg/agent"
	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
	"github.com/codewatch-ai/revbot/pkg/sourcehost"
)

type fakeBuilder struct {
	result *domain.BuildResult
	diff   domain.PRDiff
	err    error
}

func (f *fakeBuilder) Build(ctx context.Context, in agent.BuildInput, progress agent.ProgressFunc) (*domain.BuildResult, domain.PRDiff, error) {
	return f.result, f.diff, f.err
}

type fakeAnalyzer struct {
	result *domain.AnalysisResult
	err    error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, in agent.AnalyzeInput, progress agent.ProgressFunc) (*domain.AnalysisResult, error) {
	return f.result, f.err
}

type fakeFixer struct {
	result *domain.FixStageResult
	calls  int
}

func (f *fakeFixer) Fix(ctx context.Context, in agent.FixInput, progress agent.ProgressFunc) (*domain.FixStageResult, error) {
	f.calls++
	return f.result, nil
}

type fakeTester struct {
	result *domain.TestStageResult
}

func (f *fakeTester) Test(ctx context.Context, in agent.TestInput, progress agent.ProgressFunc) (*domain.TestStageResult, error) {
	return f.result, nil
}

type fakeAdapter struct {
	sourcehost.Adapter
	commits      []domain.Commit
	commentCalls int
}

func (f *fakeAdapter) RecentCommits(ctx context.Context, repo, ref string, limit int) ([]domain.Commit, error) {
	return f.commits, nil
}

func (f *fakeAdapter) PostComment(ctx context.Context, repo string, pr int, markdown string) error {
	f.commentCalls++
	return nil
}

func waitForEvent(t *testing.T, sub *events.Subscription, typ events.EventType, timeout time.Duration) events.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-sub.Events():
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s", typ)
		}
	}
}

func waitForEventWithStage(t *testing.T, sub *events.Subscription, typ events.EventType, stage events.Stage, timeout time.Duration) events.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-sub.Events():
			if ev.Type == typ && ev.Stage == stage {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s/%s", typ, stage)
		}
	}
}

func TestOrchestrator_ShouldSuppress_DetectsMarker(t *testing.T) {
	adapter := &fakeAdapter{commits: []domain.Commit{{Message: "🤖 AI Fix: bound check [skip-pipeline]"}}}
	o := New(Options{Adapter: adapter, RecursionMarkers: []string{"[skip-pipeline]"}})

	suppressed, err := o.ShouldSuppress(context.Background(), "o/r", "abc")
	require.NoError(t, err)
	assert.True(t, suppressed)
}

func TestOrchestrator_ShouldSuppress_AllowsOrdinaryCommit(t *testing.T) {
	adapter := &fakeAdapter{commits: []domain.Commit{{Message: "fix typo"}}}
	o := New(Options{Adapter: adapter, RecursionMarkers: []string{"[skip-pipeline]"}})

	suppressed, err := o.ShouldSuppress(context.Background(), "o/r", "abc")
	require.NoError(t, err)
	assert.False(t, suppressed)
}

func TestOrchestrator_Start_ZeroIssuesStillRunsFixAndReportsSkipped(t *testing.T) {
	bus := events.NewBus(events.AllPipelinesTopic)
	adapter := &fakeAdapter{}
	fixer := &fakeFixer{result: &domain.FixStageResult{Success: true, FixesApplied: 0}}

	o := New(Options{
		Bus:      bus,
		Adapter:  adapter,
		Builder:  &fakeBuilder{result: &domain.BuildResult{Success: true, ProjectKind: domain.ProjectPython}},
		Analyzer: &fakeAnalyzer{result: &domain.AnalysisResult{Success: true, TotalIssues: 0}},
		Fixer:    fixer,
		Tester:   &fakeTester{result: &domain.TestStageResult{Success: true}},
	})

	// Subscribe before Start: the run goroutine may publish before Start's
	// caller could subscribe to the pipeline's own topic.
	sub := bus.Subscribe(events.AllPipelinesTopic)
	defer sub.Close()
	p := o.Start(context.Background(), "o/r", 7, "feature", "https://example.com/o/r.git", domain.Trigger{Source: "webhook"})

	fixComplete := waitForEventWithStage(t, sub, events.EventTypeStageComplete, events.StageFix, 2*time.Second)
	assert.Equal(t, "skipped", fixComplete.Details["status"])

	complete := waitForEvent(t, sub, events.EventTypePipelineComplete, 2*time.Second)
	assert.Equal(t, "success", complete.Details["status"])

	// The PR comment and removal from the active set follow pipeline_complete.
	assert.Eventually(t, func() bool {
		_, ok := o.Snapshot(p.ID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "pipeline should be removed from the active set after completion")
	assert.Equal(t, 1, adapter.commentCalls)
	assert.Equal(t, 1, fixer.calls, "Fix agent runs unconditionally; it decides internally whether there is anything to do")
}

func TestOrchestrator_Start_BuildFailureSkipsRemainingStages(t *testing.T) {
	bus := events.NewBus(events.AllPipelinesTopic)
	adapter := &fakeAdapter{}

	o := New(Options{
		Bus:      bus,
		Adapter:  adapter,
		Builder:  &fakeBuilder{result: &domain.BuildResult{Success: false, Errors: []string{"clone failed"}}},
		Analyzer: &fakeAnalyzer{},
		Fixer:    &fakeFixer{},
		Tester:   &fakeTester{},
	})

	sub := bus.Subscribe(events.AllPipelinesTopic)
	defer sub.Close()
	o.Start(context.Background(), "o/r", 7, "feature", "https://example.com/o/r.git", domain.Trigger{})

	complete := waitForEvent(t, sub, events.EventTypePipelineComplete, 2*time.Second)
	assert.Equal(t, "failed", complete.Details["status"])
}

func TestPipelineStatus_PartialWhenSomeStagesFail(t *testing.T) {
	p := &domain.Pipeline{
		Build:    &domain.BuildResult{Success: true},
		Analysis: &domain.AnalysisResult{Success: false},
		Fix:      &domain.FixStageResult{Success: true},
		Test:     &domain.TestStageResult{Success: true},
	}
	status, rate := pipelineStatus(p)
	assert.Equal(t, "partial", status)
	assert.Equal(t, float64(75), rate)
}

func TestPipelineStatus_SuccessWhenEveryStageSucceeds(t *testing.T) {
	p := &domain.Pipeline{
		Build:    &domain.BuildResult{Success: true},
		Analysis: &domain.AnalysisResult{Success: true},
		Fix:      &domain.FixStageResult{Success: true},
		Test:     &domain.TestStageResult{Success: true},
	}
	status, rate := pipelineStatus(p)
	assert.Equal(t, "success", status)
	assert.Equal(t, float64(100), rate)
}

func TestPipelineStatus_NilStageCountsAsNotSuccessful(t *testing.T) {
	// Matches ResultsAggregator.aggregate_pipeline_results: a stage with no
	// recorded result (here Fix and Test) contributes false, not a free
	// pass.
	p := &domain.Pipeline{
		Build:    &domain.BuildResult{Success: true},
		Analysis: &domain.AnalysisResult{Success: true},
	}
	status, rate := pipelineStatus(p)
	assert.Equal(t, "partial", status)
	assert.Equal(t, float64(50), rate)
}
