// Package testagent implements the Test agent (C6): discover functions
// touched by a PR's changed lines, ask an LLM collaborator to spec a test
// for each, generate the test body with a local code model, and execute
// the results with pytest. The three phases are strictly sequential and
// each publishes its own well-formed event sequence; phase 2 never runs
// ahead of phase 1, and phase 3 never runs ahead of phase 2.
package testagent

import (
	"context"
	"log/slog"
	"time"

	"github.com/codewatch-ai/revbot/pkg/agent"
	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
	"github.com/codewatch-ai/revbot/pkg/llm"
	"github.com/codewatch-ai/revbot/pkg/procexec"
	"github.com/codewatch-ai/revbot/pkg/sourcehost"
)

// pytestTimeout bounds a single generated test file's execution.
const pytestTimeout = 30 * time.Second

// Tester is the Test agent. It implements agent.Tester.
type Tester struct {
	adapter    sourcehost.Adapter
	questioner llm.FunctionQuestioner
	generator  llm.TestGenerator
	spawner    *procexec.Spawner
	logger     *slog.Logger
}

// NewTester constructs a Tester backed by adapter (for reading current file
// content), questioner (phase 1's batched function-questioning collaborator),
// generator (phase 2's code-generation collaborator), and spawner (phase 3's
// pytest runner).
func NewTester(adapter sourcehost.Adapter, questioner llm.FunctionQuestioner, generator llm.TestGenerator, spawner *procexec.Spawner) *Tester {
	return &Tester{
		adapter:    adapter,
		questioner: questioner,
		generator:  generator,
		spawner:    spawner,
		logger:     slog.Default(),
	}
}

var _ agent.Tester = (*Tester)(nil)

// Test implements agent.Tester, running phases 1 through 3 in order.
func (t *Tester) Test(ctx context.Context, in agent.TestInput, progress agent.ProgressFunc) (*domain.TestStageResult, error) {
	if progress == nil {
		progress = func(events.EventType, *int, map[string]any) {}
	}
	start := time.Now()
	result := &domain.TestStageResult{Success: true}

	questions, functions, err := t.phase1(ctx, in, progress)
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		result.Duration = time.Since(start).Seconds()
		return result, nil
	}
	result.Functions = functions

	if len(functions) == 0 {
		// The orchestrator publishes stage_complete{status: skipped} once it
		// observes zero discovered functions; phase 1 itself emits no
		// terminal event here.
		result.Duration = time.Since(start).Seconds()
		return result, nil
	}
	result.Questions = questions

	generated := t.phase2(ctx, questions, progress)
	result.GeneratedTests = generated

	methodResults, summary := t.phase3(ctx, generated, progress)
	result.Results = methodResults
	result.Passed = summary.passed
	result.Failed = summary.failed
	result.Errored = summary.errored
	result.Skipped = summary.skipped

	result.Success = result.Errored == 0
	result.Duration = time.Since(start).Seconds()
	return result, nil
}

type executionSummary struct {
	passed, failed, errored, skipped int
}
