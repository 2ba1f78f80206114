// Package agent defines the four narrow contracts the orchestrator depends
// on: Build, Analyze, Fix, Test. Concrete agent bodies — what they ask an
// LLM, which prompts they use — live in pkg/llm and pkg/testagent; the
// orchestrator only ever sees these interfaces.
package agent

import (
	"context"

	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
)

// ProgressFunc is how an agent reports progress back to the orchestrator
// for publication on the pipeline's event topic. typ selects which event
// kind to publish (status_update for a plain progress tick, or one of the
// Test Agent's richer event types); progress is nil for a sub-step tick
// with no percentage.
type ProgressFunc func(typ events.EventType, progress *int, details map[string]any)

// noopProgress is used by agent constructors when the orchestrator passes
// a nil callback, e.g. in tests.
func noopProgress(events.EventType, *int, map[string]any) {}

// BuildInput is what the orchestrator hands to the Build agent.
type BuildInput struct {
	Repo       string
	HeadBranch string
	PR         int
	CloneURL   string
}

// Builder wraps the Workspace Manager into the agent contract; it also
// injects the parsed PR diff into the context it returns.
type Builder interface {
	Build(ctx context.Context, in BuildInput, progress ProgressFunc) (*domain.BuildResult, domain.PRDiff, error)
}

// AnalyzeInput is what the orchestrator hands to the Analyze agent.
type AnalyzeInput struct {
	Diff  domain.PRDiff
	Build *domain.BuildResult
}

// Analyzer classifies changed code into vulnerabilities/security/quality
// issues.
type Analyzer interface {
	Analyze(ctx context.Context, in AnalyzeInput, progress ProgressFunc) (*domain.AnalysisResult, error)
}

// FixInput is what the orchestrator hands to the Fix agent.
type FixInput struct {
	Analysis   *domain.AnalysisResult
	Repo       string
	HeadBranch string
}

// Fixer applies minimal-change fixes for issues with a real filename.
type Fixer interface {
	Fix(ctx context.Context, in FixInput, progress ProgressFunc) (*domain.FixStageResult, error)
}

// TestInput is what the orchestrator hands to the Test agent. Fix is the
// preceding stage's result: the Test agent reads file content fresh from
// the source host (at HeadBranch, which may carry the Fix agent's commits)
// rather than from the Build stage's workspace snapshot.
type TestInput struct {
	Diff       domain.PRDiff
	Build      *domain.BuildResult
	Fix        *domain.FixStageResult
	Repo       string
	HeadBranch string
}

// Tester runs the three-phase function-discovery → test-generation →
// test-execution chain.
type Tester interface {
	Test(ctx context.Context, in TestInput, progress ProgressFunc) (*domain.TestStageResult, error)
}
