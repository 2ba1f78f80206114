package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/codewatch-ai/revbot/pkg/agent"
	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
)

// run drives p through pending → build → analyze → fix → test → complete,
// publishing the per-stage protocol and recovering from any agent panic
// into a failed transition.
func (o *Orchestrator) run(ctx context.Context, p *domain.Pipeline, cloneURL string) {
	defer o.finish(p)
	defer o.recoverPanic(p)

	p.Stage = domain.StageBuild
	build, diff, ok := o.runBuild(ctx, p, cloneURL)
	if !ok {
		p.Stage = domain.StageFailed
		return
	}
	p.Build = build
	p.ChangedFiles = diff.Files

	p.Stage = domain.StageAnalyze
	analysis, ok := o.runAnalyze(ctx, p, diff)
	if !ok {
		p.Stage = domain.StageFailed
		return
	}
	p.Analysis = analysis

	p.Stage = domain.StageFix
	p.Fix = o.runFix(ctx, p)

	p.Stage = domain.StageTest
	p.Test = o.runTest(ctx, p, diff)

	p.Stage = domain.StageComplete
}

func (o *Orchestrator) recoverPanic(p *domain.Pipeline) {
	if r := recover(); r != nil {
		p.Stage = domain.StageFailed
		p.Errors = append(p.Errors, fmt.Sprintf("panic: %v", r))
		o.bus.Publish(p.ID, events.New(events.EventTypeError, "").WithDetails(map[string]any{
			"error": fmt.Sprintf("%v", r),
		}))
	}
}

func (o *Orchestrator) finish(p *domain.Pipeline) {
	o.aggregateAndNotify(p)
	o.remove(p.ID)
}

func (o *Orchestrator) publishStageStart(p *domain.Pipeline, stage events.Stage, index int) {
	o.bus.Publish(p.ID, events.New(events.EventTypeStageStart, stage).WithDetails(map[string]any{
		"stage":       stage,
		"stage_index": index,
		"message":     fmt.Sprintf("starting %s", stage),
	}))
}

func (o *Orchestrator) publishStageComplete(p *domain.Pipeline, stage events.Stage, status string, duration float64, results map[string]any) {
	o.bus.Publish(p.ID, events.New(events.EventTypeStageComplete, stage).WithDetails(map[string]any{
		"stage":            stage,
		"status":           status,
		"duration_seconds": duration,
	}).WithResults(results))
}

func (o *Orchestrator) progressFor(p *domain.Pipeline, stage events.Stage) agent.ProgressFunc {
	return func(typ events.EventType, progress *int, details map[string]any) {
		o.bus.Publish(p.ID, events.New(typ, stage).WithProgressPtr(progress).WithDetails(details))
	}
}

func (o *Orchestrator) runBuild(ctx context.Context, p *domain.Pipeline, cloneURL string) (*domain.BuildResult, domain.PRDiff, bool) {
	o.publishStageStart(p, events.StageBuild, 0)
	start := time.Now()

	build, diff, err := o.builder.Build(ctx, agent.BuildInput{
		Repo:       p.Repo,
		HeadBranch: p.HeadBranch,
		PR:         p.PR,
		CloneURL:   cloneURL,
	}, o.progressFor(p, events.StageBuild))

	duration := time.Since(start).Seconds()
	if err != nil || build == nil || !build.Success {
		if err != nil {
			p.Errors = append(p.Errors, err.Error())
		}
		o.publishStageComplete(p, events.StageBuild, "failed", duration, buildProjection(build))
		return build, diff, false
	}

	o.publishStageComplete(p, events.StageBuild, "success", duration, buildProjection(build))
	return build, diff, true
}

func (o *Orchestrator) runAnalyze(ctx context.Context, p *domain.Pipeline, diff domain.PRDiff) (*domain.AnalysisResult, bool) {
	o.publishStageStart(p, events.StageAnalyze, 1)
	start := time.Now()

	analysis, err := o.analyzer.Analyze(ctx, agent.AnalyzeInput{Diff: diff, Build: p.Build}, o.progressFor(p, events.StageAnalyze))
	duration := time.Since(start).Seconds()
	if err != nil || analysis == nil || !analysis.Success {
		if err != nil {
			p.Errors = append(p.Errors, err.Error())
		}
		o.publishStageComplete(p, events.StageAnalyze, "failed", duration, analyzeProjection(analysis))
		return analysis, false
	}

	o.publishStageComplete(p, events.StageAnalyze, "success", duration, analyzeProjection(analysis))
	return analysis, true
}

func (o *Orchestrator) runFix(ctx context.Context, p *domain.Pipeline) *domain.FixStageResult {
	o.publishStageStart(p, events.StageFix, 2)
	start := time.Now()

	fix, err := o.fixer.Fix(ctx, agent.FixInput{Analysis: p.Analysis, Repo: p.Repo, HeadBranch: p.HeadBranch}, o.progressFor(p, events.StageFix))
	duration := time.Since(start).Seconds()
	if err != nil {
		p.Errors = append(p.Errors, err.Error())
	}

	status := "success"
	switch {
	case fix == nil || !fix.Success:
		status = "failed"
	case fix.FixesApplied == 0:
		status = "skipped"
	}
	o.publishStageComplete(p, events.StageFix, status, duration, fixProjection(fix))
	return fix
}

func (o *Orchestrator) runTest(ctx context.Context, p *domain.Pipeline, diff domain.PRDiff) *domain.TestStageResult {
	o.publishStageStart(p, events.StageTest, 3)
	start := time.Now()

	test, err := o.tester.Test(ctx, agent.TestInput{
		Diff:       diff,
		Build:      p.Build,
		Fix:        p.Fix,
		Repo:       p.Repo,
		HeadBranch: p.HeadBranch,
	}, o.progressFor(p, events.StageTest))
	duration := time.Since(start).Seconds()
	if err != nil {
		p.Errors = append(p.Errors, err.Error())
	}

	status := "success"
	if test == nil || !test.Success {
		status = "failed"
	}
	if test != nil && len(test.Functions) == 0 {
		status = "skipped"
	}
	o.publishStageComplete(p, events.StageTest, status, duration, testProjection(test))
	return test
}
