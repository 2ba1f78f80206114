package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
)

// aggregateAndNotify implements the terminal-transition protocol of spec
// §4.5: build the comprehensive results record, publish pipeline_complete
// then pipeline_results_complete, post the PR comment (best-effort), and
// deliver the record to the external webhook with a backup-file fallback.
func (o *Orchestrator) aggregateAndNotify(p *domain.Pipeline) {
	totalDuration := time.Since(p.StartTime).Seconds()
	status, successRate := pipelineStatus(p)
	summary := stageSummary(p)

	o.bus.Publish(p.ID, events.New(events.EventTypePipelineComplete, "").WithDetails(map[string]any{
		"status":         status,
		"total_duration": totalDuration,
		"summary":        summary,
	}))

	record := comprehensiveResults(p, status, successRate, totalDuration)

	o.bus.Publish(p.ID, events.New(events.EventTypePipelineResultsFinal, "").WithDetails(map[string]any{
		"comprehensive_results": record,
		"summary":               summary,
	}))

	ctx := context.Background()
	if err := o.adapter.PostComment(ctx, p.Repo, p.PR, renderComment(p, status, summary)); err != nil {
		o.bus.Publish(p.ID, events.New(events.EventTypeError, "").WithDetails(map[string]any{
			"warning": fmt.Sprintf("post_comment failed: %v", err),
		}))
	}

	o.notifier.deliver(ctx, p.ID, record)
}

// pipelineStatus computes pipeline_status and success_rate per spec §6:
// success iff every stage's raw success flag is true, failed iff none are,
// else partial. A stage that never produced a result (nil) counts as not
// successful, matching ResultsAggregator.aggregate_pipeline_results, which
// reads each stage's `success` key with a False default rather than
// special-casing a missing stage as passed. The Fix stage always runs (it
// decides internally whether there's anything to do), so in practice only
// a failed earlier stage leaves it nil.
func pipelineStatus(p *domain.Pipeline) (string, float64) {
	outcomes := []bool{
		p.Build != nil && p.Build.Success,
		p.Analysis != nil && p.Analysis.Success,
		p.Fix != nil && p.Fix.Success,
		p.Test != nil && p.Test.Success,
	}
	passed := 0
	for _, ok := range outcomes {
		if ok {
			passed++
		}
	}
	successRate := float64(passed) / float64(len(outcomes)) * 100

	switch {
	case passed == len(outcomes):
		return "success", successRate
	case passed == 0:
		return "failed", successRate
	default:
		return "partial", successRate
	}
}

func stageSummary(p *domain.Pipeline) map[string]any {
	return map[string]any{
		"build":    buildProjection(p.Build),
		"analysis": analyzeProjection(p.Analysis),
		"fix":      fixProjection(p.Fix),
		"test":     testProjection(p.Test),
	}
}

func comprehensiveResults(p *domain.Pipeline, status string, successRate, totalDuration float64) map[string]any {
	return map[string]any{
		"event_type": "pipeline_complete",
		"timestamp":  time.Now(),
		"version":    1,
		"results": map[string]any{
			"pipeline_id":      p.ID,
			"repository_name":  p.Repo,
			"branch_name":      p.HeadBranch,
			"pr_number":        p.PR,
			"pipeline_status":  status,
			"start_timestamp":  p.StartTime,
			"end_timestamp":    time.Now(),
			"total_duration":   totalDuration,
			"trigger_info":     p.Trigger,
			"build_results":    buildProjection(p.Build),
			"analysis_results": analyzeProjection(p.Analysis),
			"fix_results":      fixProjection(p.Fix),
			"test_results":     testProjection(p.Test),
			"success_rate":     successRate,
			"errors":           p.Errors,
		},
	}
}

func renderComment(p *domain.Pipeline, status string, summary map[string]any) string {
	emoji := statusEmoji(status)
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s revbot review: %s\n\n", emoji, status)
	fmt.Fprintf(&sb, "| Stage | Status |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Build | %v |\n", statusOf(p.Build))
	fmt.Fprintf(&sb, "| Analyze | %v issue(s) |\n", issueCount(p.Analysis))
	fmt.Fprintf(&sb, "| Fix | %v applied |\n", fixCount(p.Fix))
	fmt.Fprintf(&sb, "| Test | %v/%v passed |\n", passedCount(p.Test), totalCount(p.Test))
	if len(p.Errors) > 0 {
		sb.WriteString("\n**Errors:**\n")
		for _, e := range truncated(p.Errors, 10) {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}
	return sb.String()
}

func statusEmoji(status string) string {
	switch status {
	case "success":
		return "✅"
	case "partial":
		return "⚠️"
	default:
		return "❌"
	}
}

func statusOf(b *domain.BuildResult) string {
	if b == nil {
		return "not run"
	}
	if b.Success {
		return "ok"
	}
	return "failed"
}

func issueCount(a *domain.AnalysisResult) int {
	if a == nil {
		return 0
	}
	return a.TotalIssues
}

func fixCount(f *domain.FixStageResult) int {
	if f == nil {
		return 0
	}
	return f.FixesApplied
}

func passedCount(t *domain.TestStageResult) int {
	if t == nil {
		return 0
	}
	return t.Passed
}

func totalCount(t *domain.TestStageResult) int {
	if t == nil {
		return 0
	}
	return t.Passed + t.Failed + t.Errored + t.Skipped
}

func truncated(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
