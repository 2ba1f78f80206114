package pipeline

import "github.com/codewatch-ai/revbot/pkg/domain"

// The *Projection helpers build the compact, stage-specific result
// projections published on stage_complete — never the full diff or file
// contents, per spec §4.5.

func buildProjection(b *domain.BuildResult) map[string]any {
	if b == nil {
		return map[string]any{"success": false}
	}
	return map[string]any{
		"success":      b.Success,
		"project_kind": b.ProjectKind,
		"total_files":  b.TotalFiles,
		"errors":       b.Errors,
		"warnings":     b.Warnings,
	}
}

func analyzeProjection(a *domain.AnalysisResult) map[string]any {
	if a == nil {
		return map[string]any{"success": false}
	}
	return map[string]any{
		"success":      a.Success,
		"file_count":   a.FileCount,
		"total_issues": a.TotalIssues,
		"overall_risk": a.OverallRisk,
	}
}

func fixProjection(f *domain.FixStageResult) map[string]any {
	if f == nil {
		return map[string]any{"success": false, "status": "skipped"}
	}
	return map[string]any{
		"success":        f.Success,
		"fixes_applied":  f.FixesApplied,
		"files_modified": f.FilesModified,
		"commits_made":   f.CommitsMade,
	}
}

func testProjection(t *domain.TestStageResult) map[string]any {
	if t == nil {
		return map[string]any{"success": false}
	}
	return map[string]any{
		"success":              t.Success,
		"functions_discovered": len(t.Functions),
		"tests_generated":      len(t.GeneratedTests),
		"passed":               t.Passed,
		"failed":               t.Failed,
		"errored":              t.Errored,
		"skipped":              t.Skipped,
	}
}
