package agent

import (
	"context"
	"fmt"

	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
	"github.com/codewatch-ai/revbot/pkg/llm"
)

var analyzableExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".java": true, ".cpp": true, ".c": true,
}

// LLMAnalyzer is the Analyze agent: it filters the diff to supported code
// files, builds a trailing-context + added-lines window per file, and
// submits each window to an LLM collaborator for classification.
type LLMAnalyzer struct {
	classifier llm.Classifier
}

// NewLLMAnalyzer constructs an Analyzer backed by classifier.
func NewLLMAnalyzer(classifier llm.Classifier) *LLMAnalyzer {
	return &LLMAnalyzer{classifier: classifier}
}

// Analyze implements Analyzer.
func (a *LLMAnalyzer) Analyze(ctx context.Context, in AnalyzeInput, progress ProgressFunc) (*domain.AnalysisResult, error) {
	if progress == nil {
		progress = noopProgress
	}

	result := &domain.AnalysisResult{Success: true}
	candidates := filterAnalyzableFiles(in.Diff.Files)
	result.FileCount = len(candidates)

	for i, cf := range candidates {
		window := buildCodeWindow(cf)
		classified, err := a.classifier.Classify(ctx, window, in.Build)
		if err != nil {
			result.Success = false
			progress(events.EventTypeError, nil, map[string]any{"error": err.Error(), "filename": cf.Filename})
			continue
		}

		result.Vulnerabilities = append(result.Vulnerabilities, requireFilename(classified.Vulnerabilities, cf.Filename)...)
		result.SecurityIssues = append(result.SecurityIssues, requireFilename(classified.SecurityIssues, cf.Filename)...)
		result.QualityIssues = append(result.QualityIssues, requireFilename(classified.QualityIssues, cf.Filename)...)

		pct := (i + 1) * 100 / max(len(candidates), 1)
		progress(events.EventTypeStatusUpdate, &pct, map[string]any{"filename": cf.Filename})
	}

	result.TotalIssues = len(result.Vulnerabilities) + len(result.SecurityIssues) + len(result.QualityIssues)
	result.OverallRisk = overallRisk(result)
	result.Recommendations = buildRecommendations(result)
	return result, nil
}

func filterAnalyzableFiles(files []domain.ChangedFile) []domain.ChangedFile {
	var out []domain.ChangedFile
	for _, f := range files {
		if f.Status != domain.FileAdded && f.Status != domain.FileModified {
			continue
		}
		if !analyzableExtensions[extOf(f.Filename)] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func extOf(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[i:]
		}
		if filename[i] == '/' {
			break
		}
	}
	return ""
}

// buildCodeWindow assembles trailing context lines followed by added
// lines, per the Analyze agent's contract.
func buildCodeWindow(cf domain.ChangedFile) llm.CodeWindow {
	lines := make([]domain.DiffLine, 0, len(cf.ContextLines)+len(cf.AddedLines))
	lines = append(lines, cf.ContextLines...)
	lines = append(lines, cf.AddedLines...)
	return llm.CodeWindow{Filename: cf.Filename, Lines: lines}
}

// requireFilename enforces the mandated per-issue filename tagging: every
// returned issue must carry a non-empty filename matching an input file.
func requireFilename(issues []domain.Issue, filename string) []domain.Issue {
	out := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.Filename == "" {
			issue.Filename = filename
		}
		out = append(out, issue)
	}
	return out
}

func overallRisk(result *domain.AnalysisResult) domain.Severity {
	highCount, mediumCount := 0, 0
	for _, issue := range allIssues(result) {
		switch issue.Severity {
		case domain.SeverityHigh:
			highCount++
		case domain.SeverityMedium:
			mediumCount++
		}
	}
	switch {
	case highCount > 0:
		return domain.SeverityHigh
	case mediumCount > 0:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func allIssues(result *domain.AnalysisResult) []domain.Issue {
	issues := make([]domain.Issue, 0, result.TotalIssues)
	issues = append(issues, result.Vulnerabilities...)
	issues = append(issues, result.SecurityIssues...)
	issues = append(issues, result.QualityIssues...)
	return issues
}

func buildRecommendations(result *domain.AnalysisResult) []string {
	if result.TotalIssues == 0 {
		return []string{"No issues detected in the changed files."}
	}
	return []string{fmt.Sprintf("Review %d flagged issue(s) before merging; overall risk is %s.", result.TotalIssues, result.OverallRisk)}
}
