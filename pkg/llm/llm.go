// Package llm wraps the external model collaborators the four agents
// consult: an Anthropic-backed client for classification, fix proposals,
// and function questioning, and an OpenAI-compatible client (typically
// pointed at a local LM-Studio-style server) for test-code generation. The
// orchestrator never imports this package directly — only the agent
// implementations in pkg/agent and pkg/testagent do.
package llm

import (
	"context"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

// Classifier turns a code window plus build context into the three
// disjoint issue lists the Analyze agent reports.
type Classifier interface {
	Classify(ctx context.Context, window CodeWindow, build *domain.BuildResult) (ClassificationResult, error)
}

// CodeWindow is the unit of code the Analyze agent submits for
// classification: trailing context lines followed by added lines, tagged
// to their file.
type CodeWindow struct {
	Filename string
	Lines    []domain.DiffLine
}

// ClassificationResult is one file's classified issues.
type ClassificationResult struct {
	Vulnerabilities []domain.Issue
	SecurityIssues  []domain.Issue
	QualityIssues   []domain.Issue
}

// FixProposer drafts a minimal-change fix for a single issue.
type FixProposer interface {
	ProposeFix(ctx context.Context, issue domain.Issue, currentContent string) (domain.FixProposal, error)
}

// FunctionQuestioner drafts the natural-language spec and reasoning for why
// a changed function warrants a test.
type FunctionQuestioner interface {
	AskFunctions(ctx context.Context, functions []domain.ChangedFunction) ([]domain.FunctionQuestion, error)
}

// TestGenerator writes a test body satisfying a FunctionQuestion's spec.
type TestGenerator interface {
	GenerateTest(ctx context.Context, question domain.FunctionQuestion) (domain.GeneratedTest, error)
}
