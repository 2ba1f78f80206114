package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
	"github.com/codewatch-ai/revbot/pkg/llm"
	"github.com/codewatch-ai/revbot/pkg/sourcehost"
)

// fuzzyMatchThreshold is the minimum line-content similarity accepted by
// the fallback fuzzy match when an exact substring match fails.
const fuzzyMatchThreshold = 0.8

// LLMFixer is the Fix agent: for every issue with a real filename it reads
// the current blob, asks an LLM collaborator for a minimal-change fix
// proposal, applies it, and commits via the source-host adapter using
// optimistic concurrency.
type LLMFixer struct {
	proposer llm.FixProposer
	adapter  sourcehost.Adapter
}

// NewLLMFixer constructs a Fixer backed by proposer and adapter.
func NewLLMFixer(proposer llm.FixProposer, adapter sourcehost.Adapter) *LLMFixer {
	return &LLMFixer{proposer: proposer, adapter: adapter}
}

// Fix implements Fixer.
func (f *LLMFixer) Fix(ctx context.Context, in FixInput, progress ProgressFunc) (*domain.FixStageResult, error) {
	if progress == nil {
		progress = noopProgress
	}
	start := time.Now()
	result := &domain.FixStageResult{Success: true}

	issues := issuesWithFilename(in.Analysis)
	modifiedFiles := make(map[string]struct{})

	for i, issue := range issues {
		if err := f.applyOne(ctx, in.Repo, in.HeadBranch, issue, result, modifiedFiles); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		pct := (i + 1) * 100 / len(issues)
		progress(events.EventTypeStatusUpdate, &pct, map[string]any{"filename": issue.Filename})
	}

	result.FilesModified = len(modifiedFiles)
	result.Success = len(result.Errors) == 0
	result.Duration = time.Since(start).Seconds()
	return result, nil
}

func issuesWithFilename(analysis *domain.AnalysisResult) []domain.Issue {
	if analysis == nil {
		return nil
	}
	var out []domain.Issue
	for _, issue := range allIssues(analysis) {
		if issue.Filename != "" {
			out = append(out, issue)
		}
	}
	return out
}

func (f *LLMFixer) applyOne(ctx context.Context, repo, branch string, issue domain.Issue, result *domain.FixStageResult, modifiedFiles map[string]struct{}) error {
	blob, err := f.adapter.ReadFile(ctx, repo, issue.Filename, branch)
	if err != nil {
		return fmt.Errorf("fix: read %s: %w", issue.Filename, err)
	}

	proposal, err := f.proposer.ProposeFix(ctx, issue, string(blob.Content))
	if err != nil {
		return fmt.Errorf("fix: propose fix for %s: %w", issue.Filename, err)
	}

	if proposal.OldCode == proposal.NewCode {
		return fmt.Errorf("fix: proposal for %s is a no-op (old_code equals new_code), skipping commit", issue.Filename)
	}

	newContent, applied := applyProposal(string(blob.Content), proposal)
	if !applied {
		return fmt.Errorf("fix: could not locate fix target in %s", issue.Filename)
	}

	commitMessage := fmt.Sprintf("🤖 AI Fix: %s [skip-pipeline]", proposal.FixSummary)
	write, err := f.adapter.WriteFile(ctx, repo, issue.Filename, []byte(newContent), commitMessage, branch, blob.BlobID)
	if err != nil {
		return fmt.Errorf("fix: write %s: %w", issue.Filename, err)
	}

	modifiedFiles[issue.Filename] = struct{}{}
	result.CommitsMade++
	result.FixesApplied++
	result.Fixes = append(result.Fixes, domain.FixRecord{
		Filename:     issue.Filename,
		FunctionName: proposal.FunctionName,
		IssueType:    proposal.IssueType,
		FixSummary:   proposal.FixSummary,
		Confidence:   proposal.Confidence,
		StartLine:    proposal.StartLine,
		EndLine:      proposal.EndLine,
		OldCode:      proposal.OldCode,
		NewCode:      proposal.NewCode,
		CommitID:     write.CommitID,
	})
	return nil
}

// applyProposal tries an exact-substring replacement of OldCode with
// NewCode first, then falls back to a line-level fuzzy match requiring
// ≥80% line-content similarity against some contiguous block of the file.
func applyProposal(content string, proposal domain.FixProposal) (string, bool) {
	if proposal.OldCode != "" && strings.Contains(content, proposal.OldCode) {
		return strings.Replace(content, proposal.OldCode, proposal.NewCode, 1), true
	}
	return applyFuzzy(content, proposal)
}

func applyFuzzy(content string, proposal domain.FixProposal) (string, bool) {
	oldLines := strings.Split(proposal.OldCode, "\n")
	if len(oldLines) == 0 || strings.TrimSpace(proposal.OldCode) == "" {
		return content, false
	}
	contentLines := strings.Split(content, "\n")

	bestStart, bestScore := -1, 0.0
	for start := 0; start+len(oldLines) <= len(contentLines); start++ {
		score := blockSimilarity(contentLines[start:start+len(oldLines)], oldLines)
		if score > bestScore {
			bestScore = score
			bestStart = start
		}
	}
	if bestStart == -1 || bestScore < fuzzyMatchThreshold {
		return content, false
	}

	replaced := append([]string{}, contentLines[:bestStart]...)
	replaced = append(replaced, strings.Split(proposal.NewCode, "\n")...)
	replaced = append(replaced, contentLines[bestStart+len(oldLines):]...)
	return strings.Join(replaced, "\n"), true
}

// blockSimilarity reports the fraction of lines in a and b (same length)
// that match once all whitespace is ignored.
func blockSimilarity(a, b []string) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	matches := 0
	for i := range a {
		if strings.Join(strings.Fields(a[i]), "") == strings.Join(strings.Fields(b[i]), "") {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
