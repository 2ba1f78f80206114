package agent

import (
	"context"
	"fmt"

	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
	"github.com/codewatch-ai/revbot/pkg/sourcehost"
	"github.com/codewatch-ai/revbot/pkg/workspace"
)

// WorkspaceBuilder is the Build agent: a thin wrapper around the Workspace
// Manager that also fetches and attaches the parsed PR diff.
type WorkspaceBuilder struct {
	workspace *workspace.Manager
	adapter   sourcehost.Adapter
}

// NewWorkspaceBuilder constructs a Builder backed by mgr and adapter.
func NewWorkspaceBuilder(mgr *workspace.Manager, adapter sourcehost.Adapter) *WorkspaceBuilder {
	return &WorkspaceBuilder{workspace: mgr, adapter: adapter}
}

// Build clones in.CloneURL@in.HeadBranch, runs the static-analysis walk,
// and fetches the PR's parsed diff.
func (b *WorkspaceBuilder) Build(ctx context.Context, in BuildInput, progress ProgressFunc) (*domain.BuildResult, domain.PRDiff, error) {
	if progress == nil {
		progress = noopProgress
	}

	result, err := b.workspace.Materialize(ctx, in.CloneURL, in.HeadBranch, func(line string) {
		progress(events.EventTypeStatusUpdate, nil, map[string]any{"log": line})
	})
	if err != nil {
		return nil, domain.PRDiff{}, fmt.Errorf("agent: materialize workspace: %w", err)
	}

	diff, err := b.adapter.PRDiff(ctx, in.Repo, in.PR)
	if err != nil {
		return result, domain.PRDiff{}, fmt.Errorf("agent: fetch pr diff: %w", err)
	}

	return result, diff, nil
}
