package workspace

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

// clone performs a shallow, single-branch clone of branch from cloneURL
// into dir. cloneURL must embed any required authentication (e.g.
// "https://x-access-token:<token>@github.com/owner/repo.git").
func (m *Manager) clone(ctx context.Context, cloneURL, branch, dir string, onProgress ProgressFunc) error {
	done := make(chan error, 1)
	go func() {
		_, err := git2go.Clone(cloneURL, dir, &git2go.CloneOptions{
			CheckoutBranch: branch,
			Depth:          1,
			FetchOptions: &git2go.FetchOptions{
				DownloadTags: git2go.DownloadTagsNone,
			},
		})
		done <- err
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("workspace: clone of %s@%s cancelled: %w", cloneURL, branch, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("workspace: clone of %s@%s: %w", cloneURL, branch, err)
		}
		onProgress(fmt.Sprintf("cloned %s into %s", branch, dir))
		return nil
	}
}

// detectProjectKind probes dir for marker files.
func detectProjectKind(dir string) domain.ProjectKind {
	switch {
	case pathExists(dir, "pyproject.toml"), pathExists(dir, "requirements.txt"):
		return domain.ProjectPython
	case pathExists(dir, "package.json"):
		return domain.ProjectNode
	default:
		return domain.ProjectGeneric
	}
}
