// Package sourcehost implements the Source-Host Adapter: PR metadata,
// changed-file listing, unified-diff parsing, blob read/write with
// optimistic concurrency, PR comments, and recent commits.
package sourcehost

import (
	"context"
	"errors"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

// ErrNotFound is returned by ReadFile when path does not exist at ref.
var ErrNotFound = errors.New("sourcehost: file not found")

// ErrStaleBlob is returned by WriteFile when priorBlobID no longer matches
// the file's current blob, i.e. it changed since it was read.
var ErrStaleBlob = errors.New("sourcehost: stale blob id")

// Blob is the result of reading a file's current content.
type Blob struct {
	Content []byte
	BlobID  string
}

// WriteResult is the result of a successful WriteFile.
type WriteResult struct {
	CommitID  string
	NewBlobID string
}

// Adapter is the interface the orchestrator and agents depend on. The
// orchestrator only ever sees this contract; HTTP/REST details live behind
// an implementation.
type Adapter interface {
	PullRequest(ctx context.Context, repo string, pr int) (domain.PullRequest, error)
	ChangedFiles(ctx context.Context, repo string, pr int) ([]domain.ChangedFile, error)
	PRDiff(ctx context.Context, repo string, pr int) (domain.PRDiff, error)
	ReadFile(ctx context.Context, repo, path, ref string) (Blob, error)
	WriteFile(ctx context.Context, repo, path string, content []byte, message, branch, priorBlobID string) (WriteResult, error)
	PostComment(ctx context.Context, repo string, pr int, markdown string) error
	RecentCommits(ctx context.Context, repo, ref string, limit int) ([]domain.Commit, error)
}
