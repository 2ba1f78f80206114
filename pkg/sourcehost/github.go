package sourcehost

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

// GitHubAdapter implements Adapter against the GitHub REST API.
type GitHubAdapter struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// NewGitHubAdapter constructs an adapter pointed at baseURL (typically
// "https://api.github.com", or a GitHub Enterprise host). token may be
// empty for public repos at lower rate limits.
func NewGitHubAdapter(baseURL, token string) *GitHubAdapter {
	return &GitHubAdapter{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
		logger:     slog.With("component", "sourcehost.GitHubAdapter"),
	}
}

func (a *GitHubAdapter) setAuthHeader(req *http.Request) {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}

func (a *GitHubAdapter) do(ctx context.Context, method, path string, body io.Reader, out any) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("sourcehost: build request: %w", err)
	}
	a.setAuthHeader(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sourcehost: request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp, ErrNotFound
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return resp, fmt.Errorf("sourcehost: %s %s returned HTTP %d: %s", method, path, resp.StatusCode, string(data))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("sourcehost: decode %s %s response: %w", method, path, err)
		}
	}
	return resp, nil
}

type ghPullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Head   ghRef  `json:"head"`
	Base   ghRef  `json:"base"`
	User   ghUser `json:"user"`
}

type ghRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type ghUser struct {
	Login string `json:"login"`
}

// PullRequest fetches PR metadata.
func (a *GitHubAdapter) PullRequest(ctx context.Context, repo string, pr int) (domain.PullRequest, error) {
	var gh ghPullRequest
	if _, err := a.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/pulls/%d", repo, pr), nil, &gh); err != nil {
		return domain.PullRequest{}, err
	}
	return domain.PullRequest{
		Number:     gh.Number,
		Title:      gh.Title,
		Repo:       repo,
		HeadBranch: gh.Head.Ref,
		HeadSHA:    gh.Head.SHA,
		BaseBranch: gh.Base.Ref,
		Author:     gh.User.Login,
	}, nil
}

type ghFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

func fileStatus(s string) domain.FileStatus {
	switch s {
	case "added":
		return domain.FileAdded
	case "removed":
		return domain.FileRemoved
	default:
		return domain.FileModified
	}
}

// ChangedFiles lists a PR's files with patches left unparsed.
func (a *GitHubAdapter) ChangedFiles(ctx context.Context, repo string, pr int) ([]domain.ChangedFile, error) {
	var files []ghFile
	if _, err := a.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/pulls/%d/files?per_page=100", repo, pr), nil, &files); err != nil {
		return nil, err
	}
	out := make([]domain.ChangedFile, 0, len(files))
	for _, f := range files {
		out = append(out, domain.ChangedFile{
			Filename:  f.Filename,
			Status:    fileStatus(f.Status),
			Additions: f.Additions,
			Deletions: f.Deletions,
			Patch:     f.Patch,
		})
	}
	return out, nil
}

// PRDiff fetches PR metadata plus files, then parses every patch into its
// line projections.
func (a *GitHubAdapter) PRDiff(ctx context.Context, repo string, pr int) (domain.PRDiff, error) {
	meta, err := a.PullRequest(ctx, repo, pr)
	if err != nil {
		return domain.PRDiff{}, err
	}
	files, err := a.ChangedFiles(ctx, repo, pr)
	if err != nil {
		return domain.PRDiff{}, err
	}

	result := domain.PRDiff{PR: meta}
	for _, f := range files {
		f = ApplyProjections(f)
		result.Files = append(result.Files, f)
		result.TotalAdditions += f.Additions
		result.TotalDeletions += f.Deletions
	}
	return result, nil
}

type ghContentFile struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
	Path    string `json:"path"`
}

// ReadFile fetches a file's content at ref and a blob id (the GitHub blob
// SHA) usable as an optimistic-concurrency token in WriteFile.
func (a *GitHubAdapter) ReadFile(ctx context.Context, repo, path, ref string) (Blob, error) {
	var gh ghContentFile
	escaped := url.PathEscape(path)
	q := url.Values{}
	if ref != "" {
		q.Set("ref", ref)
	}
	_, err := a.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/contents/%s?%s", repo, escaped, q.Encode()), nil, &gh)
	if err != nil {
		return Blob{}, err
	}
	// GitHub returns content base64-encoded with embedded newlines; decode
	// defensively without depending on a specific newline cadence.
	content, decodeErr := decodeGitHubContent(gh.Content)
	if decodeErr != nil {
		return Blob{}, fmt.Errorf("sourcehost: decode content for %s: %w", path, decodeErr)
	}
	return Blob{Content: content, BlobID: gh.SHA}, nil
}

type ghWriteFileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type ghWriteFileResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// WriteFile updates path on branch, using priorBlobID as the
// optimistic-concurrency token: if the file changed since priorBlobID was
// read, GitHub rejects the request with a 409/422 and WriteFile returns
// ErrStaleBlob.
func (a *GitHubAdapter) WriteFile(ctx context.Context, repo, path string, content []byte, message, branch, priorBlobID string) (WriteResult, error) {
	reqBody := ghWriteFileRequest{
		Message: message,
		Content: encodeGitHubContent(content),
		SHA:     priorBlobID,
		Branch:  branch,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return WriteResult{}, fmt.Errorf("sourcehost: encode write request: %w", err)
	}

	var gh ghWriteFileResponse
	escaped := url.PathEscape(path)
	resp, err := a.do(ctx, http.MethodPut, fmt.Sprintf("/repos/%s/contents/%s", repo, escaped), bytes.NewReader(payload), &gh)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity) {
			return WriteResult{}, fmt.Errorf("%w: %s", ErrStaleBlob, path)
		}
		return WriteResult{}, err
	}
	return WriteResult{CommitID: gh.Commit.SHA, NewBlobID: gh.Content.SHA}, nil
}

type ghCommentRequest struct {
	Body string `json:"body"`
}

// PostComment posts a Markdown comment on the PR's issue thread.
func (a *GitHubAdapter) PostComment(ctx context.Context, repo string, pr int, markdown string) error {
	payload, err := json.Marshal(ghCommentRequest{Body: markdown})
	if err != nil {
		return fmt.Errorf("sourcehost: encode comment: %w", err)
	}
	_, err = a.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues/%d/comments", repo, pr), bytes.NewReader(payload), nil)
	return err
}

type ghCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"author"`
	} `json:"commit"`
}

// RecentCommits lists up to limit commits reachable from ref, most recent
// first.
func (a *GitHubAdapter) RecentCommits(ctx context.Context, repo, ref string, limit int) ([]domain.Commit, error) {
	var commits []ghCommit
	path := fmt.Sprintf("/repos/%s/commits?sha=%s&per_page=%s", repo, url.QueryEscape(ref), strconv.Itoa(limit))
	if _, err := a.do(ctx, http.MethodGet, path, nil, &commits); err != nil {
		return nil, err
	}
	out := make([]domain.Commit, 0, len(commits))
	for _, c := range commits {
		out = append(out, domain.Commit{
			ID:          c.SHA,
			Message:     c.Commit.Message,
			AuthorName:  c.Commit.Author.Name,
			AuthorEmail: c.Commit.Author.Email,
		})
	}
	return out, nil
}

// blobID computes a GitHub-compatible blob SHA ("blob <len>\0<content>") for
// content the adapter has not yet round-tripped through the API, used by
// callers constructing synthetic blob ids in tests.
func blobID(content []byte) string {
	header := fmt.Sprintf("blob %d\x00", len(content))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(content)
	return fmt.Sprintf("%x", h.Sum(nil))
}
