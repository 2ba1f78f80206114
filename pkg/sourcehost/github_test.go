package sourcehost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHubAdapter_PullRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/widgets/pulls/42", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(ghPullRequest{
			Number: 42,
			Title:  "Add widget",
			Head:   ghRef{Ref: "feature-x", SHA: "abc123"},
			Base:   ghRef{Ref: "main"},
			User:   ghUser{Login: "alice"},
		})
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL, "test-token")
	pr, err := a.PullRequest(context.Background(), "octo/widgets", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "feature-x", pr.HeadBranch)
	assert.Equal(t, "alice", pr.Author)
}

func TestGitHubAdapter_ReadFile_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL, "")
	_, err := a.ReadFile(context.Background(), "octo/widgets", "missing.py", "main")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGitHubAdapter_ReadFile_DecodesBase64Content(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ghContentFile{
			Content: encodeGitHubContent([]byte("def f():\n    return 1\n")),
			SHA:     "blobsha1",
			Path:    "a.py",
		})
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL, "")
	blob, err := a.ReadFile(context.Background(), "octo/widgets", "a.py", "main")
	require.NoError(t, err)
	assert.Equal(t, "def f():\n    return 1\n", string(blob.Content))
	assert.Equal(t, "blobsha1", blob.BlobID)
}

func TestGitHubAdapter_WriteFile_StaleBlobReturnsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL, "")
	_, err := a.WriteFile(context.Background(), "octo/widgets", "a.py", []byte("x"), "fix", "main", "stale-sha")
	assert.ErrorIs(t, err, ErrStaleBlob)
}

func TestGitHubAdapter_WriteFile_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		resp := ghWriteFileResponse{}
		resp.Content.SHA = "newblobsha"
		resp.Commit.SHA = "commitsha"
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL, "")
	res, err := a.WriteFile(context.Background(), "octo/widgets", "a.py", []byte("fixed"), "🤖 AI Fix: tighten bounds [skip-pipeline]", "feature-x", "oldblobsha")
	require.NoError(t, err)
	assert.Equal(t, "commitsha", res.CommitID)
	assert.Equal(t, "newblobsha", res.NewBlobID)
}

func TestGitHubAdapter_PostComment(t *testing.T) {
	var gotBody ghCommentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/widgets/issues/42/comments", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL, "")
	err := a.PostComment(context.Background(), "octo/widgets", 42, "## Review complete")
	require.NoError(t, err)
	assert.Equal(t, "## Review complete", gotBody.Body)
}

func TestGitHubAdapter_RecentCommits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commits := []ghCommit{{SHA: "c1"}, {SHA: "c2"}}
		commits[0].Commit.Message = "🤖 AI Fix: narrow input validation [skip-pipeline]"
		json.NewEncoder(w).Encode(commits)
	}))
	defer srv.Close()

	a := NewGitHubAdapter(srv.URL, "")
	commits, err := a.RecentCommits(context.Background(), "octo/widgets", "feature-x", 5)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Contains(t, commits[0].Message, "[skip-pipeline]")
}
