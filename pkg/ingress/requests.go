package ingress

// githubWebhookPayload is the subset of a GitHub pull_request webhook body
// this ingress cares about (spec §6, POST /webhook/github).
type githubWebhookPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number int `json:"number"`
		Head   struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
			Repo struct {
				CloneURL string `json:"clone_url"`
			} `json:"repo"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// triggerRequest is the body of POST /agents/trigger.
type triggerRequest struct {
	PRNumber int    `json:"pr_number"`
	RepoName string `json:"repo_name"`
}

// resultsWebhookPayload is the body this system accepts on its own
// POST /webhook/results re-ingestion endpoint (spec §6).
type resultsWebhookPayload struct {
	EventType string         `json:"event_type"`
	Results   map[string]any `json:"results"`
}
