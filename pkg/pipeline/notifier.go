package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// notifier delivers the comprehensive results record to an optional
// external webhook, falling back to a timestamped backup file on failure.
// Delivery is always best-effort: it never returns an error the caller
// must act on.
type notifier struct {
	webhookURL string
	timeout    time.Duration
	backupDir  string
	client     *http.Client
	logger     *slog.Logger
}

func newNotifier(webhookURL string, timeout time.Duration, backupDir string) *notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &notifier{
		webhookURL: webhookURL,
		timeout:    timeout,
		backupDir:  backupDir,
		client:     &http.Client{Timeout: timeout},
		logger:     slog.With("component", "pipeline.notifier"),
	}
}

func (n *notifier) deliver(ctx context.Context, pipelineID string, record map[string]any) {
	body, err := json.Marshal(record)
	if err != nil {
		n.logger.Error("could not marshal comprehensive results", "pipeline_id", pipelineID, "error", err)
		return
	}

	if n.webhookURL == "" {
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.post(reqCtx, body); err != nil {
		n.logger.Warn("results webhook delivery failed, writing backup file", "pipeline_id", pipelineID, "error", err)
		n.writeBackup(pipelineID, body)
	}
}

func (n *notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %s", resp.Status)
	}
	return nil
}

func (n *notifier) writeBackup(pipelineID string, body []byte) {
	dir := n.backupDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		n.logger.Error("could not create results backup dir", "dir", dir, "error", err)
		return
	}

	filename := fmt.Sprintf("%s_%d.json", pipelineID, time.Now().Unix())
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		n.logger.Error("could not write results backup file", "path", path, "error", err)
	}
}
