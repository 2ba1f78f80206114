// Package workspace implements the Workspace Manager: shallow clone of a
// PR branch, project-kind detection, best-effort dependency install and
// build, and a static-analysis walk that feeds the Build agent's metadata.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/procexec"
)

// defaultCommandTimeout bounds every child-process invocation except the
// initial clone, per the "hard timeout, default 5 minutes" time bound.
const defaultCommandTimeout = 5 * time.Minute

var supportedExtensions = map[string]bool{
	".py":  true,
	".js":  true,
	".ts":  true,
	".java": true,
	".cpp": true,
	".c":   true,
}

var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
}

// ProgressFunc receives one line of child-process output as it is produced,
// so a subscriber can observe live build/install logs.
type ProgressFunc func(line string)

// Manager materializes PR branches into ephemeral workspaces and runs the
// static-analysis walk over them.
type Manager struct {
	spawner        *procexec.Spawner
	commandTimeout time.Duration
	logger         *slog.Logger
}

// NewManager constructs a Manager with the default command timeout.
func NewManager() *Manager {
	return &Manager{
		spawner:        procexec.New(),
		commandTimeout: defaultCommandTimeout,
		logger:         slog.With("component", "workspace.Manager"),
	}
}

// Materialize clones branch of cloneURL (which must embed any required
// authentication), detects the project kind, best-effort installs and
// builds, then walks the tree for static metadata. A failed clone ends the
// run with an unsuccessful result, and a failure to create the scratch
// directory is returned as an error. Install and build failures degrade to
// warnings; a .py file that fails to parse is recorded as an error and
// clears Success.
func (m *Manager) Materialize(ctx context.Context, cloneURL, branch string, onProgress ProgressFunc) (*domain.BuildResult, error) {
	if onProgress == nil {
		onProgress = func(string) {}
	}

	dir, err := os.MkdirTemp("", "revbot-workspace-*")
	if err != nil {
		return nil, err
	}

	if cloneErr := m.clone(ctx, cloneURL, branch, dir, onProgress); cloneErr != nil {
		m.logger.Error("clone failed", "branch", branch, "err", cloneErr)
		return &domain.BuildResult{
			Success:       false,
			ProjectKind:   domain.ProjectUnknown,
			FileInfo:      map[string]domain.FileMetadata{},
			Errors:        []string{cloneErr.Error()},
			WorkspacePath: dir,
		}, nil
	}

	kind := detectProjectKind(dir)
	result := &domain.BuildResult{
		Success:       true,
		ProjectKind:   kind,
		FileInfo:      map[string]domain.FileMetadata{},
		WorkspacePath: dir,
	}

	m.install(ctx, dir, kind, onProgress, result)
	m.build(ctx, dir, kind, onProgress, result)
	m.walk(dir, result)
	result.TotalFiles = len(result.FileInfo)

	return result, nil
}

func (m *Manager) runStep(ctx context.Context, dir string, onProgress ProgressFunc, result *domain.BuildResult, warnOnFailure bool, name string, args ...string) procexec.Result {
	runCtx, cancel := context.WithTimeout(ctx, m.commandTimeout)
	defer cancel()

	res := m.spawner.Run(runCtx, dir, nil, func(l procexec.Line) {
		result.BuildLog = append(result.BuildLog, string(l.Stream)+": "+l.Text)
		onProgress(l.Text)
	}, name, args...)

	if res.Err != nil || res.ExitCode != 0 {
		msg := fmt.Sprintf("%s %v failed (exit=%d): %v", name, args, res.ExitCode, res.Err)
		if warnOnFailure {
			result.Warnings = append(result.Warnings, msg)
		} else {
			result.Errors = append(result.Errors, msg)
		}
	}
	return res
}

func pathExists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
