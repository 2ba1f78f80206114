package workspace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

// install runs the best-effort dependency install step for kind. Every
// failure is a warning, never fatal.
func (m *Manager) install(ctx context.Context, dir string, kind domain.ProjectKind, onProgress ProgressFunc, result *domain.BuildResult) {
	switch kind {
	case domain.ProjectPython:
		if pathExists(dir, "requirements.txt") {
			m.runStep(ctx, dir, onProgress, result, true, "pip", "install", "-r", "requirements.txt")
		}
	case domain.ProjectNode:
		if pathExists(dir, "package.json") {
			m.runStep(ctx, dir, onProgress, result, true, "npm", "install", "--no-audit", "--no-fund")
		}
	}
}

// build runs the best-effort build step for kind. Every failure is a
// warning, never fatal.
func (m *Manager) build(ctx context.Context, dir string, kind domain.ProjectKind, onProgress ProgressFunc, result *domain.BuildResult) {
	switch kind {
	case domain.ProjectPython:
		res := m.runStep(ctx, dir, onProgress, result, true, "python", "-m", "build")
		if res.Err != nil || res.ExitCode != 0 {
			m.runStep(ctx, dir, onProgress, result, true, "python", "setup.py", "build")
		}
	case domain.ProjectNode:
		if hasBuildScript(dir) {
			m.runStep(ctx, dir, onProgress, result, true, "npm", "run", "build")
		}
	case domain.ProjectGeneric:
		if pathExists(dir, "Makefile") {
			m.runStep(ctx, dir, onProgress, result, true, "make", "build")
		}
	}
}

type packageJSON struct {
	Scripts map[string]string `json:"scripts"`
}

func hasBuildScript(dir string) bool {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return false
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}
	_, ok := pkg.Scripts["build"]
	return ok
}
