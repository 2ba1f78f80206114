package workspace

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

// walk recursively visits dir, skipping skippedDirs, and computes static
// metadata for every file with a supported extension. Unsupported files
// contribute only a warning when they can't even be stat'd; they are
// otherwise silently skipped, per the invariant that file_info keys are
// exactly the supported-extension files walked.
func (m *Manager) walk(dir string, result *domain.BuildResult) {
	deps := make(map[string]struct{})

	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			result.Warnings = append(result.Warnings, "walk: "+err.Error())
			return nil
		}
		if info.IsDir() {
			if skippedDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if !supportedExtensions[ext] {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			result.Warnings = append(result.Warnings, "read "+rel+": "+readErr.Error())
			return nil
		}

		meta := domain.FileMetadata{
			Path:      rel,
			Size:      info.Size(),
			Lines:     bytes.Count(content, []byte("\n")) + 1,
			Extension: ext,
		}

		switch ext {
		case ".py":
			functions, classes, imports, parseErr := parsePython(content)
			if parseErr != nil {
				result.Errors = append(result.Errors, "parse "+rel+": "+parseErr.Error())
				result.Success = false
			} else {
				meta.Functions = functions
				meta.Classes = classes
				meta.Imports = imports
				meta.Complexity = len(functions) + 2*len(classes)
				for _, imp := range imports {
					deps[topLevelModule(imp.Module)] = struct{}{}
				}
			}
		case ".js", ".ts":
			imports := extractJSImports(content)
			meta.Imports = imports
			for _, imp := range imports {
				deps[topLevelModule(imp.Module)] = struct{}{}
			}
		}

		result.FileInfo[rel] = meta
		return nil
	})

	for dep := range deps {
		result.Dependencies = append(result.Dependencies, dep)
	}
}

// topLevelModule reduces a dotted/relative import path to its top-level
// package name for dependency aggregation, e.g. "os.path" -> "os",
// "./utils" -> "./utils".
func topLevelModule(module string) string {
	for i, r := range module {
		if r == '.' && i > 0 {
			return module[:i]
		}
		if r != '.' {
			break
		}
	}
	return module
}
