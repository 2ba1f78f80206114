package workspace

import (
	"bufio"
	"bytes"
	"regexp"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

var (
	esImportPattern = regexp.MustCompile(`^\s*import\s+(?:[\w*{}\s,]+\s+from\s+)?['"]([^'"]+)['"]`)
	requirePattern  = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
)

// extractJSImports regex-extracts ES-module and CommonJS import targets
// from a .js/.ts file, one pass per line.
func extractJSImports(source []byte) []domain.ImportRecord {
	var imports []domain.ImportRecord
	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if m := esImportPattern.FindStringSubmatch(text); m != nil {
			imports = append(imports, domain.ImportRecord{Module: m[1], Line: line})
			continue
		}
		if m := requirePattern.FindStringSubmatch(text); m != nil {
			imports = append(imports, domain.ImportRecord{Module: m[1], Line: line})
		}
	}
	return imports
}
