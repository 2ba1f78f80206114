package sourcehost

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

// hunkHeaderPattern matches unified-diff hunk headers: "@@ -a,b +c,d @@".
// The comma-and-count portion is optional for single-line hunks ("@@ -a +c @@").
var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// ParseUnifiedDiff converts a single file's unified-diff patch text into
// the three line projections: added, removed, context. Hunk headers reset
// both line counters; "+" lines (not "+++") are added; "-" lines (not
// "---") are removed; anything else is context and advances both counters.
func ParseUnifiedDiff(patch string) (added, removed, context []domain.DiffLine) {
	scanner := bufio.NewScanner(strings.NewReader(patch))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var oldLine, newLine int
	inHunk := false

	for scanner.Scan() {
		line := scanner.Text()

		if m := hunkHeaderPattern.FindStringSubmatch(line); m != nil {
			oldLine, _ = strconv.Atoi(m[1])
			newLine, _ = strconv.Atoi(m[2])
			inHunk = true
			continue
		}
		if !inHunk {
			continue
		}

		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"):
			added = append(added, domain.DiffLine{LineNumber: newLine, Content: line[1:]})
			newLine++
		case strings.HasPrefix(line, "-"):
			removed = append(removed, domain.DiffLine{LineNumber: oldLine, Content: line[1:]})
			oldLine++
		case strings.HasPrefix(line, "\\"):
			// "\ No newline at end of file" — not a content line.
			continue
		default:
			content := line
			if strings.HasPrefix(content, " ") {
				content = content[1:]
			}
			context = append(context, domain.DiffLine{LineNumber: newLine, Content: content})
			oldLine++
			newLine++
		}
	}
	return added, removed, context
}

// ApplyProjections parses cf.Patch and fills its three projection fields,
// honoring the invariant that removed/binary files never get an
// added-lines projection.
func ApplyProjections(cf domain.ChangedFile) domain.ChangedFile {
	if cf.Status == domain.FileRemoved {
		_, removed, context := ParseUnifiedDiff(cf.Patch)
		cf.RemovedLines = removed
		cf.ContextLines = context
		cf.AddedLines = nil
		return cf
	}
	added, removed, context := ParseUnifiedDiff(cf.Patch)
	cf.AddedLines = added
	cf.RemovedLines = removed
	cf.ContextLines = context
	return cf
}
