package testagent

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/alexaandru/go-sitter-forest/python"

	"github.com/codewatch-ai/revbot/pkg/agent"
	"github.com/codewatch-ai/revbot/pkg/domain"
	"github.com/codewatch-ai/revbot/pkg/events"
)

// phase1 discovers changed functions across every changed .py file, then
// makes a single batched request for per-function test questions. It
// returns the matched questions together with the discovered functions
// (empty when no file contributes a function, signalling the caller to
// publish stage_complete{status: skipped}).
func (t *Tester) phase1(ctx context.Context, in agent.TestInput, progress agent.ProgressFunc) ([]domain.FunctionQuestion, []domain.ChangedFunction, error) {
	progress(events.EventTypeTestStart, nil, nil)
	pct := 10
	progress(events.EventTypeStatusUpdate, &pct, nil)

	var functions []domain.ChangedFunction
	for _, cf := range in.Diff.Files {
		if !strings.HasSuffix(cf.Filename, ".py") {
			continue
		}
		found, err := t.discoverFileFunctions(ctx, in.Repo, in.HeadBranch, cf)
		if err != nil {
			t.logger.Warn("testagent: function discovery failed for file, skipping", "filename", cf.Filename, "error", err)
			continue
		}
		functions = append(functions, found...)
	}

	pct = 30
	progress(events.EventTypeStatusUpdate, &pct, map[string]any{"functions_discovered": len(functions)})

	if len(functions) == 0 {
		return nil, nil, nil
	}

	questioned, err := t.questioner.AskFunctions(ctx, functions)
	if err != nil {
		return nil, functions, fmt.Errorf("testagent: ask functions: %w", err)
	}

	pct = 50
	progress(events.EventTypeStatusUpdate, &pct, nil)

	questions := matchQuestions(functions, questioned)

	pct = 75
	progress(events.EventTypeStatusUpdate, &pct, nil)

	return questions, functions, nil
}

// matchQuestions pairs returned questions back to discovered functions by
// the exact (filename, function_name) pair, silently dropping any returned
// entry that doesn't match a discovered function.
func matchQuestions(functions []domain.ChangedFunction, questioned []domain.FunctionQuestion) []domain.FunctionQuestion {
	byKey := make(map[string]domain.ChangedFunction, len(functions))
	for _, fn := range functions {
		byKey[fn.Filename+"\x00"+fn.FunctionName] = fn
	}

	matched := make([]domain.FunctionQuestion, 0, len(questioned))
	for _, q := range questioned {
		fn, ok := byKey[q.Function.Filename+"\x00"+q.Function.FunctionName]
		if !ok {
			continue
		}
		q.Function = fn
		matched = append(matched, q)
	}
	return matched
}

// discoverFileFunctions fetches cf's current content, validates the diff's
// added line numbers against it, parses the file, and returns every
// function whose inclusive span intersects a changed line.
func (t *Tester) discoverFileFunctions(ctx context.Context, repo, headBranch string, cf domain.ChangedFile) ([]domain.ChangedFunction, error) {
	blob, err := t.adapter.ReadFile(ctx, repo, cf.Filename, headBranch)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	source := blob.Content
	lineCount := strings.Count(string(source), "\n") + 1

	changed := make(map[int]struct{})
	for _, line := range cf.AddedLines {
		if line.LineNumber < 1 || line.LineNumber > lineCount {
			continue
		}
		changed[line.LineNumber] = struct{}{}
	}
	if len(changed) == 0 {
		return nil, nil
	}

	spans, err := parseFunctionSpans(source)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	var out []domain.ChangedFunction
	for _, span := range spans {
		if !intersects(span.start, span.end, changed) {
			continue
		}
		out = append(out, span.toChangedFunction(cf.Filename, source))
	}
	return out, nil
}

func intersects(start, end int, changed map[int]struct{}) bool {
	for line := range changed {
		if line >= start && line <= end {
			return true
		}
	}
	return false
}

// functionSpan is an intermediate parse result: a function's name, its
// inclusive 1-based line span, class context, decorators and docstring,
// already extracted from the tree so the span can be checked against the
// changed-line set before a ChangedFunction is built.
type functionSpan struct {
	name           string
	start, end     int
	isMethod       bool
	enclosingClass string
	decorators     []string
	docstring      string
}

func (s functionSpan) toChangedFunction(filename string, source []byte) domain.ChangedFunction {
	lines := strings.Split(string(source), "\n")
	startIdx, endIdx := s.start-1, s.end
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > len(lines) {
		endIdx = len(lines)
	}
	snippet := strings.Join(lines[startIdx:endIdx], "\n")

	return domain.ChangedFunction{
		Filename:       filename,
		FunctionName:   s.name,
		StartLine:      s.start,
		EndLine:        s.end,
		Source:         snippet,
		IsMethod:       s.isMethod,
		EnclosingClass: s.enclosingClass,
		Decorators:     s.decorators,
		Docstring:      s.docstring,
	}
}

// parseFunctionSpans walks source with the same tree-sitter Python grammar
// the Workspace Manager uses for symbol extraction, but keeps span/
// docstring/enclosing-class detail the Workspace Manager's lighter-weight
// FunctionRecord does not carry.
func parseFunctionSpans(source []byte) ([]functionSpan, error) {
	parser := sitter.NewParser()
	lang := sitter.NewLanguage(python.GetLanguage())
	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("set python language: %w", err)
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse python source: %w", err)
	}
	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("syntax error in python source")
	}

	var spans []functionSpan
	walkSpans(root, source, false, "", &spans)
	return spans, nil
}

func walkSpans(n sitter.Node, source []byte, isMethod bool, enclosingClass string, spans *[]functionSpan) {
	for i := uint32(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)

		switch child.Type() {
		case "function_definition":
			*spans = append(*spans, extractSpan(child, source, isMethod, enclosingClass))
			if body := child.ChildByFieldName("body"); !body.IsNull() {
				walkSpans(body, source, isMethod, enclosingClass, spans)
			}
		case "class_definition":
			className := ""
			if name := child.ChildByFieldName("name"); !name.IsNull() {
				className = name.Content(source)
			}
			if body := child.ChildByFieldName("body"); !body.IsNull() {
				walkSpans(body, source, true, className, spans)
			}
		default:
			walkSpans(child, source, isMethod, enclosingClass, spans)
		}
	}
}

func extractSpan(n sitter.Node, source []byte, isMethod bool, enclosingClass string) functionSpan {
	span := functionSpan{
		start:          int(n.StartPoint().Row) + 1,
		end:            int(n.EndPoint().Row) + 1,
		isMethod:       isMethod,
		enclosingClass: enclosingClass,
	}
	if name := n.ChildByFieldName("name"); !name.IsNull() {
		span.name = name.Content(source)
	}
	if parent := n.Parent(); !parent.IsNull() && parent.Type() == "decorated_definition" {
		for i := uint32(0); i < parent.NamedChildCount(); i++ {
			d := parent.NamedChild(i)
			if d.Type() == "decorator" {
				span.decorators = append(span.decorators, strings.TrimSpace(d.Content(source)))
			}
		}
	}
	if body := n.ChildByFieldName("body"); !body.IsNull() && body.NamedChildCount() > 0 {
		first := body.NamedChild(0)
		if first.Type() == "expression_statement" && first.NamedChildCount() > 0 {
			if str := first.NamedChild(0); str.Type() == "string" {
				span.docstring = strings.Trim(strings.TrimSpace(str.Content(source)), "\"'")
			}
		}
	}
	return span
}
