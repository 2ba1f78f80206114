package workspace

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/alexaandru/go-sitter-forest/python"

	"github.com/codewatch-ai/revbot/pkg/domain"
)

// parsePython extracts function/class/import records from a Python source
// file using a tree-sitter grammar, the same approach the Test Agent's
// function-discovery phase applies to each changed file's current content.
func parsePython(source []byte) ([]domain.FunctionRecord, []domain.ClassRecord, []domain.ImportRecord, error) {
	parser := sitter.NewParser()
	lang := sitter.NewLanguage(python.GetLanguage())
	if err := parser.SetLanguage(lang); err != nil {
		return nil, nil, nil, fmt.Errorf("workspace: set python language: %w", err)
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("workspace: parse python source: %w", err)
	}
	root := tree.RootNode()
	if root.HasError() {
		return nil, nil, nil, fmt.Errorf("workspace: syntax error in python source")
	}

	var functions []domain.FunctionRecord
	var classes []domain.ClassRecord
	var imports []domain.ImportRecord

	walkPython(root, source, &functions, &classes, &imports)
	return functions, classes, imports, nil
}

func walkPython(n sitter.Node, source []byte, functions *[]domain.FunctionRecord, classes *[]domain.ClassRecord, imports *[]domain.ImportRecord) {
	for i := uint32(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)

		switch child.Type() {
		case "function_definition":
			*functions = append(*functions, extractFunction(child, source))
		case "class_definition":
			*classes = append(*classes, extractClass(child, source))
		case "import_statement":
			*imports = append(*imports, extractImportStatement(child, source)...)
		case "import_from_statement":
			*imports = append(*imports, extractImportFrom(child, source))
		}

		walkPython(child, source, functions, classes, imports)
	}
}

func nodeText(n sitter.Node, source []byte) string {
	return n.Content(source)
}

func extractFunction(n sitter.Node, source []byte) domain.FunctionRecord {
	rec := domain.FunctionRecord{StartLine: int(n.StartPoint().Row) + 1}

	if name := n.ChildByFieldName("name"); !name.IsNull() {
		rec.Name = nodeText(name, source)
	}
	if params := n.ChildByFieldName("parameters"); !params.IsNull() {
		for i := uint32(0); i < params.NamedChildCount(); i++ {
			p := params.NamedChild(i)
			rec.Args = append(rec.Args, strings.TrimSpace(nodeText(p, source)))
		}
	}
	// decorated_definition wraps this node when decorators are present.
	if parent := n.Parent(); !parent.IsNull() && parent.Type() == "decorated_definition" {
		for i := uint32(0); i < parent.NamedChildCount(); i++ {
			d := parent.NamedChild(i)
			if d.Type() == "decorator" {
				rec.Decorators = append(rec.Decorators, strings.TrimSpace(nodeText(d, source)))
			}
		}
	}
	return rec
}

func extractClass(n sitter.Node, source []byte) domain.ClassRecord {
	rec := domain.ClassRecord{StartLine: int(n.StartPoint().Row) + 1}

	if name := n.ChildByFieldName("name"); !name.IsNull() {
		rec.Name = nodeText(name, source)
	}
	if bases := n.ChildByFieldName("superclasses"); !bases.IsNull() {
		for i := uint32(0); i < bases.NamedChildCount(); i++ {
			rec.Bases = append(rec.Bases, strings.TrimSpace(nodeText(bases.NamedChild(i), source)))
		}
	}
	if body := n.ChildByFieldName("body"); !body.IsNull() {
		for i := uint32(0); i < body.NamedChildCount(); i++ {
			member := body.NamedChild(i)
			target := member
			if member.Type() == "decorated_definition" {
				if def := member.ChildByFieldName("definition"); !def.IsNull() {
					target = def
				}
			}
			if target.Type() == "function_definition" {
				if name := target.ChildByFieldName("name"); !name.IsNull() {
					rec.Methods = append(rec.Methods, nodeText(name, source))
				}
			}
		}
	}
	return rec
}

func extractImportStatement(n sitter.Node, source []byte) []domain.ImportRecord {
	var out []domain.ImportRecord
	line := int(n.StartPoint().Row) + 1
	for i := uint32(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			out = append(out, domain.ImportRecord{Module: nodeText(child, source), Line: line})
		case "aliased_import":
			if name := child.ChildByFieldName("name"); !name.IsNull() {
				out = append(out, domain.ImportRecord{Module: nodeText(name, source), Line: line})
			}
		}
	}
	return out
}

func extractImportFrom(n sitter.Node, source []byte) domain.ImportRecord {
	rec := domain.ImportRecord{Line: int(n.StartPoint().Row) + 1}
	if module := n.ChildByFieldName("module_name"); !module.IsNull() {
		rec.Module = nodeText(module, source)
	}
	return rec
}
