// Package extract implements the Definition Extractor and Reference
// Extractor. Both walk the same tree-sitter parse of a blob to produce
// flat (ident, line, kind) / (ident, line) tuples rather than a
// reconstructable entity list.
package extract

import (
	"fmt"
	"sort"

	gotreesitter "github.com/odvcencio/gotreesitter"
	"github.com/odvcencio/gotreesitter/grammars"
	classify "github.com/odvcencio/gts-suite/pkg/lang/treesitter"

	"github.com/xrefdb/elixir/pkg/family"
)

// Definition is one (identifier, line, kind) tuple produced by
// ExtractDefinitions. The caller, pkg/coordinator, attaches the blob
// number and family.
type Definition struct {
	Ident string
	Line  int
	Kind  string
}

// DocComment is the doc-comment line range immediately preceding a
// definition.
type DocComment struct {
	Ident     string
	StartLine int
	EndLine   int
}

// ExtractDefinitions runs a tree-sitter grammar selected by path over
// source and returns every declaration, sorted by (ident, line) with
// duplicates removed. Invoked at most once per blob number.
func ExtractDefinitions(path string, source []byte) ([]Definition, []DocComment, error) {
	entry := grammars.DetectLanguage(path)
	if entry == nil {
		return nil, nil, fmt.Errorf("extract: unsupported file type: %s", path)
	}
	if len(source) == 0 {
		return nil, nil, nil
	}

	bt, err := grammars.ParseFile(path, source)
	if err != nil {
		return nil, nil, fmt.Errorf("extract: parse %s: %w", path, err)
	}
	defer bt.Release()

	root := bt.RootNode()
	var defs []Definition
	var docs []DocComment
	walkDeclarations(bt, root, source, &defs, &docs)

	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Ident != defs[j].Ident {
			return defs[i].Ident < defs[j].Ident
		}
		return defs[i].Line < defs[j].Line
	})
	defs = dedupeDefs(defs)
	return defs, docs, nil
}

// walkDeclarations recurses through node's children, recording one
// Definition per declaration node found, and the nearest preceding
// comment as a DocComment. It descends into container declarations
// (class/struct/interface bodies) so that nested methods and fields are
// also recorded; each declaration becomes its own tuple immediately
// rather than being collected into an entity list first.
func walkDeclarations(bt *gotreesitter.BoundTree, node *gotreesitter.Node, source []byte, defs *[]Definition, docs *[]DocComment) {
	childCount := node.ChildCount()
	var pendingComment *gotreesitter.Node

	for i := 0; i < childCount; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		nodeType := bt.NodeType(child)

		if classify.CommentNodeTypes[nodeType] {
			pendingComment = child
			continue
		}

		// A C "declaration" outside a function body or for-loop header is a
		// file-scope variable or a prototype, told apart by whether its
		// declarator is a function_declarator.
		parentType := bt.NodeType(node)
		isCDecl := nodeType == "declaration" && parentType != "compound_statement" && parentType != "for_statement"
		if isDeclarationNode(bt, child) || isCDecl {
			name, _ := extractDeclName(bt, child)
			if name != "" {
				kind := classifyKind(nodeType)
				if isCDecl {
					kind = "variable"
					for k := 0; k < child.NamedChildCount(); k++ {
						if d := child.NamedChild(k); d != nil && bt.NodeType(d) == "function_declarator" {
							kind = "prototype"
						}
					}
				}
				line := int(child.StartPoint().Row) + 1
				*defs = append(*defs, Definition{Ident: name, Line: line, Kind: kind})
				if pendingComment != nil {
					*docs = append(*docs, DocComment{
						Ident:     name,
						StartLine: int(pendingComment.StartPoint().Row) + 1,
						EndLine:   int(pendingComment.EndPoint().Row) + 1,
					})
				}
			}
			// Recurse for nested members (methods inside a class, fields
			// inside a struct, enumerators inside an enum).
			walkDeclarations(bt, child, source, defs, docs)
		} else {
			walkDeclarations(bt, child, source, defs, docs)
		}

		pendingComment = nil
	}
}

func isDeclarationNode(bt *gotreesitter.BoundTree, node *gotreesitter.Node) bool {
	nodeType := bt.NodeType(node)
	if classify.DeclarationNodeTypes[nodeType] {
		return true
	}
	if nodeType == "method_definition" || nodeType == "enumerator" || nodeType == "field_declaration" {
		return true
	}
	return false
}

// extractDeclName finds the identifier naming node for a declaration. It
// reuses the shared name-identifier classification table rather than a
// per-language switch, since the Definition Extractor only needs a name
// to key the defs map by, not a full name/receiver split.
func extractDeclName(bt *gotreesitter.BoundTree, node *gotreesitter.Node) (string, bool) {
	for i := 0; i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		childType := bt.NodeType(child)
		if classify.NameIdentifierTypes[childType] {
			return bt.NodeText(child), true
		}
	}
	// Search one level deeper for names nested inside a declarator
	// (C's function_declarator, init_declarator).
	for i := 0; i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if name, ok := extractDeclName(bt, child); ok {
			return name, true
		}
	}
	return "", false
}

// classifyKind maps a tree-sitter node type onto the short kind
// vocabulary (function, variable, macro, struct, ...) used to tag
// definitions in the defs map.
func classifyKind(nodeType string) string {
	switch nodeType {
	case "function_declaration", "function_definition", "function_item", "method_declaration", "method_definition":
		return "function"
	case "var_declaration", "variable_declaration", "short_var_declaration", "lexical_declaration":
		return "variable"
	case "const_declaration":
		return "variable"
	case "preproc_def", "preproc_function_def":
		return "macro"
	case "struct_item", "struct_declaration", "struct_specifier":
		return "struct"
	case "union_declaration", "union_specifier":
		return "union"
	case "enum_item", "enum_declaration", "enum_specifier":
		return "enum"
	case "enumerator":
		return "enumerator"
	case "type_declaration", "type_definition", "typedef_declaration":
		return "typedef"
	case "class_definition", "class_declaration":
		return "class"
	case "interface_declaration", "protocol_declaration":
		return "interface"
	case "trait_declaration", "trait_item":
		return "trait"
	case "impl_item":
		return "impl"
	case "field_declaration", "field_definition":
		return "member"
	case "kconfig_config":
		return "config"
	case "labeled_statement":
		return "label"
	case "declaration", "parameter_declaration":
		return "prototype"
	default:
		return "other"
	}
}

func dedupeDefs(defs []Definition) []Definition {
	out := defs[:0]
	var last Definition
	for i, d := range defs {
		if i > 0 && d == last {
			continue
		}
		out = append(out, d)
		last = d
	}
	return out
}

// FamilyForExtensionFallback holds family.Other, the family
// family.Table.Classify falls back to when a table sets no
// DefaultFamily. No code in this module reads it.
var FamilyForExtensionFallback = family.Other
