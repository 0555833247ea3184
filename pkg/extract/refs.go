package extract

import (
	"fmt"

	gotreesitter "github.com/odvcencio/gotreesitter"
	"github.com/odvcencio/gotreesitter/grammars"
	classify "github.com/odvcencio/gts-suite/pkg/lang/treesitter"
)

// Reference is one identifier occurrence line, emitted only when the
// identifier is known.
type Reference struct {
	Ident string
	Line  int
}

// stringLiteralNodeTypes extends the shared classification tables with
// the leaf kinds that hold string/char content across the grammars
// Elixir indexes. Tokens inside these are never identifier references.
var stringLiteralNodeTypes = map[string]bool{
	"string_literal":     true,
	"raw_string_literal":  true,
	"interpreted_string_literal": true,
	"char_literal":        true,
	"string":              true,
	"string_fragment":     true,
	"template_string":     true,
}

// ExtractReferences tokenizes source and, for every identifier token,
// either suppresses it (it is the defining occurrence, i.e. it shares a
// line with a recorded definition of the same identifier in this blob),
// discards it (not a member of knownIdents), or records its line.
//
// defLines maps an identifier to every line on which ExtractDefinitions
// recorded a definition of it in this same blob. Suppression is by line
// number, not by identity of the defining token.
func ExtractReferences(path string, source []byte, knownIdents map[string]bool, defLines map[string][]int) ([]Reference, error) {
	entry := grammars.DetectLanguage(path)
	if entry == nil {
		return nil, fmt.Errorf("extract: unsupported file type: %s", path)
	}
	if len(source) == 0 {
		return nil, nil
	}

	bt, err := grammars.ParseFile(path, source)
	if err != nil {
		return nil, fmt.Errorf("extract: parse %s: %w", path, err)
	}
	defer bt.Release()

	var refs []Reference
	walkTokens(bt, bt.RootNode(), knownIdents, defLines, &refs)
	return refs, nil
}

func walkTokens(bt *gotreesitter.BoundTree, node *gotreesitter.Node, knownIdents map[string]bool, defLines map[string][]int, out *[]Reference) {
	childCount := node.ChildCount()
	if childCount == 0 {
		recordLeaf(bt, node, knownIdents, defLines, out)
		return
	}
	nodeType := bt.NodeType(node)
	if classify.CommentNodeTypes[nodeType] || stringLiteralNodeTypes[nodeType] {
		return
	}
	for i := 0; i < childCount; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		walkTokens(bt, child, knownIdents, defLines, out)
	}
}

func recordLeaf(bt *gotreesitter.BoundTree, node *gotreesitter.Node, knownIdents map[string]bool, defLines map[string][]int, out *[]Reference) {
	nodeType := bt.NodeType(node)
	if !classify.NameIdentifierTypes[nodeType] && nodeType != "identifier" {
		return
	}
	if stringLiteralNodeTypes[nodeType] || classify.CommentNodeTypes[nodeType] {
		return
	}

	ident := bt.NodeText(node)
	if ident == "" || !knownIdents[ident] {
		return
	}

	line := int(node.StartPoint().Row) + 1
	for _, defLine := range defLines[ident] {
		if defLine == line {
			return
		}
	}
	*out = append(*out, Reference{Ident: ident, Line: line})
}
