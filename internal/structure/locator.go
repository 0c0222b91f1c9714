// Package structure resolves the declaration enclosing a source line using
// tree-sitter grammars. The snapshot store uses it to label hunks with the
// function, method or type they touch.
package structure

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// declarations lists, per language, the node types that contribute a name to
// the qualified symbol path.
var declarations = map[string]map[string]bool{
	"go": {
		"function_declaration": true,
		"method_declaration":   true,
		"type_spec":            true,
	},
	"typescript": {
		"function_declaration":           true,
		"generator_function_declaration": true,
		"class_declaration":              true,
		"abstract_class_declaration":     true,
		"interface_declaration":          true,
		"method_definition":              true,
	},
	"javascript": {
		"function_declaration":           true,
		"generator_function_declaration": true,
		"class_declaration":              true,
		"method_definition":              true,
	},
	"python": {
		"function_definition": true,
		"class_definition":    true,
	},
	"rust": {
		"function_item": true,
		"struct_item":   true,
		"enum_item":     true,
		"trait_item":    true,
		"impl_item":     true,
		"mod_item":      true,
	},
	"c": {
		"function_definition": true,
		"struct_specifier":    true,
	},
	"cpp": {
		"function_definition":  true,
		"struct_specifier":     true,
		"class_specifier":      true,
		"namespace_definition": true,
	},
	"java": {
		"class_declaration":       true,
		"interface_declaration":   true,
		"enum_declaration":        true,
		"method_declaration":      true,
		"constructor_declaration": true,
	},
	"php": {
		"function_definition":   true,
		"class_declaration":     true,
		"interface_declaration": true,
		"trait_declaration":     true,
		"method_declaration":    true,
	},
	"ruby": {
		"class":            true,
		"module":           true,
		"method":           true,
		"singleton_method": true,
	},
}

// Locator finds enclosing declarations. The zero value is ready to use.
type Locator struct{}

// NewLocator returns a Locator.
func NewLocator() *Locator {
	return &Locator{}
}

// EnclosingSymbol returns the dot-joined names of the declarations that
// enclose the 1-based line in src, outermost first, e.g. "Server.Address".
// It returns "" for unsupported languages, unparsable input, or lines outside
// any declaration.
func (l *Locator) EnclosingSymbol(path string, src []byte, line int) string {
	if line < 1 || len(src) == 0 {
		return ""
	}
	lang, ok := LanguageForFile(path)
	if !ok {
		return ""
	}
	grammar, ok := GrammarFor(lang)
	if !ok {
		return ""
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return ""
	}
	defer tree.Close()

	row := uint32(line - 1)
	decls := declarations[lang]

	var names []string
	node := tree.RootNode()
	for {
		next := childContaining(node, row)
		if next == nil {
			break
		}
		if decls[next.Type()] {
			if name := declName(lang, next, src); name != "" {
				names = append(names, name)
			}
		}
		node = next
	}
	return strings.Join(names, ".")
}

func childContaining(n *sitter.Node, row uint32) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		if c.StartPoint().Row <= row && row <= c.EndPoint().Row {
			return c
		}
	}
	return nil
}

func declName(lang string, n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "impl_item":
		if t := n.ChildByFieldName("type"); t != nil {
			return t.Content(src)
		}
		return ""
	case "method_declaration":
		if lang == "go" {
			name := fieldText(n, "name", src)
			if recv := receiverType(n.ChildByFieldName("receiver"), src); recv != "" {
				return recv + "." + name
			}
			return name
		}
	case "function_definition":
		if lang == "c" || lang == "cpp" {
			return declaratorName(n, src)
		}
	}
	return fieldText(n, "name", src)
}

func fieldText(n *sitter.Node, field string, src []byte) string {
	if c := n.ChildByFieldName(field); c != nil {
		return c.Content(src)
	}
	return ""
}

// declaratorName follows a C/C++ declarator chain down to the identifier.
func declaratorName(n *sitter.Node, src []byte) string {
	d := n.ChildByFieldName("declarator")
	for d != nil {
		next := d.ChildByFieldName("declarator")
		if next == nil {
			return d.Content(src)
		}
		d = next
	}
	return ""
}

// receiverType returns the first type identifier inside a Go receiver list.
func receiverType(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	if n.Type() == "type_identifier" {
		return n.Content(src)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if t := receiverType(n.NamedChild(i), src); t != "" {
			return t
		}
	}
	return ""
}
