// Package scan extracts marker hits and module structure from Rust source
// files using tree-sitter.
package scan

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/domenicquirl/utoipauto/internal/model"
)

var overrideRe = regexp.MustCompile(`\bregister\s*=\s*"([^"]*)"`)
var quotedRe = regexp.MustCompile(`"([^"]*)"`)

// NewParser creates a fresh Rust parser. Parsers are not thread-safe; each
// goroutine must use its own.
func NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(rust.GetLanguage())
	return p
}

// File parses one source file and extracts its marker hits, file-level mod
// declarations, and re-export aliases. A syntax error fails only this file;
// the caller records a diagnostic and continues.
func File(reg *Registry, parser *sitter.Parser, source []byte, relPath string) (model.FileScan, error) {
	fs := model.FileScan{Path: relPath}
	if len(source) == 0 {
		return fs, nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return fs, fmt.Errorf("parsing %s: %w", relPath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return fs, fmt.Errorf("parsing %s: syntax error", relPath)
	}

	w := &walker{reg: reg, source: source, out: &fs}
	w.items(root, nil)

	return fs, nil
}

// attr is one parsed attribute: #[name] or #[name(args)] or #[name = args].
type attr struct {
	name string
	args string
}

type walker struct {
	reg    *Registry
	source []byte
	out    *model.FileScan
}

// items walks the direct children of a source_file or mod declaration_list.
// Attribute items precede the declaration they belong to and are accumulated
// until a declaration consumes them.
func (w *walker) items(node *sitter.Node, modules []string) {
	var pending []attr

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "attribute_item":
			if a, ok := parseAttribute(w.text(child)); ok {
				pending = append(pending, a)
			}
		case "line_comment", "block_comment", "inner_attribute_item":
			// comments between attributes and their declaration are fine
		case "function_item":
			w.function(child, modules, pending)
			pending = nil
		case "struct_item", "enum_item":
			w.typeDecl(child, modules, pending)
			pending = nil
		case "mod_item":
			w.mod(child, modules, pending)
			pending = nil
		case "impl_item":
			w.impl(child, modules)
			pending = nil
		case "use_declaration":
			w.use(child, modules)
			pending = nil
		default:
			pending = nil
		}
	}
}

func (w *walker) function(node *sitter.Node, modules []string, attrs []attr) {
	if isIgnored(attrs) {
		return
	}
	name := w.fieldText(node, "name")
	if name == "" {
		return
	}
	for _, a := range attrs {
		kind, ok := w.reg.AttributeKind(a.name)
		if !ok {
			continue
		}
		w.out.Hits = append(w.out.Hits, model.MarkerHit{
			Kind:     kind,
			Name:     name,
			Modules:  copySegments(modules),
			Override: overrideArg(a.args),
			Offset:   node.StartByte(),
		})
	}
}

func (w *walker) typeDecl(node *sitter.Node, modules []string, attrs []attr) {
	if isIgnored(attrs) {
		return
	}
	// Generic types cannot be registered without concrete parameters.
	if node.ChildByFieldName("type_parameters") != nil {
		return
	}
	name := w.fieldText(node, "name")
	if name == "" {
		return
	}
	for _, a := range attrs {
		if a.name != "derive" {
			continue
		}
		for _, ident := range strings.Split(a.args, ",") {
			ident = strings.TrimSpace(ident)
			kind, ok := w.reg.DeriveKind(ident)
			if !ok {
				continue
			}
			w.out.Hits = append(w.out.Hits, model.MarkerHit{
				Kind:    kind,
				Name:    name,
				Modules: copySegments(modules),
				Offset:  node.StartByte(),
			})
		}
	}
}

func (w *walker) mod(node *sitter.Node, modules []string, attrs []attr) {
	name := w.fieldText(node, "name")
	if name == "" {
		return
	}
	body := node.ChildByFieldName("body")
	if body != nil {
		w.items(body, append(copySegments(modules), name))
		return
	}

	// `mod name;` — file-level declaration, possibly remapped with #[path].
	decl := model.ModDecl{Modules: copySegments(modules), Name: name}
	for _, a := range attrs {
		if a.name == "path" {
			if m := quotedRe.FindStringSubmatch(a.args); m != nil {
				decl.PathOverride = m[1]
			}
		}
	}
	w.out.Mods = append(w.out.Mods, decl)
}

// impl records custom `impl ToSchema for Type` style implementations.
func (w *walker) impl(node *sitter.Node, modules []string) {
	trait := w.fieldText(node, "trait")
	if trait == "" {
		return
	}
	kind, ok := w.reg.TraitKind(trait)
	if !ok {
		return
	}
	typ := w.fieldText(node, "type")
	if typ == "" {
		return
	}
	w.out.Hits = append(w.out.Hits, model.MarkerHit{
		Kind:    kind,
		Name:    typ,
		Modules: copySegments(modules),
		Offset:  node.StartByte(),
	})
}

// use records re-export aliases: `pub use a::b as c;` and plain re-exports
// `pub use a::b;`. Private (non-pub) imports are not re-exports and are
// skipped, as are grouped use-lists.
func (w *walker) use(node *sitter.Node, modules []string) {
	pub := false
	var clause *sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "visibility_modifier":
			pub = true
		case "use_as_clause", "scoped_identifier":
			clause = child
		}
	}
	if !pub || clause == nil {
		return
	}

	var name string
	var target []string
	switch clause.Type() {
	case "use_as_clause":
		name = w.fieldText(clause, "alias")
		target = splitPath(w.fieldText(clause, "path"))
	case "scoped_identifier":
		target = splitPath(w.text(clause))
		if len(target) == 0 {
			return
		}
		name = target[len(target)-1]
	}
	if name == "" || len(target) == 0 {
		return
	}

	w.out.Aliases = append(w.out.Aliases, model.Alias{
		Modules: copySegments(modules),
		Name:    name,
		Target:  target,
	})
}

func (w *walker) text(node *sitter.Node) string {
	return string(w.source[node.StartByte():node.EndByte()])
}

func (w *walker) fieldText(node *sitter.Node, field string) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return w.text(child)
}

// parseAttribute splits the raw text of an attribute item into its path and
// argument payload: #[a::b(args)], #[a] or #[a = val]. The payload is kept
// opaque; only the override path is ever extracted from it.
func parseAttribute(text string) (attr, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "#![") {
		text = text[3:]
	} else if strings.HasPrefix(text, "#[") {
		text = text[2:]
	} else {
		return attr{}, false
	}
	text = strings.TrimSuffix(text, "]")

	if i := strings.IndexByte(text, '('); i >= 0 && strings.HasSuffix(text, ")") {
		return attr{
			name: strings.TrimSpace(text[:i]),
			args: text[i+1 : len(text)-1],
		}, true
	}
	if name, val, ok := strings.Cut(text, "="); ok {
		return attr{name: strings.TrimSpace(name), args: strings.TrimSpace(val)}, true
	}
	return attr{name: strings.TrimSpace(text)}, true
}

func overrideArg(args string) string {
	if m := overrideRe.FindStringSubmatch(args); m != nil {
		return m[1]
	}
	return ""
}

func isIgnored(attrs []attr) bool {
	for _, a := range attrs {
		if a.name == ignoreAttribute {
			return true
		}
	}
	return false
}

// splitPath splits a Rust path on "::", dropping a leading `crate`, `self`
// or empty segment so targets are rooted at the scanned package.
func splitPath(path string) []string {
	segments := strings.Split(strings.TrimSpace(path), "::")
	for len(segments) > 0 {
		first := segments[0]
		if first == "crate" || first == "self" || first == "" {
			segments = segments[1:]
			continue
		}
		break
	}
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		out = append(out, s)
	}
	return out
}

func copySegments(segments []string) []string {
	if len(segments) == 0 {
		return nil
	}
	out := make([]string, len(segments))
	copy(out, segments)
	return out
}
