// Package modtree reconstructs the logical module hierarchy of a scanned
// package and resolves marker hits to fully-qualified paths.
package modtree

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/domenicquirl/utoipauto/internal/model"
)

// MaxAliasDepth bounds re-export alias traversal. A chain longer than this
// (or a cycle) fails resolution instead of hanging.
const MaxAliasDepth = 32

// ResolutionError is fatal for the whole pass: a symbol that cannot be
// resolved must abort the build rather than be silently dropped.
type ResolutionError struct {
	Path   string
	Detail string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %s", e.Path, e.Detail)
}

// entryFiles contribute no module segment of their own.
var entryFiles = map[string]struct{}{
	"lib":  {},
	"main": {},
	"mod":  {},
}

// node is one module in the arena. Children are held as indices so the tree
// stays flat and cycle-guarding stays simple.
type node struct {
	name     string
	parent   int
	children []int
}

// Tree is the module hierarchy of one package plus its re-export alias edges.
type Tree struct {
	nodes []node
	index map[string]int // fully-qualified path -> arena index

	// fileNode maps each scanned file to the module it contributes to.
	fileNode map[string]int

	aliases    map[string]string // alias path -> target path
	aliasOrder []string          // longest-first for prefix rewriting
}

// Build constructs the module tree for one package from its file scans.
// Default nesting follows the file layout (directory = module, file stem =
// leaf module unless it is an entry file); `#[path = "..."]` mod declarations
// remap individual files; `pub use` declarations become alias edges.
func Build(scans []model.FileScan) *Tree {
	t := &Tree{
		index:    map[string]int{"": 0},
		fileNode: make(map[string]int),
		aliases:  make(map[string]string),
	}
	t.nodes = append(t.nodes, node{name: "", parent: -1})

	// Remaps declared via #[path]: file path -> module segments.
	remapped := make(map[string][]string)
	for i := range scans {
		sc := &scans[i]
		base := defaultNesting(sc.Path)
		for _, decl := range sc.Mods {
			if decl.PathOverride == "" {
				continue
			}
			target := path.Clean(path.Join(path.Dir(sc.Path), decl.PathOverride))
			segments := append(append(copySegments(base), decl.Modules...), decl.Name)
			remapped[target] = segments
		}
	}

	for i := range scans {
		sc := &scans[i]
		nesting, ok := remapped[sc.Path]
		if !ok {
			nesting = defaultNesting(sc.Path)
		}
		idx := t.ensure(nesting)
		t.fileNode[sc.Path] = idx

		// Declared submodules and inline blocks appear in the tree even when
		// their files contribute no hits.
		for _, decl := range sc.Mods {
			t.ensure(append(append(copySegments(nesting), decl.Modules...), decl.Name))
		}
		for _, hit := range sc.Hits {
			t.ensure(append(copySegments(nesting), hit.Modules...))
		}

		for _, alias := range sc.Aliases {
			from := joinPath(append(append(copySegments(nesting), alias.Modules...), alias.Name))
			to := joinPath(alias.Target)
			if from == "" || to == "" || from == to {
				continue
			}
			t.aliases[from] = to
		}
	}

	t.aliasOrder = make([]string, 0, len(t.aliases))
	for from := range t.aliases {
		t.aliasOrder = append(t.aliasOrder, from)
	}
	// Longest alias first so the most specific prefix wins; ties broken
	// lexicographically for determinism.
	sort.Slice(t.aliasOrder, func(i, j int) bool {
		a, b := t.aliasOrder[i], t.aliasOrder[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})

	return t
}

// Modules returns the number of modules in the tree, excluding the root.
func (t *Tree) Modules() int {
	return len(t.nodes) - 1
}

// Resolve produces one ResolvedSymbol per marker hit. An override path on a
// hit short-circuits resolution and is used verbatim.
func (t *Tree) Resolve(scans []model.FileScan) ([]model.ResolvedSymbol, error) {
	var symbols []model.ResolvedSymbol
	for fileIndex := range scans {
		sc := &scans[fileIndex]
		for _, hit := range sc.Hits {
			sym := model.ResolvedSymbol{
				Kind:      hit.Kind,
				FileIndex: fileIndex,
				Offset:    hit.Offset,
			}

			if hit.Override != "" {
				if strings.TrimSpace(hit.Override) == "" {
					return nil, &ResolutionError{Path: hit.Name, Detail: "blank override path"}
				}
				sym.Path = hit.Override
				sym.Overridden = true
				symbols = append(symbols, sym)
				continue
			}

			nesting := t.pathOf(t.fileNode[sc.Path])
			full := joinPath(append(append(nesting, hit.Modules...), hit.Name))
			resolved, err := t.followAliases(full)
			if err != nil {
				return nil, err
			}
			sym.Path = resolved
			symbols = append(symbols, sym)
		}
	}
	return symbols, nil
}

// followAliases rewrites a path through re-export alias edges until it is
// stable, failing once the depth bound is exceeded.
func (t *Tree) followAliases(p string) (string, error) {
	if len(t.aliases) == 0 {
		return p, nil
	}
	cur := p
	for depth := 0; depth < MaxAliasDepth; depth++ {
		next, changed := t.rewriteOnce(cur)
		if !changed {
			return cur, nil
		}
		cur = next
	}
	return "", &ResolutionError{Path: p, Detail: fmt.Sprintf("alias chain exceeds depth bound %d", MaxAliasDepth)}
}

// rewriteOnce applies the most specific alias edge whose path is the whole
// path or a module prefix of it.
func (t *Tree) rewriteOnce(p string) (string, bool) {
	for _, from := range t.aliasOrder {
		to := t.aliases[from]
		if p == from {
			return to, true
		}
		if strings.HasPrefix(p, from+"::") {
			return to + p[len(from):], true
		}
	}
	return p, false
}

// ensure inserts the module chain for segments and returns the arena index
// of the final module.
func (t *Tree) ensure(segments []string) int {
	idx := 0
	fq := ""
	for _, seg := range segments {
		if fq == "" {
			fq = seg
		} else {
			fq += "::" + seg
		}
		child, ok := t.index[fq]
		if !ok {
			child = len(t.nodes)
			t.nodes = append(t.nodes, node{name: seg, parent: idx})
			t.nodes[idx].children = append(t.nodes[idx].children, child)
			t.index[fq] = child
		}
		idx = child
	}
	return idx
}

// pathOf walks parent links from a module back to the root.
func (t *Tree) pathOf(idx int) []string {
	var rev []string
	for idx > 0 {
		rev = append(rev, t.nodes[idx].name)
		idx = t.nodes[idx].parent
	}
	segments := make([]string, len(rev))
	for i, s := range rev {
		segments[len(rev)-1-i] = s
	}
	return segments
}

// defaultNesting derives module segments from a file's path relative to the
// scan root: src/api/users.rs -> [api users], api/mod.rs -> [api],
// src/lib.rs -> []. The cargo source root directory is not a module.
func defaultNesting(rel string) []string {
	rel = strings.TrimSuffix(rel, ".rs")
	rel = strings.TrimPrefix(rel, "src/")
	segments := strings.Split(rel, "/")
	stem := segments[len(segments)-1]
	if _, entry := entryFiles[stem]; entry {
		segments = segments[:len(segments)-1]
	}
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}

func joinPath(segments []string) string {
	return strings.Join(segments, "::")
}

func copySegments(segments []string) []string {
	if len(segments) == 0 {
		return nil
	}
	out := make([]string, len(segments))
	copy(out, segments)
	return out
}
