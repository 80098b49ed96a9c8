// Package manifest partitions resolved symbols by kind and serializes the
// final registration lists.
package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/domenicquirl/utoipauto/internal/model"
)

// Build partitions symbols into the manifest's per-kind lists. Input order
// is the recorded traversal order; symbols are re-sorted by (file, offset)
// within their originating tree so that parallel parsing can never reorder
// the output. Duplicate paths within a kind are silently dropped, keeping
// the first occurrence.
func Build(symbols []model.ResolvedSymbol) model.Manifest {
	ordered := make([]model.ResolvedSymbol, len(symbols))
	copy(ordered, symbols)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := &ordered[i], &ordered[j]
		if a.Crate != b.Crate {
			// Local symbols first, then crates in configured order, which is
			// the order symbols arrive in. SliceStable keeps that order; only
			// same-origin entries are compared here.
			return false
		}
		if a.FileIndex != b.FileIndex {
			return a.FileIndex < b.FileIndex
		}
		return a.Offset < b.Offset
	})

	var m model.Manifest
	seen := make(map[model.Kind]map[string]struct{})
	for _, sym := range ordered {
		kindSeen, ok := seen[sym.Kind]
		if !ok {
			kindSeen = make(map[string]struct{})
			seen[sym.Kind] = kindSeen
		}
		if _, dup := kindSeen[sym.Path]; dup {
			continue
		}
		kindSeen[sym.Path] = struct{}{}

		switch sym.Kind {
		case model.Endpoint:
			m.Endpoints = append(m.Endpoints, sym.Path)
		case model.Schema:
			m.Schemas = append(m.Schemas, sym.Path)
		case model.Response:
			m.Responses = append(m.Responses, sym.Path)
		}
	}
	return m
}

// List serializes one partition into the comma-joined token form the
// registration attribute expects.
func List(paths []string) string {
	return strings.Join(paths, ", ")
}

// Render formats the whole manifest for output, one partition per line.
func Render(m model.Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "paths: %s\n", List(m.Endpoints))
	fmt.Fprintf(&b, "schemas: %s\n", List(m.Schemas))
	fmt.Fprintf(&b, "responses: %s", List(m.Responses))
	return b.String()
}

// Tokens renders the manifest as the argument tokens of the #[openapi(...)]
// registration attribute, ready to splice into its argument positions.
func Tokens(m model.Manifest) string {
	return fmt.Sprintf("paths(%s),\ncomponents(schemas(%s), responses(%s))",
		List(m.Endpoints), List(m.Schemas), List(m.Responses))
}
