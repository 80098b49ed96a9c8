// Package link merges symbols contributed by external crates into the local
// resolved set.
package link

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/domenicquirl/utoipauto/internal/config"
	"github.com/domenicquirl/utoipauto/internal/match"
	"github.com/domenicquirl/utoipauto/internal/model"
	"github.com/domenicquirl/utoipauto/internal/modtree"
	"github.com/domenicquirl/utoipauto/internal/scan"
)

// crateSearchDirs are tried, in order, to locate an external crate's source
// root relative to the scan root when no explicit root is configured. They
// cover cargo workspace members, vendored dependencies, and sibling crates.
var crateSearchDirs = []string{
	"crates/%s/src",
	"vendor/%s/src",
	"../%s/src",
}

// Result is the merged output of linking: symbols in traversal order plus
// the diagnostics accumulated while scanning external crates.
type Result struct {
	Symbols     []model.ResolvedSymbol
	Diagnostics []model.Diagnostic
}

// Merge scans each configured external crate and merges its symbols after
// the local ones, prefixed with the crate's configured prefix. A crate that
// cannot be located, or that contributes no markers, yields no entries and
// no error. Duplicate fully-qualified paths within a kind are dropped,
// keeping the first contribution in traversal order.
func Merge(root string, local []model.ResolvedSymbol, crates []config.CrateSpec, reg *scan.Registry) (Result, error) {
	var res Result

	seen := make(map[model.Kind]map[string]struct{})
	keep := func(sym model.ResolvedSymbol) bool {
		kindSeen, ok := seen[sym.Kind]
		if !ok {
			kindSeen = make(map[string]struct{})
			seen[sym.Kind] = kindSeen
		}
		if _, dup := kindSeen[sym.Path]; dup {
			return false
		}
		kindSeen[sym.Path] = struct{}{}
		return true
	}

	for _, sym := range local {
		if keep(sym) {
			res.Symbols = append(res.Symbols, sym)
		}
	}

	for _, crate := range crates {
		crateRoot := locateCrate(root, crate)
		if crateRoot == "" {
			res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
				Severity: model.SeverityWarning,
				Code:     "crate_not_found",
				Message:  "external crate " + crate.Name + " not found, contributing no symbols",
			})
			continue
		}

		symbols, diags, err := scanCrate(crateRoot, crate, reg)
		res.Diagnostics = append(res.Diagnostics, diags...)
		if err != nil {
			return Result{}, err
		}
		for _, sym := range symbols {
			if keep(sym) {
				res.Symbols = append(res.Symbols, sym)
			}
		}
	}

	return res, nil
}

// scanCrate runs the matcher, scanner, and resolver over one external
// crate's source root. External crates are scanned sequentially; only the
// local tree is parsed concurrently.
func scanCrate(crateRoot string, crate config.CrateSpec, reg *scan.Registry) ([]model.ResolvedSymbol, []model.Diagnostic, error) {
	// The whole crate source root is scanned; per-crate include patterns
	// would go here if the crate entry carried them.
	files, err := match.Files(crateRoot, []config.PathSpec{{Include: "**/*.rs"}})
	if err != nil {
		return nil, nil, err
	}

	var diags []model.Diagnostic
	var scans []model.FileScan
	parser := scan.NewParser()
	for _, rel := range files {
		source, err := os.ReadFile(filepath.Join(crateRoot, filepath.FromSlash(rel)))
		if err != nil {
			diags = append(diags, model.Diagnostic{
				Severity: model.SeverityWarning,
				Code:     "read_skipped",
				Message:  err.Error(),
				Path:     crate.Name + "/" + rel,
				Cause:    err,
			})
			continue
		}
		fs, err := scan.File(reg, parser, source, rel)
		if err != nil {
			diags = append(diags, model.Diagnostic{
				Severity: model.SeverityWarning,
				Code:     "parse_skipped",
				Message:  err.Error(),
				Path:     crate.Name + "/" + rel,
				Cause:    err,
			})
			continue
		}
		scans = append(scans, fs)
	}

	tree := modtree.Build(scans)
	symbols, err := tree.Resolve(scans)
	if err != nil {
		return nil, diags, err
	}

	prefix := crate.Prefix
	if prefix == "" {
		prefix = crate.Name
	}
	for i := range symbols {
		symbols[i].Crate = crate.Name
		if !symbols[i].Overridden {
			symbols[i].Path = prefix + "::" + symbols[i].Path
		}
	}

	return symbols, diags, nil
}

// locateCrate resolves the source root for an external crate, or "" when the
// crate cannot be found anywhere.
func locateCrate(root string, crate config.CrateSpec) string {
	candidates := make([]string, 0, len(crateSearchDirs)+1)
	if crate.Root != "" {
		candidates = append(candidates, crate.Root)
	} else {
		for _, dir := range crateSearchDirs {
			candidates = append(candidates, filepath.FromSlash(fmt.Sprintf(dir, crate.Name)))
		}
	}

	for _, candidate := range candidates {
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(root, candidate)
		}
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	return ""
}
