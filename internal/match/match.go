// Package match expands include/exclude glob patterns into the set of source
// files a pass will scan.
package match

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/domenicquirl/utoipauto/internal/config"
)

// skipDirs are never descended into regardless of patterns.
var skipDirs = map[string]struct{}{
	".git":   {},
	"target": {},
}

// Files returns the files under root selected by specs: the union of all
// include matches minus the union of all exclude matches. Paths are relative
// to root, slash-separated, and sorted ascending so that traversal order is
// stable across runs.
func Files(root string, specs []config.PathSpec) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &config.Error{Field: "root", Detail: fmt.Sprintf("%s: %v", root, err)}
	}
	if !info.IsDir() {
		return nil, &config.Error{Field: "root", Detail: fmt.Sprintf("%s: not a directory", root)}
	}

	var includes, excludes []string
	for _, spec := range specs {
		if err := validatePattern(spec.Include); err != nil {
			return nil, err
		}
		includes = append(includes, spec.Include)
		if spec.Exclude != "" {
			if err := validatePattern(spec.Exclude); err != nil {
				return nil, err
			}
			excludes = append(excludes, spec.Exclude)
		}
	}
	if len(includes) == 0 {
		return nil, &config.Error{Field: "paths", Detail: "no include patterns"}
	}

	// gitignore pattern compilation gives glob semantics with `**` recursion.
	// A path "matching the ignore set" here means it is selected.
	includeSet := ignore.CompileIgnoreLines(includes...)
	var excludeSet *ignore.GitIgnore
	if len(excludes) > 0 {
		excludeSet = ignore.CompileIgnoreLines(excludes...)
	}

	var results []string

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if !includeSet.MatchesPath(rel) {
			return nil
		}
		if excludeSet != nil && excludeSet.MatchesPath(rel) {
			return nil
		}

		results = append(results, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)

	return results, nil
}

// validatePattern rejects patterns the matcher cannot express. Compilation
// itself never fails, so structural problems are caught up front.
func validatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return &config.Error{Field: "paths", Detail: "empty pattern"}
	}
	if strings.Contains(pattern, "***") {
		return &config.Error{Field: "paths", Detail: fmt.Sprintf("%q: more than two consecutive wildcards", pattern)}
	}
	depth := 0
	for _, r := range pattern {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return &config.Error{Field: "paths", Detail: fmt.Sprintf("%q: unbalanced brackets", pattern)}
			}
		}
	}
	if depth != 0 {
		return &config.Error{Field: "paths", Detail: fmt.Sprintf("%q: unbalanced brackets", pattern)}
	}
	return nil
}
