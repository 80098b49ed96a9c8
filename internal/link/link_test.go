package link

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/domenicquirl/utoipauto/internal/config"
	"github.com/domenicquirl/utoipauto/internal/model"
	"github.com/domenicquirl/utoipauto/internal/scan"
)

func TestMergeExternalCrate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "crates/other_crate/src/models.rs", `
#[derive(ToSchema)]
pub struct Widget {
    id: u64,
}
`)

	reg := scan.DefaultRegistry(config.Default())
	crates := []config.CrateSpec{{Name: "other_crate", Prefix: "external"}}

	res, err := Merge(root, nil, crates, reg)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(res.Symbols) != 1 {
		t.Fatalf("expected 1 symbol, got %+v", res.Symbols)
	}
	sym := res.Symbols[0]
	if sym.Path != "external::models::Widget" {
		t.Errorf("path = %q, want external::models::Widget", sym.Path)
	}
	if sym.Crate != "other_crate" {
		t.Errorf("crate = %q, want other_crate", sym.Crate)
	}
}

func TestMergeDefaultPrefixIsCrateName(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "vendor/utility/src/lib.rs", `
#[utoipa]
pub fn shared_route() {}
`)

	reg := scan.DefaultRegistry(config.Default())
	crates := []config.CrateSpec{{Name: "utility", Prefix: "utility"}}

	res, err := Merge(root, nil, crates, reg)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(res.Symbols) != 1 || res.Symbols[0].Path != "utility::shared_route" {
		t.Fatalf("symbols = %+v, want utility::shared_route", res.Symbols)
	}
}

func TestMergeMissingCrateContributesNothing(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	local := []model.ResolvedSymbol{{Kind: model.Endpoint, Path: "api::route"}}
	crates := []config.CrateSpec{{Name: "ghost", Prefix: "ghost"}}

	res, err := Merge(root, local, crates, scan.DefaultRegistry(config.Default()))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(res.Symbols) != 1 {
		t.Errorf("symbols = %+v, want local only", res.Symbols)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Code != "crate_not_found" {
		t.Errorf("diagnostics = %+v, want crate_not_found warning", res.Diagnostics)
	}
}

func TestMergeExplicitRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	elsewhere := t.TempDir()
	writeFile(t, elsewhere, "api.rs", "#[utoipa]\npub fn elsewhere_route() {}\n")

	reg := scan.DefaultRegistry(config.Default())
	crates := []config.CrateSpec{{Name: "other", Prefix: "other", Root: elsewhere}}

	res, err := Merge(root, nil, crates, reg)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(res.Symbols) != 1 || res.Symbols[0].Path != "other::api::elsewhere_route" {
		t.Fatalf("symbols = %+v", res.Symbols)
	}
}

func TestMergeDeduplicates(t *testing.T) {
	t.Parallel()

	local := []model.ResolvedSymbol{
		{Kind: model.Endpoint, Path: "api::route", FileIndex: 0},
		{Kind: model.Endpoint, Path: "api::route", FileIndex: 1},
		{Kind: model.Schema, Path: "api::route", FileIndex: 2},
	}

	res, err := Merge(t.TempDir(), local, nil, scan.DefaultRegistry(config.Default()))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(res.Symbols) != 2 {
		t.Errorf("symbols = %+v, want dedup to 2 (one per kind)", res.Symbols)
	}
}

func TestMergeUnparseableCrateFileSkipped(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "crates/broken/src/bad.rs", "pub fn broken( {")
	writeFile(t, root, "crates/broken/src/good.rs", "#[utoipa]\npub fn ok_route() {}\n")

	reg := scan.DefaultRegistry(config.Default())
	res, err := Merge(root, nil, []config.CrateSpec{{Name: "broken", Prefix: "broken"}}, reg)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(res.Symbols) != 1 || res.Symbols[0].Path != "broken::good::ok_route" {
		t.Errorf("symbols = %+v", res.Symbols)
	}
	found := false
	for _, d := range res.Diagnostics {
		if d.Code == "parse_skipped" {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want parse_skipped", res.Diagnostics)
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
