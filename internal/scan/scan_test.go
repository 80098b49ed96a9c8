package scan

import (
	"strings"
	"testing"

	"github.com/domenicquirl/utoipauto/internal/config"
	"github.com/domenicquirl/utoipauto/internal/model"
)

func setup(t *testing.T) func(source string) model.FileScan {
	t.Helper()
	reg := DefaultRegistry(config.Default())
	return func(source string) model.FileScan {
		p := NewParser()
		fs, err := File(reg, p, []byte(source), "test.rs")
		if err != nil {
			t.Fatalf("File: %v", err)
		}
		return fs
	}
}

func TestEndpointAttribute(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract(`
#[utoipa::path(get, path = "/users")]
pub fn list_users() {}
`)
	if len(fs.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d: %+v", len(fs.Hits), fs.Hits)
	}
	h := fs.Hits[0]
	if h.Kind != model.Endpoint {
		t.Errorf("kind = %q, want endpoint", h.Kind)
	}
	if h.Name != "list_users" {
		t.Errorf("name = %q, want list_users", h.Name)
	}
	if h.Override != "" {
		t.Errorf("override = %q, want empty", h.Override)
	}
}

func TestBareEndpointAttribute(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract("#[utoipa]\npub fn route_custom() {}\n")
	if len(fs.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(fs.Hits))
	}
	if fs.Hits[0].Name != "route_custom" {
		t.Errorf("name = %q, want route_custom", fs.Hits[0].Name)
	}
}

func TestUnmarkedFunctionIgnored(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract("#[inline]\npub fn helper() {}\n\npub fn plain() {}\n")
	if len(fs.Hits) != 0 {
		t.Fatalf("expected 0 hits, got %+v", fs.Hits)
	}
}

func TestSchemaDerive(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract(`
#[derive(Debug, Serialize, ToSchema)]
pub struct Widget {
    id: u64,
}
`)
	if len(fs.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d: %+v", len(fs.Hits), fs.Hits)
	}
	h := fs.Hits[0]
	if h.Kind != model.Schema {
		t.Errorf("kind = %q, want schema", h.Kind)
	}
	if h.Name != "Widget" {
		t.Errorf("name = %q, want Widget", h.Name)
	}
}

func TestQualifiedDeriveAndResponse(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract(`
#[derive(utoipa::ToSchema)]
pub enum Status {
    Ok,
    Gone,
}

#[derive(utoipa::ToResponse)]
pub struct NotFound;
`)
	if len(fs.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %d: %+v", len(fs.Hits), fs.Hits)
	}
	if fs.Hits[0].Kind != model.Schema || fs.Hits[0].Name != "Status" {
		t.Errorf("hit 0 = %+v, want schema Status", fs.Hits[0])
	}
	if fs.Hits[1].Kind != model.Response || fs.Hits[1].Name != "NotFound" {
		t.Errorf("hit 1 = %+v, want response NotFound", fs.Hits[1])
	}
}

func TestGenericTypeSkipped(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract(`
#[derive(ToSchema)]
pub struct Page<T> {
    items: Vec<T>,
}
`)
	if len(fs.Hits) != 0 {
		t.Fatalf("generic type should be skipped, got %+v", fs.Hits)
	}
}

func TestIgnoreAttribute(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract(`
#[utoipa_ignore]
#[utoipa::path(get, path = "/internal")]
pub fn internal_route() {}

#[derive(ToSchema)]
#[utoipa_ignore]
pub struct Hidden;
`)
	if len(fs.Hits) != 0 {
		t.Fatalf("ignored declarations should yield no hits, got %+v", fs.Hits)
	}
}

func TestOverridePath(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract(`
#[utoipa::path(get, register = "/custom/path")]
pub fn relocated() {}
`)
	if len(fs.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(fs.Hits))
	}
	if fs.Hits[0].Override != "/custom/path" {
		t.Errorf("override = %q, want /custom/path", fs.Hits[0].Override)
	}
}

func TestInlineModuleNesting(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract(`
mod api {
    mod v2 {
        #[utoipa]
        pub fn nested_route() {}
    }
}
`)
	if len(fs.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(fs.Hits))
	}
	h := fs.Hits[0]
	if want := []string{"api", "v2"}; !equalSegments(h.Modules, want) {
		t.Errorf("modules = %v, want %v", h.Modules, want)
	}
}

func TestModDeclarations(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract(`
pub mod users;

#[path = "legacy/accounts.rs"]
mod accounts;
`)
	if len(fs.Mods) != 2 {
		t.Fatalf("expected 2 mod decls, got %d: %+v", len(fs.Mods), fs.Mods)
	}
	if fs.Mods[0].Name != "users" || fs.Mods[0].PathOverride != "" {
		t.Errorf("mod 0 = %+v", fs.Mods[0])
	}
	if fs.Mods[1].Name != "accounts" || fs.Mods[1].PathOverride != "legacy/accounts.rs" {
		t.Errorf("mod 1 = %+v", fs.Mods[1])
	}
}

func TestReExportAliases(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract(`
pub use crate::internal::widget as public_widget;
pub use models::Widget;
use private::thing as hidden;
`)
	if len(fs.Aliases) != 2 {
		t.Fatalf("expected 2 aliases, got %d: %+v", len(fs.Aliases), fs.Aliases)
	}
	a := fs.Aliases[0]
	if a.Name != "public_widget" {
		t.Errorf("alias name = %q", a.Name)
	}
	if want := []string{"internal", "widget"}; !equalSegments(a.Target, want) {
		t.Errorf("alias target = %v, want %v", a.Target, want)
	}
	b := fs.Aliases[1]
	if b.Name != "Widget" || !equalSegments(b.Target, []string{"models", "Widget"}) {
		t.Errorf("plain re-export = %+v", b)
	}
}

func TestImplTraitHit(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract(`
pub struct Custom;

impl ToSchema for Custom {
}
`)
	if len(fs.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d: %+v", len(fs.Hits), fs.Hits)
	}
	h := fs.Hits[0]
	if h.Kind != model.Schema || h.Name != "Custom" {
		t.Errorf("hit = %+v, want schema Custom", h)
	}
}

func TestSyntaxErrorFailsFile(t *testing.T) {
	t.Parallel()
	reg := DefaultRegistry(config.Default())
	p := NewParser()

	_, err := File(reg, p, []byte("pub fn broken( {"), "broken.rs")
	if err == nil {
		t.Fatal("expected parse error for malformed source")
	}
	if !strings.Contains(err.Error(), "broken.rs") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestEmptySource(t *testing.T) {
	t.Parallel()
	extract := setup(t)

	fs := extract("")
	if len(fs.Hits) != 0 || len(fs.Mods) != 0 || len(fs.Aliases) != 0 {
		t.Errorf("empty source should extract nothing: %+v", fs)
	}
}

func TestCustomAttributeNames(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.FnAttribute = "handler"
	reg := DefaultRegistry(cfg)
	p := NewParser()

	fs, err := File(reg, p, []byte("#[handler]\npub fn route_custom() {}\n"), "test.rs")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if len(fs.Hits) != 1 || fs.Hits[0].Name != "route_custom" {
		t.Fatalf("expected route_custom hit, got %+v", fs.Hits)
	}

	// The default name no longer matches.
	fs, err = File(reg, p, []byte("#[utoipa]\npub fn other() {}\n"), "test.rs")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if len(fs.Hits) != 0 {
		t.Fatalf("expected no hits for unregistered attribute, got %+v", fs.Hits)
	}
}

func TestParseAttribute(t *testing.T) {
	t.Parallel()
	cases := []struct {
		text string
		name string
		args string
	}{
		{`#[utoipa]`, "utoipa", ""},
		{`#[utoipa::path(get, path = "/x")]`, "utoipa::path", `get, path = "/x"`},
		{`#[derive(Debug, ToSchema)]`, "derive", "Debug, ToSchema"},
		{`#[path = "other.rs"]`, "path", `"other.rs"`},
		{`#![allow(dead_code)]`, "allow", "dead_code"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.text, func(t *testing.T) {
			t.Parallel()
			a, ok := parseAttribute(tc.text)
			if !ok {
				t.Fatalf("parseAttribute(%q) not recognized", tc.text)
			}
			if a.name != tc.name {
				t.Errorf("name = %q, want %q", a.name, tc.name)
			}
			if a.args != tc.args {
				t.Errorf("args = %q, want %q", a.args, tc.args)
			}
		})
	}
}

func equalSegments(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
