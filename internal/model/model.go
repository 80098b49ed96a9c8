// Package model defines core data structures for utoipauto.
package model

// Kind indicates which registration list a discovered declaration belongs to.
type Kind string

const (
	Endpoint Kind = "endpoint"
	Schema   Kind = "schema"
	Response Kind = "response"
)

// MarkerHit is a single marked declaration found in a source file.
type MarkerHit struct {
	Kind Kind
	// Name is the declared identifier. For impl-block hits this may already
	// contain path separators (e.g. "models::Widget").
	Name string
	// Modules is the inline `mod` nesting enclosing the declaration within
	// its file, innermost last.
	Modules []string
	// Override, when non-empty, is registered verbatim instead of the
	// resolved module path.
	Override string
	// Offset is the byte offset of the declaration, used for stable ordering
	// within a file.
	Offset uint32
}

// ModDecl is a file-level `mod name;` declaration (no inline body).
type ModDecl struct {
	Modules []string
	Name    string
	// PathOverride holds the target of a `#[path = "..."]` attribute on the
	// declaration, relative to the declaring file's directory.
	PathOverride string
}

// Alias is a `pub use path as name;` re-export edge.
type Alias struct {
	Modules []string
	Name    string
	// Target is the re-exported path, split into segments with any leading
	// `crate` segment removed.
	Target []string
}

// FileScan holds everything extracted from one parsed source file.
type FileScan struct {
	// Path is relative to the scan root, slash-separated.
	Path    string
	Hits    []MarkerHit
	Mods    []ModDecl
	Aliases []Alias
}

// ResolvedSymbol is a MarkerHit after module resolution.
type ResolvedSymbol struct {
	Kind Kind
	// Path is the fully-qualified identifier, segments joined with "::"
	// (or the override verbatim).
	Path string
	// Crate names the external crate that contributed the symbol;
	// empty for the local source tree.
	Crate string
	// Overridden marks symbols whose Path came from a marker override and
	// must not be prefixed or rewritten further.
	Overridden bool
	// FileIndex and Offset record traversal order for deterministic output.
	FileIndex int
	Offset    uint32
}

// Manifest is the final ordered, deduplicated output of a pass.
type Manifest struct {
	Endpoints []string
	Schemas   []string
	Responses []string
}

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a non-fatal problem encountered during a pass. Diagnostics
// are returned to the caller rather than written to a global sink so that a
// pass stays a pure function of its inputs.
type Diagnostic struct {
	Severity Severity
	// Code is a machine-readable identifier (e.g. "parse_skipped").
	Code    string
	Message string
	// Path is the file associated with the diagnostic, if any.
	Path  string
	Cause error
}
