// Package config parses the utoipauto invocation configuration, either from
// the attribute-string form used at the macro call site or from a TOML file.
package config

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Error reports a malformed configuration value. Configuration errors are
// fatal: the pass aborts without emitting a manifest.
type Error struct {
	Field  string
	Detail string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "config: " + e.Detail
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Detail)
}

// PathSpec is one include glob with an optional paired exclude glob.
type PathSpec struct {
	Include string
	Exclude string
}

// CrateSpec names an external crate whose sources are scanned in addition to
// the local tree.
type CrateSpec struct {
	Name string
	// Prefix replaces the crate-name segment in contributed paths.
	// Defaults to Name.
	Prefix string
	// Root, when set, points at the crate's source root directory and skips
	// the default search locations.
	Root string
}

// Config is the full invocation configuration for one pass.
type Config struct {
	Paths  []PathSpec
	Crates []CrateSpec

	// Marker attribute names. Declarations are matched syntactically against
	// these; argument payloads are not interpreted beyond the override path.
	FnAttribute       string
	SchemaAttribute   string
	ResponseAttribute string
}

// DefaultFnAttribute matches both `#[utoipa]` and `#[utoipa::path(...)]`.
const (
	DefaultFnAttribute       = "utoipa"
	DefaultSchemaAttribute   = "ToSchema"
	DefaultResponseAttribute = "ToResponse"
	DefaultPathPattern       = "src/**/*.rs"
)

// Default returns the configuration used when no config string or file is
// supplied: scan src/**/*.rs with the standard utoipa marker names.
func Default() Config {
	return Config{
		Paths:             []PathSpec{{Include: DefaultPathPattern}},
		FnAttribute:       DefaultFnAttribute,
		SchemaAttribute:   DefaultSchemaAttribute,
		ResponseAttribute: DefaultResponseAttribute,
	}
}

// ParseString parses the attribute-string configuration form:
//
//	paths = "src/**/*.rs !src/internal/*.rs, api/**/*.rs",
//	include_crates = "other_crate from external, utility",
//	fn_attribute_name = "handler"
//
// Fields are comma-separated `key = "value"` pairs; commas inside quoted
// values do not split fields.
func ParseString(s string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(s) == "" {
		return cfg, nil
	}

	fields, err := splitTopLevel(s)
	if err != nil {
		return Config{}, err
	}

	for _, field := range fields {
		key, value, err := parseField(field)
		if err != nil {
			return Config{}, err
		}
		switch key {
		case "paths":
			specs, err := ParsePaths(value)
			if err != nil {
				return Config{}, err
			}
			cfg.Paths = specs
		case "include_crates":
			crates, err := ParseCrates(value)
			if err != nil {
				return Config{}, err
			}
			cfg.Crates = crates
		case "fn_attribute_name":
			cfg.FnAttribute = value
		case "schema_attribute_name":
			cfg.SchemaAttribute = value
		case "response_attribute_name":
			cfg.ResponseAttribute = value
		default:
			return Config{}, &Error{Field: key, Detail: "unknown field"}
		}
	}

	return cfg, nil
}

// ParsePaths parses a comma-separated list of include globs, each optionally
// followed by a `!`-prefixed exclude glob.
func ParsePaths(value string) ([]PathSpec, error) {
	var specs []PathSpec
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, &Error{Field: "paths", Detail: "empty entry"}
		}
		tokens := strings.Fields(entry)
		spec := PathSpec{Include: tokens[0]}
		switch {
		case len(tokens) == 1:
		case len(tokens) == 2 && strings.HasPrefix(tokens[1], "!"):
			spec.Exclude = strings.TrimPrefix(tokens[1], "!")
			if spec.Exclude == "" {
				return nil, &Error{Field: "paths", Detail: fmt.Sprintf("empty exclude in %q", entry)}
			}
		default:
			return nil, &Error{Field: "paths", Detail: fmt.Sprintf("malformed entry %q (want \"include\" or \"include !exclude\")", entry)}
		}
		if strings.HasPrefix(spec.Include, "!") {
			return nil, &Error{Field: "paths", Detail: fmt.Sprintf("entry %q starts with exclude pattern", entry)}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ParseCrates parses a comma-separated list of external crate entries, each
// `<name>` or `<name> from <prefix>`.
func ParseCrates(value string) ([]CrateSpec, error) {
	var crates []CrateSpec
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return nil, &Error{Field: "include_crates", Detail: "empty entry"}
		}
		tokens := strings.Fields(entry)
		switch {
		case len(tokens) == 1:
			crates = append(crates, CrateSpec{Name: tokens[0], Prefix: tokens[0]})
		case len(tokens) == 3 && tokens[1] == "from":
			crates = append(crates, CrateSpec{Name: tokens[0], Prefix: tokens[2]})
		default:
			return nil, &Error{Field: "include_crates", Detail: fmt.Sprintf("malformed entry %q (want \"name\" or \"name from prefix\")", entry)}
		}
	}
	return crates, nil
}

// fileConfig mirrors Config for the TOML file form.
type fileConfig struct {
	Paths         []string `toml:"paths"`
	IncludeCrates []string `toml:"include_crates"`
	Attributes    struct {
		Function string `toml:"function"`
		Schema   string `toml:"schema"`
		Response string `toml:"response"`
	} `toml:"attributes"`
	Crates map[string]struct {
		Root   string `toml:"root"`
		Prefix string `toml:"prefix"`
	} `toml:"crates"`
}

// LoadFile reads a TOML configuration file. Fields carry the same syntax as
// the attribute-string form, with paths and include_crates as arrays.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{Detail: fmt.Sprintf("reading %s: %v", path, err)}
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return Config{}, &Error{Detail: fmt.Sprintf("parsing %s: %v", path, err)}
	}

	cfg := Default()
	if len(fc.Paths) > 0 {
		cfg.Paths = nil
		for _, entry := range fc.Paths {
			specs, err := ParsePaths(entry)
			if err != nil {
				return Config{}, err
			}
			cfg.Paths = append(cfg.Paths, specs...)
		}
	}
	for _, entry := range fc.IncludeCrates {
		crates, err := ParseCrates(entry)
		if err != nil {
			return Config{}, err
		}
		cfg.Crates = append(cfg.Crates, crates...)
	}
	if fc.Attributes.Function != "" {
		cfg.FnAttribute = fc.Attributes.Function
	}
	if fc.Attributes.Schema != "" {
		cfg.SchemaAttribute = fc.Attributes.Schema
	}
	if fc.Attributes.Response != "" {
		cfg.ResponseAttribute = fc.Attributes.Response
	}
	for name, over := range fc.Crates {
		found := false
		for i := range cfg.Crates {
			if cfg.Crates[i].Name != name {
				continue
			}
			found = true
			if over.Root != "" {
				cfg.Crates[i].Root = over.Root
			}
			if over.Prefix != "" {
				cfg.Crates[i].Prefix = over.Prefix
			}
		}
		if !found {
			return Config{}, &Error{Field: "crates", Detail: fmt.Sprintf("%s overridden but not listed in include_crates", name)}
		}
	}

	return cfg, nil
}

// splitTopLevel splits the config string on commas that are not inside
// double-quoted values.
func splitTopLevel(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == ',' && !inQuote:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, &Error{Detail: "unterminated quoted value"}
	}
	if strings.TrimSpace(cur.String()) != "" {
		fields = append(fields, cur.String())
	}
	return fields, nil
}

// parseField parses one `key = "value"` pair.
func parseField(field string) (key, value string, err error) {
	key, rest, ok := strings.Cut(field, "=")
	if !ok {
		return "", "", &Error{Detail: fmt.Sprintf("malformed field %q (want key = \"value\")", strings.TrimSpace(field))}
	}
	key = strings.TrimSpace(key)
	rest = strings.TrimSpace(rest)
	if key == "" {
		return "", "", &Error{Detail: "empty field name"}
	}
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", "", &Error{Field: key, Detail: "value must be double-quoted"}
	}
	return key, rest[1 : len(rest)-1], nil
}
