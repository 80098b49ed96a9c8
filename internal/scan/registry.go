package scan

import (
	"strings"

	"github.com/domenicquirl/utoipauto/internal/config"
	"github.com/domenicquirl/utoipauto/internal/model"
)

// ignoreAttribute suppresses discovery of the declaration it is attached to.
const ignoreAttribute = "utoipa_ignore"

// Definition describes how one marker kind is recognized. Matching is purely
// syntactic: attribute and derive payloads are never evaluated beyond the
// optional override path.
type Definition struct {
	Kind model.Kind
	// Attributes match function attributes by path segment, so "utoipa"
	// recognizes both #[utoipa] and #[utoipa::path(...)].
	Attributes []string
	// Derives match identifiers inside #[derive(...)] by last path segment,
	// so "ToSchema" recognizes both ToSchema and utoipa::ToSchema.
	Derives []string
	// Traits match `impl Trait for Type` blocks by the trait's last segment.
	Traits []string
}

// Registry holds the marker definitions active for a pass. New marker kinds
// are added here without touching the resolver.
type Registry struct {
	defs []Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns the registry for the standard utoipa markers, with
// attribute names taken from the configuration.
func DefaultRegistry(cfg config.Config) *Registry {
	r := NewRegistry()
	r.Register(Definition{Kind: model.Endpoint, Attributes: []string{cfg.FnAttribute}})
	r.Register(Definition{
		Kind:    model.Schema,
		Derives: []string{cfg.SchemaAttribute},
		Traits:  []string{cfg.SchemaAttribute},
	})
	r.Register(Definition{
		Kind:    model.Response,
		Derives: []string{cfg.ResponseAttribute},
		Traits:  []string{cfg.ResponseAttribute},
	})
	return r
}

// Register adds a marker definition.
func (r *Registry) Register(def Definition) {
	r.defs = append(r.defs, def)
}

// AttributeKind reports the marker kind recognized for an attribute path,
// e.g. "utoipa::path" or "handler".
func (r *Registry) AttributeKind(attrPath string) (model.Kind, bool) {
	segments := strings.Split(attrPath, "::")
	for _, def := range r.defs {
		for _, name := range def.Attributes {
			for _, seg := range segments {
				if seg == name {
					return def.Kind, true
				}
			}
		}
	}
	return "", false
}

// DeriveKind reports the marker kind recognized for one identifier inside a
// #[derive(...)] list.
func (r *Registry) DeriveKind(ident string) (model.Kind, bool) {
	last := lastSegment(ident)
	for _, def := range r.defs {
		for _, name := range def.Derives {
			if last == name {
				return def.Kind, true
			}
		}
	}
	return "", false
}

// TraitKind reports the marker kind recognized for a trait implemented in an
// impl block.
func (r *Registry) TraitKind(trait string) (model.Kind, bool) {
	last := lastSegment(trait)
	for _, def := range r.defs {
		for _, name := range def.Traits {
			if last == name {
				return def.Kind, true
			}
		}
	}
	return "", false
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "::"); i >= 0 {
		return path[i+2:]
	}
	return path
}
