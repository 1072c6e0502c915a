package resource

import (
	"fmt"
	"strings"

	"github.com/wardenhq/warden/internal"
)

// FieldKind is the closed set of field types the engine understands.
type FieldKind string

const (
	KindText        FieldKind = "text"
	KindTextarea    FieldKind = "textarea"
	KindBoolean     FieldKind = "boolean"
	KindSelect      FieldKind = "select"
	KindMultiselect FieldKind = "multiselect"
	KindRadio       FieldKind = "radio"
	KindCheckbox    FieldKind = "checkbox"
	KindFile        FieldKind = "file"
	KindPassword    FieldKind = "password"
	KindEmail       FieldKind = "email"
	KindNumber      FieldKind = "number"
)

var validKinds = map[FieldKind]bool{
	KindText: true, KindTextarea: true, KindBoolean: true,
	KindSelect: true, KindMultiselect: true, KindRadio: true,
	KindCheckbox: true, KindFile: true, KindPassword: true,
	KindEmail: true, KindNumber: true,
}

// Field is a compiled field definition.
type Field struct {
	Key          string
	Label        string
	Kind         FieldKind
	Rules        []string
	Searchable   bool
	Sortable     bool
	Relationship *internal.RelationshipConfig
}

// IsRelationship reports whether the field is backed by a join table
// rather than a column on the resource's own table.
func (f *Field) IsRelationship() bool {
	return f.Relationship != nil
}

// IsMultiValued reports whether the field carries a set of related IDs
// synced against a join table.
func (f *Field) IsMultiValued() bool {
	if !f.IsRelationship() {
		return false
	}
	return f.Kind == KindMultiselect || f.Kind == KindCheckbox
}

// Schema is one resource's compiled configuration.
type Schema struct {
	Key      string
	Title    string
	Table    string
	Roles    []string
	Readonly []string
	Search   []string
	Fields   []Field
}

// CanView reports whether any of the caller's roles may see the
// resource. An empty access list opens the resource to every
// authenticated caller; readonly roles can view.
func (s *Schema) CanView(roleSlugs []string) bool {
	if len(s.Roles) == 0 {
		return true
	}
	for _, slug := range roleSlugs {
		if contains(s.Roles, slug) || contains(s.Readonly, slug) {
			return true
		}
	}
	return false
}

// CanMutate reports whether the caller may create, update, or delete.
// A role listed as readonly never grants mutation, even when it also
// appears in the access list.
func (s *Schema) CanMutate(roleSlugs []string) bool {
	for _, slug := range roleSlugs {
		if contains(s.Readonly, slug) {
			continue
		}
		if len(s.Roles) == 0 || contains(s.Roles, slug) {
			return true
		}
	}
	return false
}

// FieldByKey returns the field definition, or nil for unknown keys.
func (s *Schema) FieldByKey(key string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Key == key {
			return &s.Fields[i]
		}
	}
	return nil
}

// SearchColumns is the union of the config-level search list and every
// field flagged searchable, deduplicated in declaration order.
func (s *Schema) SearchColumns() []string {
	var cols []string
	seen := map[string]bool{}
	for _, col := range s.Search {
		if !seen[col] {
			seen[col] = true
			cols = append(cols, col)
		}
	}
	for _, f := range s.Fields {
		if f.Searchable && !f.IsRelationship() && !seen[f.Key] {
			seen[f.Key] = true
			cols = append(cols, f.Key)
		}
	}
	return cols
}

// Sortable reports whether the field may be used as a sort key.
func (s *Schema) Sortable(key string) bool {
	f := s.FieldByKey(key)
	return f != nil && f.Sortable && !f.IsRelationship()
}

// Registry holds every compiled resource schema, keyed by resource key.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry compiles the raw dashboard configuration. Unknown field
// types and relationship fields missing join metadata are rejected at
// startup rather than at request time.
func NewRegistry(configs map[string]internal.ResourceConfig) (*Registry, error) {
	schemas := make(map[string]*Schema, len(configs))
	for key, cfg := range configs {
		schema, err := compile(key, cfg)
		if err != nil {
			return nil, err
		}
		schemas[key] = schema
	}
	return &Registry{schemas: schemas}, nil
}

// Lookup resolves a resource key, returning a NOT_FOUND error for
// unknown keys.
func (r *Registry) Lookup(key string) (*Schema, error) {
	schema, exists := r.schemas[key]
	if !exists {
		return nil, internal.NewNotFoundError(
			fmt.Sprintf("Resource %q is not configured", key),
			internal.ErrCodeResourceNotFound)
	}
	return schema, nil
}

func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.schemas))
	for key := range r.schemas {
		keys = append(keys, key)
	}
	return keys
}

func compile(key string, cfg internal.ResourceConfig) (*Schema, error) {
	title := cfg.Title
	if title == "" {
		title = Labelize(key)
	}

	schema := &Schema{
		Key:      key,
		Title:    title,
		Table:    cfg.Table,
		Roles:    cfg.Roles,
		Readonly: cfg.Readonly,
		Search:   cfg.Search,
		Fields:   make([]Field, 0, len(cfg.Fields)),
	}

	for _, fc := range cfg.Fields {
		kind := FieldKind(fc.Type)
		if fc.Type == "" {
			kind = KindText
		}
		if !validKinds[kind] {
			return nil, fmt.Errorf("resource %q: field %q has unknown type %q", key, fc.Key, fc.Type)
		}

		if fc.Relationship != nil {
			rel := fc.Relationship
			if rel.JoinTable == "" || rel.ForeignKey == "" || rel.RelatedKey == "" || rel.RelatedTable == "" {
				return nil, fmt.Errorf("resource %q: field %q has incomplete relationship config", key, fc.Key)
			}
			if rel.LabelColumn == "" {
				rel.LabelColumn = "name"
			}
		}

		label := fc.Label
		if label == "" {
			label = Labelize(fc.Key)
		}

		schema.Fields = append(schema.Fields, Field{
			Key:          fc.Key,
			Label:        label,
			Kind:         kind,
			Rules:        fc.Rules,
			Searchable:   fc.Searchable,
			Sortable:     fc.Sortable,
			Relationship: fc.Relationship,
		})
	}

	return schema, nil
}

// Labelize turns a snake_case column key into a display label:
// "published_at" becomes "Published At".
func Labelize(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
