package model

import "strings"

// FieldKind describes how values of a canonical field are compared.
type FieldKind string

const (
	KindText      FieldKind = "text"
	KindEmail     FieldKind = "email"
	KindPhone     FieldKind = "phone"
	KindCurrency  FieldKind = "currency"
	KindDate      FieldKind = "date"
	KindReference FieldKind = "reference"
)

// ParseFieldKind converts a string to a FieldKind. Unknown values map to
// KindText and ok=false.
func ParseFieldKind(s string) (FieldKind, bool) {
	switch k := FieldKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindText, KindEmail, KindPhone, KindCurrency, KindDate, KindReference:
		return k, true
	}
	return KindText, false
}

// Typed reports whether values of this kind are normalized before lookup.
func (k FieldKind) Typed() bool {
	switch k {
	case KindEmail, KindPhone, KindCurrency, KindDate:
		return true
	}
	return false
}

// NeedsValueResolution reports whether the values of a column with this kind
// are worth resolving against learned value patterns.
func (k FieldKind) NeedsValueResolution() bool {
	return k == KindReference
}

// EntityField is a canonical field of an import entity.
type EntityField struct {
	Name     string    `json:"name" yaml:"name"`
	Kind     FieldKind `json:"kind" yaml:"kind"`
	Required bool      `json:"required,omitempty" yaml:"required,omitempty"`
}

// EntitySchema is the canonical shape of one import target (e.g. "clients").
type EntitySchema struct {
	Name   string        `json:"name" yaml:"name"`
	Fields []EntityField `json:"fields" yaml:"fields"`
}

// SchemaRegistry is an indexed collection of entity schemas.
type SchemaRegistry struct {
	Entities []EntitySchema
	byName   map[string]*EntitySchema
	kinds    map[string]map[string]FieldKind
}

// NewSchemaRegistry creates a SchemaRegistry with indexed lookups. Later
// entries with the same entity name replace earlier ones.
func NewSchemaRegistry(entities []EntitySchema) *SchemaRegistry {
	r := &SchemaRegistry{
		byName: make(map[string]*EntitySchema, len(entities)),
		kinds:  make(map[string]map[string]FieldKind, len(entities)),
	}
	seen := make(map[string]int, len(entities))
	for _, e := range entities {
		if i, dup := seen[e.Name]; dup {
			r.Entities[i] = e
			continue
		}
		seen[e.Name] = len(r.Entities)
		r.Entities = append(r.Entities, e)
	}
	for i := range r.Entities {
		e := &r.Entities[i]
		r.byName[e.Name] = e
		kinds := make(map[string]FieldKind, len(e.Fields))
		for _, f := range e.Fields {
			kinds[f.Name] = f.Kind
		}
		r.kinds[e.Name] = kinds
	}
	return r
}

// Entity returns the schema for the named entity, or nil if unknown.
func (r *SchemaRegistry) Entity(name string) *EntitySchema {
	if r == nil {
		return nil
	}
	return r.byName[name]
}

// KindOf returns the kind of a field. Fields the registry does not know are
// treated as references, which are matched on their raw text.
func (r *SchemaRegistry) KindOf(entity, field string) FieldKind {
	if r == nil {
		return KindReference
	}
	if k, ok := r.kinds[entity][field]; ok {
		return k
	}
	return KindReference
}

// HasField reports whether the entity defines the field.
func (r *SchemaRegistry) HasField(entity, field string) bool {
	if r == nil {
		return false
	}
	_, ok := r.kinds[entity][field]
	return ok
}

// ValueFields returns the fields of an entity whose values are resolved
// against learned value patterns.
func (r *SchemaRegistry) ValueFields(entity string) []string {
	e := r.Entity(entity)
	if e == nil {
		return nil
	}
	var out []string
	for _, f := range e.Fields {
		if f.Kind.NeedsValueResolution() {
			out = append(out, f.Name)
		}
	}
	return out
}
