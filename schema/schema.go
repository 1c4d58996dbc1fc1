// Package schema declares the value types a caller uses to describe a
// collection's shape: which fields are materialized as generated columns,
// which are indexed or unique, and whether the runtime stamps timestamps.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// SQLType names the SQLite storage class a generated column is cast to.
type SQLType string

const (
	TypeText    SQLType = "TEXT"
	TypeInteger SQLType = "INTEGER"
	TypeReal    SQLType = "REAL"
	TypeNumeric SQLType = "NUMERIC"
	TypeBlob    SQLType = "BLOB"
	TypeBoolean SQLType = "BOOLEAN"
)

// reservedNames are column names the base table layout already owns; a
// field may not reuse one of them.
var reservedNames = map[string]bool{
	"_id": true, "body": true, "createdAt": true, "updatedAt": true,
}

// Field describes one document field a collection wants to query
// efficiently enough to materialize as a generated column.
type Field struct {
	Name     string
	JSONPath string // defaults to "$.<name>"
	Type     SQLType
	Indexed  bool
	Unique   bool
	Nullable bool
	Default  any
}

// CompoundIndex declares a multi-field index over already-indexed fields.
type CompoundIndex struct {
	Name    string
	Fields  []string
	Unique  bool
}

// TimestampPolicy controls whether the runtime stamps createdAt/updatedAt.
type TimestampPolicy struct {
	Enabled       bool
	CreatedAtName string
	UpdatedAtName string
}

// Validator lets a caller hook document validation into the collection's
// write path. Implementations may normalize T, returning the normalized
// value alongside a non-nil error on rejection.
type Validator[T any] interface {
	Validate(T) (T, error)
}

// Schema is the complete, validated description of a collection's shape.
type Schema[T any] struct {
	Fields     []Field
	Indexes    []CompoundIndex
	Timestamps TimestampPolicy
	Validate   Validator[T]
}

// Option configures a Schema during New.
type Option[T any] func(*Schema[T])

// WithIndexes attaches compound indexes to the schema.
func WithIndexes[T any](indexes ...CompoundIndex) Option[T] {
	return func(s *Schema[T]) { s.Indexes = append(s.Indexes, indexes...) }
}

// WithTimestamps enables createdAt/updatedAt stamping, optionally renaming
// the default field names.
func WithTimestamps[T any](createdAtName, updatedAtName string) Option[T] {
	return func(s *Schema[T]) {
		s.Timestamps = TimestampPolicy{
			Enabled:       true,
			CreatedAtName: createdAtName,
			UpdatedAtName: updatedAtName,
		}
	}
}

// WithValidator attaches a document validator.
func WithValidator[T any](v Validator[T]) Option[T] {
	return func(s *Schema[T]) { s.Validate = v }
}

// New validates fields and options and returns an immutable Schema.
//
// Grounded on the teacher's ValidateIdentifier/ValidateTableName build-time
// checks (api/database/errors.go), generalized from "valid SQLite
// identifier" to "valid document field declaration".
func New[T any](fields []Field, opts ...Option[T]) (Schema[T], error) {
	s := Schema[T]{Fields: append([]Field(nil), fields...)}
	for _, opt := range opts {
		opt(&s)
	}
	if s.Timestamps.CreatedAtName == "" {
		s.Timestamps.CreatedAtName = "createdAt"
	}
	if s.Timestamps.UpdatedAtName == "" {
		s.Timestamps.UpdatedAtName = "updatedAt"
	}

	seen := make(map[string]bool, len(s.Fields))
	indexedFields := make(map[string]bool, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == "" {
			return Schema[T]{}, fmt.Errorf("schema: field %d has an empty name", i)
		}
		if reservedNames[f.Name] {
			return Schema[T]{}, fmt.Errorf("schema: field %q collides with a reserved column name", f.Name)
		}
		if seen[f.Name] {
			return Schema[T]{}, fmt.Errorf("schema: duplicate field name %q", f.Name)
		}
		seen[f.Name] = true

		if f.JSONPath == "" {
			f.JSONPath = "$." + f.Name
		}
		if f.Type == "" {
			f.Type = TypeText
		}
		if f.Unique && !f.Indexed {
			return Schema[T]{}, fmt.Errorf("schema: field %q is unique but not indexed", f.Name)
		}
		if f.Indexed {
			if reservedNames["_"+f.Name] {
				return Schema[T]{}, fmt.Errorf("schema: field %q would generate column %q, which collides with a reserved column name", f.Name, "_"+f.Name)
			}
			indexedFields[f.Name] = true
		}
	}

	indexNames := make(map[string]bool, len(s.Indexes))
	for _, idx := range s.Indexes {
		if idx.Name == "" {
			return Schema[T]{}, fmt.Errorf("schema: compound index has an empty name")
		}
		if indexNames[idx.Name] {
			return Schema[T]{}, fmt.Errorf("schema: duplicate compound index name %q", idx.Name)
		}
		indexNames[idx.Name] = true
		if len(idx.Fields) < 2 {
			return Schema[T]{}, fmt.Errorf("schema: compound index %q needs at least 2 fields", idx.Name)
		}
		for _, fieldName := range idx.Fields {
			if !indexedFields[fieldName] {
				return Schema[T]{}, fmt.Errorf("schema: compound index %q references field %q, which is not indexed", idx.Name, fieldName)
			}
		}
	}

	return s, nil
}

// Equal reports whether two schemas describe the same shape, independent
// of field/index declaration order. It backs the Database registry's rule
// that a second registration under the same name must match the first.
func (s Schema[T]) Equal(other Schema[T]) bool {
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	a := append([]Field(nil), s.Fields...)
	b := append([]Field(nil), other.Fields...)
	sort.Slice(a, func(i, j int) bool { return a[i].Name < a[j].Name })
	sort.Slice(b, func(i, j int) bool { return b[i].Name < b[j].Name })
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	if len(s.Indexes) != len(other.Indexes) {
		return false
	}
	ai := append([]CompoundIndex(nil), s.Indexes...)
	bi := append([]CompoundIndex(nil), other.Indexes...)
	sort.Slice(ai, func(i, j int) bool { return ai[i].Name < ai[j].Name })
	sort.Slice(bi, func(i, j int) bool { return bi[i].Name < bi[j].Name })
	for i := range ai {
		if ai[i].Name != bi[i].Name || ai[i].Unique != bi[i].Unique {
			return false
		}
		if strings.Join(ai[i].Fields, ",") != strings.Join(bi[i].Fields, ",") {
			return false
		}
	}

	return s.Timestamps == other.Timestamps
}

// IndexedFields returns the names of all fields with Indexed set.
func (s Schema[T]) IndexedFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Indexed {
			out = append(out, f.Name)
		}
	}
	return out
}

// FieldByName looks up a declared field by name.
func (s Schema[T]) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
