package query

// SortKey orders results by one field.
type SortKey struct {
	Field string
	Desc  bool
}

// SearchOpt adds a substring search across Fields to a Find or Search
// call; it is ANDed with the call's filter.
type SearchOpt struct {
	Text          string
	Fields        []string
	CaseSensitive bool
}

// CursorOpt requests keyset pagination relative to an opaque cursor value
// produced by a previous page.
type CursorOpt struct {
	After  *string
	Before *string
}

// Options modifies a Find/Search call: sorting, pagination, and
// projection.
type Options struct {
	Sort   []SortKey
	Limit  *int
	Skip   *int
	Select []string
	Omit   []string
	Search *SearchOpt
	Cursor *CursorOpt
}

func IntPtr(n int) *int          { return &n }
func StringPtr(s string) *string { return &s }

// FilterOrID is the small sum type behind the "bare id or full filter"
// convention used by FindOne/UpdateOne/ReplaceOne/DeleteOne and their
// FindOneAnd* variants.
type FilterOrID struct {
	id     string
	filter Filter
	byID   bool
}

// ByID builds a FilterOrID that targets a single document by id.
func ByID(id string) FilterOrID { return FilterOrID{id: id, byID: true} }

// Where builds a FilterOrID from a full Filter.
func Where(f Filter) FilterOrID { return FilterOrID{filter: f} }

// Normalize returns the equivalent Filter, converting a bare id into
// Field{Name: "_id", Op: Cmp{Eq, id}}.
func (f FilterOrID) Normalize() Filter {
	if f.byID {
		return Field{Name: "_id", Op: Cmp{Op: OpEq, Value: f.id}}
	}
	if f.filter == nil {
		return Empty{}
	}
	return f.filter
}

// IsByID reports whether this FilterOrID was built with ByID, and returns
// the id if so. Collection runtimes use this to take the primary-key fast
// path without re-deriving it from the normalized Filter.
func (f FilterOrID) IsByID() (string, bool) {
	return f.id, f.byID
}
