// Package query declares the closed filter/options AST a caller builds and
// the translator consumes. Construction is deliberately driver- and
// schema-free: a Filter is a plain value that can be built, compared, and
// passed around before any collection ever sees it.
package query

// Filter is the closed sum type of everything a WHERE clause can express.
type Filter interface{ isFilter() }

// Empty matches every document.
type Empty struct{}

// Field matches one named field against an operator.
type Field struct {
	Name string
	Op   FieldOp
}

// And requires every sub-filter to match.
type And struct{ Of []Filter }

// Or requires at least one sub-filter to match.
type Or struct{ Of []Filter }

// Nor requires no sub-filter to match.
type Nor struct{ Of []Filter }

// Not negates a single sub-filter.
type Not struct{ Of Filter }

func (Empty) isFilter() {}
func (Field) isFilter() {}
func (And) isFilter()   {}
func (Or) isFilter()    {}
func (Nor) isFilter()   {}
func (Not) isFilter()   {}

// CompareOp is the comparison kind carried by Cmp.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
)

// StringOp is the text-matching kind carried by Str.
type StringOp int

const (
	Like StringOp = iota
	ILike
	Contains
	StartsWith
	EndsWith
)

// FieldOp is the closed sum type of everything a Field can test.
type FieldOp interface{ isFieldOp() }

// Cmp is a single-value comparison (Eq/Ne/Gt/Gte/Lt/Lte).
type Cmp struct {
	Op    CompareOp
	Value any
}

// In matches when the field's value is a member of Values.
type In struct{ Values []any }

// NotIn matches when the field's value is not a member of Values.
type NotIn struct{ Values []any }

// Str matches text per Op.
type Str struct {
	Op    StringOp
	Value string
}

// All matches an array field that contains every value in Values.
type All struct{ Values []any }

// Size matches an array field whose length equals N.
type Size struct{ N int }

// ElemMatch matches an array field containing at least one element
// satisfying Of.
type ElemMatch struct{ Of Filter }

// Index matches array element I against Of.
type Index struct {
	I  int
	Of Filter
}

// Exist matches based on whether the field is present.
type Exist struct{ Want bool }

func (Cmp) isFieldOp()       {}
func (In) isFieldOp()        {}
func (NotIn) isFieldOp()     {}
func (Str) isFieldOp()       {}
func (All) isFieldOp()       {}
func (Size) isFieldOp()      {}
func (ElemMatch) isFieldOp() {}
func (Index) isFieldOp()     {}
func (Exist) isFieldOp()     {}

// Construction helpers. These build plain values; none of them touch a
// schema or a driver.

func Eq(v any) FieldOp  { return Cmp{Op: OpEq, Value: v} }
func Ne(v any) FieldOp  { return Cmp{Op: OpNe, Value: v} }
func Gt(v any) FieldOp  { return Cmp{Op: OpGt, Value: v} }
func Gte(v any) FieldOp { return Cmp{Op: OpGte, Value: v} }
func Lt(v any) FieldOp  { return Cmp{Op: OpLt, Value: v} }
func Lte(v any) FieldOp { return Cmp{Op: OpLte, Value: v} }

func WhereField(name string, op FieldOp) Filter { return Field{Name: name, Op: op} }

func AndOf(fs ...Filter) Filter { return And{Of: fs} }
func OrOf(fs ...Filter) Filter  { return Or{Of: fs} }
func NorOf(fs ...Filter) Filter { return Nor{Of: fs} }
func NotOf(f Filter) Filter     { return Not{Of: f} }
