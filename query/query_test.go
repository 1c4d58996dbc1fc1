package query

import "testing"

func TestFilterOrIDByID(t *testing.T) {
	f := ByID("doc-1")
	id, ok := f.IsByID()
	if !ok || id != "doc-1" {
		t.Fatalf("expected IsByID to return (doc-1, true), got (%q, %v)", id, ok)
	}
	norm := f.Normalize()
	field, ok := norm.(Field)
	if !ok || field.Name != "_id" {
		t.Fatalf("expected Normalize to produce a _id field filter, got %#v", norm)
	}
	cmp, ok := field.Op.(Cmp)
	if !ok || cmp.Op != OpEq || cmp.Value != "doc-1" {
		t.Fatalf("expected Cmp{OpEq, doc-1}, got %#v", field.Op)
	}
}

func TestFilterOrIDWhere(t *testing.T) {
	inner := Field{Name: "age", Op: Gt(21)}
	f := Where(inner)
	if _, ok := f.IsByID(); ok {
		t.Fatalf("expected IsByID to be false for Where-built FilterOrID")
	}
	if f.Normalize() != Filter(inner) {
		t.Fatalf("expected Normalize to round-trip the original filter")
	}
}

func TestFilterOrIDZeroValueNormalizesToEmpty(t *testing.T) {
	var f FilterOrID
	if _, ok := f.Normalize().(Empty); !ok {
		t.Fatalf("expected zero-value FilterOrID to normalize to Empty")
	}
}

func TestConstructorHelpers(t *testing.T) {
	cases := []struct {
		name string
		op   FieldOp
		want CompareOp
	}{
		{"eq", Eq(1), OpEq},
		{"ne", Ne(1), OpNe},
		{"gt", Gt(1), OpGt},
		{"gte", Gte(1), OpGte},
		{"lt", Lt(1), OpLt},
		{"lte", Lte(1), OpLte},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmp, ok := tc.op.(Cmp)
			if !ok {
				t.Fatalf("expected Cmp, got %T", tc.op)
			}
			if cmp.Op != tc.want {
				t.Fatalf("expected op %v, got %v", tc.want, cmp.Op)
			}
		})
	}
}

func TestLogicalConstructors(t *testing.T) {
	f1 := Field{Name: "a", Op: Eq(1)}
	f2 := Field{Name: "b", Op: Eq(2)}

	and, ok := AndOf(f1, f2).(And)
	if !ok || len(and.Of) != 2 {
		t.Fatalf("expected And with 2 sub-filters, got %#v", and)
	}
	or, ok := OrOf(f1, f2).(Or)
	if !ok || len(or.Of) != 2 {
		t.Fatalf("expected Or with 2 sub-filters, got %#v", or)
	}
	nor, ok := NorOf(f1, f2).(Nor)
	if !ok || len(nor.Of) != 2 {
		t.Fatalf("expected Nor with 2 sub-filters, got %#v", nor)
	}
	not, ok := NotOf(f1).(Not)
	if !ok {
		t.Fatalf("expected Not, got %#v", not)
	}
}
