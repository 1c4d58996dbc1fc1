// Package translate compiles the closed query.Filter/query.Options AST
// into parameterized SQL against a collection's table. Field resolution
// routes through three tiers: the fixed metadata columns (_id,
// createdAt/updatedAt), a generated column for an indexed schema field, or
// a raw jsonb_extract against the body blob for everything else.
//
// Grounded on the teacher's api/database/query_json.go
// (BuildWhereFromJSON/buildFilterClause/buildOrClause/buildNotFilterClause)
// and api/database/build_query.go's SELECT/ORDER/LIMIT assembly,
// generalized from one-level JSON maps to the full recursive AST.
package translate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/g5becks/FractalDb-sub005/query"
	"github.com/g5becks/FractalDb-sub005/schema"
)

// ErrQueryTooDeep is returned when a filter's nesting exceeds maxDepth,
// grounded on the teacher's own MaxQueryDepth/ErrQueryTooDeep config+error
// pair (api/config, api/database/errors.go).
var ErrQueryTooDeep = fmt.Errorf("translate: query nesting exceeds maximum depth")

const maxDepth = 64

// Translator compiles filters for one collection's table.
type Translator struct {
	Table  string
	Schema schema.AnySchema
	Cache  *Cache // optional; nil disables caching
}

// resolver maps a field name to the SQL expression that reads it, within
// whatever "current document" context is active (the top-level row, or a
// json_each element one or more ElemMatch/Index levels down).
type resolver func(name string) (expr string, isJSONExpr bool)

func (t *Translator) rootResolver() resolver {
	ts := t.Schema.AnyTimestamps()
	fields := t.Schema.AnyFields()
	return func(name string) (string, bool) {
		switch {
		case name == "_id":
			return `"_id"`, false
		case ts.Enabled && name == ts.CreatedAtName:
			return fmt.Sprintf("%q", ts.CreatedAtName), false
		case ts.Enabled && name == ts.UpdatedAtName:
			return fmt.Sprintf("%q", ts.UpdatedAtName), false
		}
		for _, f := range fields {
			if f.Name == name && f.Indexed {
				return fmt.Sprintf("%q", "_"+name), false
			}
		}
		if name == "" {
			return "body", true
		}
		return fmt.Sprintf("jsonb_extract(body, '$.%s')", name), true
	}
}

// Translate compiles a Filter into a WHERE-clause fragment (without the
// leading "WHERE") and its bound parameters.
func (t *Translator) Translate(f query.Filter) (string, []any, error) {
	if t.Cache != nil && !containsComplex(f) {
		if tmpl, ok := t.Cache.Lookup(f); ok {
			return tmpl.Render(f)
		}
	}

	var params []any
	sql, err := compile(f, t.rootResolver(), &params, 0)
	if err != nil {
		return "", nil, err
	}

	if t.Cache != nil && !containsComplex(f) {
		t.Cache.Store(f, sql, len(params))
	}
	return sql, params, nil
}

func compile(f query.Filter, resolve resolver, params *[]any, depth int) (string, error) {
	if depth > maxDepth {
		return "", ErrQueryTooDeep
	}
	switch v := f.(type) {
	case query.Empty:
		return "1=1", nil
	case nil:
		return "1=1", nil
	case query.Field:
		return compileFieldOp(v.Name, v.Op, resolve, params, depth)
	case query.And:
		return compileLogical(v.Of, "AND", resolve, params, depth, false)
	case query.Or:
		if len(v.Of) == 0 {
			return "0=1", nil
		}
		return compileLogical(v.Of, "OR", resolve, params, depth, false)
	case query.Nor:
		if len(v.Of) == 0 {
			return "1=1", nil
		}
		clause, err := compileLogical(v.Of, "OR", resolve, params, depth, false)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", clause), nil
	case query.Not:
		inner, err := compile(v.Of, resolve, params, depth+1)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", inner), nil
	default:
		return "", fmt.Errorf("translate: unsupported filter type %T", f)
	}
}

func compileLogical(of []query.Filter, joiner string, resolve resolver, params *[]any, depth int, _ bool) (string, error) {
	if len(of) == 0 {
		return "1=1", nil
	}
	parts := make([]string, 0, len(of))
	for _, sub := range of {
		clause, err := compile(sub, resolve, params, depth+1)
		if err != nil {
			return "", err
		}
		parts = append(parts, clause)
	}
	return "(" + strings.Join(parts, " "+joiner+" ") + ")", nil
}

func compileFieldOp(name string, op query.FieldOp, resolve resolver, params *[]any, depth int) (string, error) {
	expr, isJSONExpr := resolve(name)

	switch v := op.(type) {
	case query.Cmp:
		*params = append(*params, v.Value)
		return fmt.Sprintf("%s %s ?", expr, compareSQL(v.Op)), nil

	case query.In:
		if len(v.Values) == 0 {
			return "0=1", nil
		}
		*params = append(*params, v.Values...)
		return fmt.Sprintf("%s IN (%s)", expr, placeholders(len(v.Values))), nil

	case query.NotIn:
		if len(v.Values) == 0 {
			return "1=1", nil
		}
		*params = append(*params, v.Values...)
		return fmt.Sprintf("%s NOT IN (%s)", expr, placeholders(len(v.Values))), nil

	case query.Str:
		return compileStrOp(expr, v, params), nil

	case query.All:
		if len(v.Values) == 0 {
			return "1=1", nil
		}
		parts := make([]string, 0, len(v.Values))
		for _, val := range v.Values {
			*params = append(*params, val)
			parts = append(parts, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM json_each(%s) je WHERE je.value = ?)", expr))
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil

	case query.Size:
		*params = append(*params, v.N)
		return fmt.Sprintf("json_array_length(%s) = ?", expr), nil

	case query.Exist:
		// JSON extractions are wrapped in json_type. The extraction yields
		// SQL NULL both for a missing path and for a present JSON null, so
		// a field holding JSON null counts as absent here.
		// Bare metadata/generated columns aren't JSON text, so they skip
		// the json_type wrapper and use a plain NULL check.
		existExpr := expr
		if isJSONExpr {
			existExpr = fmt.Sprintf("json_type(%s)", expr)
		}
		if v.Want {
			return fmt.Sprintf("%s IS NOT NULL", existExpr), nil
		}
		return fmt.Sprintf("%s IS NULL", existExpr), nil

	case query.ElemMatch:
		alias := fmt.Sprintf("je%d", depth)
		elemResolve := func(sub string) (string, bool) {
			if sub == "" {
				return alias + ".value", true
			}
			return fmt.Sprintf("json_extract(%s.value, '$.%s')", alias, sub), true
		}
		inner, err := compile(v.Of, elemResolve, params, depth+1)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) %s WHERE %s)", expr, alias, inner), nil

	case query.Index:
		idxExpr := fmt.Sprintf("json_extract(%s, '$[%d]')", expr, v.I)
		elemResolve := func(sub string) (string, bool) {
			if sub == "" {
				return idxExpr, true
			}
			return fmt.Sprintf("json_extract(%s, '$.%s')", idxExpr, sub), true
		}
		return compile(v.Of, elemResolve, params, depth+1)

	default:
		return "", fmt.Errorf("translate: unsupported field op %T", op)
	}
}

func compileStrOp(expr string, v query.Str, params *[]any) string {
	switch v.Op {
	case query.Like:
		*params = append(*params, v.Value)
		return fmt.Sprintf("%s LIKE ?", expr)
	case query.ILike:
		*params = append(*params, v.Value)
		return fmt.Sprintf("%s LIKE ? COLLATE NOCASE", expr)
	case query.Contains:
		*params = append(*params, "%"+v.Value+"%")
		return fmt.Sprintf("%s LIKE ?", expr)
	case query.StartsWith:
		*params = append(*params, v.Value+"%")
		return fmt.Sprintf("%s LIKE ?", expr)
	case query.EndsWith:
		*params = append(*params, "%"+v.Value)
		return fmt.Sprintf("%s LIKE ?", expr)
	default:
		*params = append(*params, v.Value)
		return fmt.Sprintf("%s = ?", expr)
	}
}

func compareSQL(op query.CompareOp) string {
	switch op {
	case query.OpEq:
		return "="
	case query.OpNe:
		return "!="
	case query.OpGt:
		return ">"
	case query.OpGte:
		return ">="
	case query.OpLt:
		return "<"
	case query.OpLte:
		return "<="
	default:
		return "="
	}
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}

// containsComplex reports whether f contains an ElemMatch or Index
// subtree anywhere, in which case it is never cached (their compiled SQL
// depends on structural depth, not just shape).
func containsComplex(f query.Filter) bool {
	switch v := f.(type) {
	case query.Field:
		switch v.Op.(type) {
		case query.ElemMatch, query.Index:
			return true
		}
		return false
	case query.And:
		return anyComplex(v.Of)
	case query.Or:
		return anyComplex(v.Of)
	case query.Nor:
		return anyComplex(v.Of)
	case query.Not:
		return containsComplex(v.Of)
	default:
		return false
	}
}

func anyComplex(fs []query.Filter) bool {
	for _, f := range fs {
		if containsComplex(f) {
			return true
		}
	}
	return false
}

// TranslateOptions folds o's search and cursor predicates into where and builds the
// ORDER BY/LIMIT/OFFSET suffix. where must already be the translated
// WHERE-clause body (without the literal "WHERE" keyword); the caller
// assembles the final "SELECT <cols> FROM <table> WHERE <where><suffix>"
// itself, since the column list depends on the collection's timestamp
// policy, which the translator doesn't track. Grounded on
// api/database/build_query.go's ORDER BY/LIMIT/OFFSET tacking.
func (t *Translator) TranslateOptions(o query.Options, where string, params []any) (string, string, []any, error) {
	idCol, _ := t.rootResolver()("_id")

	if o.Search != nil {
		clause, searchParams := t.TranslateSearch(o.Search.Text, o.Search.Fields, o.Search.CaseSensitive)
		where = fmt.Sprintf("(%s) AND %s", where, clause)
		params = append(params, searchParams...)
	}

	if o.Cursor != nil {
		switch {
		case o.Cursor.After != nil:
			where = fmt.Sprintf("(%s) AND %s > ?", where, idCol)
			params = append(params, *o.Cursor.After)
		case o.Cursor.Before != nil:
			where = fmt.Sprintf("(%s) AND %s < ?", where, idCol)
			params = append(params, *o.Cursor.Before)
		}
	}

	var suffix string
	if len(o.Sort) > 0 {
		parts := make([]string, 0, len(o.Sort)+1)
		for _, s := range o.Sort {
			col, _ := t.rootResolver()(s.Field)
			dir := "ASC"
			if s.Desc {
				dir = "DESC"
			}
			parts = append(parts, fmt.Sprintf("%s %s", col, dir))
		}
		// _id is appended as a final ascending tiebreaker so the order is
		// total even when the leading sort keys contain duplicates. Note
		// this still narrows keyset pagination to comparing the cursor
		// against _id alone rather than the full (sort_keys…, _id) tuple
		// spec §4.6 describes: a page boundary landing on a run of equal
		// leading-sort-key values can skip or repeat rows. Closing that
		// gap needs CursorOpt to carry the boundary row's sort-key values,
		// not just its _id.
		parts = append(parts, fmt.Sprintf("%s ASC", idCol))
		suffix += " ORDER BY " + strings.Join(parts, ", ")
	} else if o.Cursor != nil {
		suffix += " ORDER BY " + idCol + " ASC"
	}

	if o.Limit != nil {
		suffix += " LIMIT " + strconv.Itoa(*o.Limit)
	}
	if o.Skip != nil {
		if o.Limit == nil {
			suffix += " LIMIT -1"
		}
		suffix += " OFFSET " + strconv.Itoa(*o.Skip)
	}

	return where, suffix, params, nil
}

// TranslateSearch builds a substring match OR'd across fields, for
// Collection.Search and Options.Search. The match is case-insensitive
// unless caseSensitive is true.
func (t *Translator) TranslateSearch(text string, fields []string, caseSensitive bool) (string, []any) {
	resolve := t.rootResolver()
	parts := make([]string, 0, len(fields))
	var params []any
	pattern := "%" + text + "%"
	for _, field := range fields {
		expr, _ := resolve(field)
		if caseSensitive {
			parts = append(parts, fmt.Sprintf("%s LIKE ?", expr))
		} else {
			parts = append(parts, fmt.Sprintf("%s LIKE ? COLLATE NOCASE", expr))
		}
		params = append(params, pattern)
	}
	if len(parts) == 0 {
		return "1=1", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", params
}
