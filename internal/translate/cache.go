package translate

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/g5becks/FractalDb-sub005/query"
)

// defaultCacheSize is the bounded LRU capacity used when a caller doesn't
// size the Cache itself. Grounded on the pack's own bounded-LRU dependency
// (hashicorp/golang-lru/v2, present in steveyegge-beads's go.mod for
// exactly this "bounded memoization" shape).
const defaultCacheSize = 1024

// template is a compiled WHERE clause keyed on filter shape, not values.
type template struct {
	sql string
}

// Cache memoizes Translate's SQL output by filter shape. ElemMatch/Index
// subtrees are never stored, because their compiled SQL is keyed on
// structural depth as well as shape; Translate filters those out via
// containsComplex before ever calling Lookup/Store.
type Cache struct {
	lru *lru.Cache[string, template]
}

// NewCache builds a Cache with the given capacity, or defaultCacheSize if
// size <= 0.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, _ := lru.New[string, template](size)
	return &Cache{lru: c}
}

// Lookup returns the cached template for f's shape, if present.
func (c *Cache) Lookup(f query.Filter) (*renderable, bool) {
	key := fingerprint(f)
	tmpl, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return &renderable{sql: tmpl.sql}, true
}

// Store saves the compiled SQL for f's shape, keyed on fingerprint. The
// paramCount is informational only (useful for sanity checks/metrics);
// the authoritative values always come from f itself at render time.
func (c *Cache) Store(f query.Filter, sql string, paramCount int) {
	c.lru.Add(fingerprint(f), template{sql: sql})
}

// renderable pairs a cached SQL template with the logic to re-extract the
// literal parameter values from a fresh filter sharing the same shape.
type renderable struct {
	sql string
}

// Render returns the cached SQL alongside params freshly collected from f.
// Re-collecting values (rather than caching them) is what makes it safe to
// reuse the same template across filters that share a shape but differ in
// literal values.
func (r *renderable) Render(f query.Filter) (string, []any, error) {
	var params []any
	if err := collectParams(f, &params, 0); err != nil {
		return "", nil, err
	}
	return r.sql, params, nil
}

func collectParams(f query.Filter, params *[]any, depth int) error {
	if depth > maxDepth {
		return ErrQueryTooDeep
	}
	switch v := f.(type) {
	case query.Empty, nil:
		return nil
	case query.Field:
		return collectFieldOpParams(v.Op, params)
	case query.And:
		return collectLogicalParams(v.Of, params, depth)
	case query.Or:
		return collectLogicalParams(v.Of, params, depth)
	case query.Nor:
		return collectLogicalParams(v.Of, params, depth)
	case query.Not:
		return collectParams(v.Of, params, depth+1)
	default:
		return fmt.Errorf("translate: unsupported filter type %T", f)
	}
}

func collectLogicalParams(of []query.Filter, params *[]any, depth int) error {
	for _, sub := range of {
		if err := collectParams(sub, params, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func collectFieldOpParams(op query.FieldOp, params *[]any) error {
	switch v := op.(type) {
	case query.Cmp:
		*params = append(*params, v.Value)
	case query.In:
		*params = append(*params, v.Values...)
	case query.NotIn:
		*params = append(*params, v.Values...)
	case query.Str:
		*params = append(*params, strValue(v))
	case query.All:
		*params = append(*params, v.Values...)
	case query.Size:
		*params = append(*params, v.N)
	case query.Exist:
		// no bound parameter
	default:
		return fmt.Errorf("translate: unsupported field op %T", op)
	}
	return nil
}

func strValue(v query.Str) string {
	switch v.Op {
	case query.Contains:
		return "%" + v.Value + "%"
	case query.StartsWith:
		return v.Value + "%"
	case query.EndsWith:
		return "%" + v.Value
	default:
		return v.Value
	}
}

// fingerprint builds a structural key for f: operator tags, field names,
// and logical nesting, but never literal values.
func fingerprint(f query.Filter) string {
	var b strings.Builder
	writeFingerprint(&b, f)
	return b.String()
}

func writeFingerprint(b *strings.Builder, f query.Filter) {
	switch v := f.(type) {
	case query.Empty, nil:
		b.WriteString("E")
	case query.Field:
		b.WriteString("F(")
		b.WriteString(v.Name)
		b.WriteString(":")
		writeOpFingerprint(b, v.Op)
		b.WriteString(")")
	case query.And:
		writeGroupFingerprint(b, "AND", v.Of)
	case query.Or:
		writeGroupFingerprint(b, "OR", v.Of)
	case query.Nor:
		writeGroupFingerprint(b, "NOR", v.Of)
	case query.Not:
		b.WriteString("NOT(")
		writeFingerprint(b, v.Of)
		b.WriteString(")")
	}
}

func writeGroupFingerprint(b *strings.Builder, tag string, of []query.Filter) {
	b.WriteString(tag)
	b.WriteString("[")
	for i, sub := range of {
		if i > 0 {
			b.WriteString(",")
		}
		writeFingerprint(b, sub)
	}
	b.WriteString("]")
}

func writeOpFingerprint(b *strings.Builder, op query.FieldOp) {
	switch v := op.(type) {
	case query.Cmp:
		fmt.Fprintf(b, "Cmp%d", v.Op)
	case query.In:
		fmt.Fprintf(b, "In%d", len(v.Values))
	case query.NotIn:
		fmt.Fprintf(b, "NotIn%d", len(v.Values))
	case query.Str:
		fmt.Fprintf(b, "Str%d", v.Op)
	case query.All:
		fmt.Fprintf(b, "All%d", len(v.Values))
	case query.Size:
		b.WriteString("Size")
	case query.Exist:
		fmt.Fprintf(b, "Exist%v", v.Want)
	default:
		b.WriteString("?")
	}
}
