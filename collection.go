package docdb

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/g5becks/FractalDb-sub005/internal/codec"
	"github.com/g5becks/FractalDb-sub005/internal/events"
	"github.com/g5becks/FractalDb-sub005/internal/idgen"
	"github.com/g5becks/FractalDb-sub005/internal/retry"
	"github.com/g5becks/FractalDb-sub005/internal/translate"
	"github.com/g5becks/FractalDb-sub005/query"
	"github.com/g5becks/FractalDb-sub005/schema"
)

// execer is the subset of *sql.DB/*sql.Conn/*sql.Tx a Collection needs.
// Grounded on the teacher's own Executor interface (api/database/types.go).
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Collection is the typed CRUD surface over one table. Grounded on the
// teacher's CRUD trio in api/data/queries.go (SelectJSON/InsertJSON/
// UpdateJSON/DeleteJSON: build clause, bind args, ExecContextWithRetry/
// QueryRowContext, scan/marshal), generalized from raw JSON moving through
// an HTTP handler into typed methods moving through Go structs.
type Collection[T any] struct {
	db            *Database
	exec          execer
	table         string
	schema        schema.Schema[T]
	tr            *translate.Translator
	bus           *events.Bus
	retryOverride *retry.Policy
}

func (c *Collection[T]) policy(opts []OpOption) retry.Policy {
	o := resolveOpConfig(opts)
	return effectivePolicy(c.db.retry, c.retryOverride, o.retry)
}

func (c *Collection[T]) selectColumns() string {
	cols := []string{"_id", "body"}
	ts := c.schema.Timestamps
	if ts.Enabled {
		cols = append(cols, fmt.Sprintf("%q", ts.CreatedAtName), fmt.Sprintf("%q", ts.UpdatedAtName))
	}
	return strings.Join(cols, ", ")
}

type scannedRow struct {
	id        string
	body      []byte
	createdAt sql.NullInt64
	updatedAt sql.NullInt64
}

func (c *Collection[T]) scanRow(row interface{ Scan(...any) error }) (scannedRow, error) {
	var r scannedRow
	ts := c.schema.Timestamps
	var err error
	if ts.Enabled {
		err = row.Scan(&r.id, &r.body, &r.createdAt, &r.updatedAt)
	} else {
		err = row.Scan(&r.id, &r.body)
	}
	return r, err
}

func (c *Collection[T]) toDoc(r scannedRow) (Doc[T], error) {
	var data T
	if err := codec.Decode(r.body, &data); err != nil {
		return Doc[T]{}, serializationErr("", "decode document body", err)
	}
	return Doc[T]{
		Meta: Meta{ID: r.id, CreatedAt: r.createdAt.Int64, UpdatedAt: r.updatedAt.Int64},
		Data: data,
	}, nil
}

func uniqueFieldFromMessage(msg string) string {
	// sqlite3 reports "UNIQUE constraint failed: table._field"
	idx := strings.LastIndex(msg, ".")
	if idx == -1 || idx+1 >= len(msg) {
		return ""
	}
	field := msg[idx+1:]
	return strings.TrimPrefix(field, "_")
}

// InsertOne validates doc, stamps an id and timestamps, and inserts it.
func (c *Collection[T]) InsertOne(ctx context.Context, doc T, opts ...OpOption) (Doc[T], error) {
	validated, err := c.validate(doc)
	if err != nil {
		return Doc[T]{}, err
	}

	id := idgen.NewID()
	now := idgen.NowMS()
	body, err := codec.Encode(validated)
	if err != nil {
		return Doc[T]{}, serializationErr("", "encode document body", err)
	}

	cols := []string{"_id", "body"}
	vals := []any{id, body}
	ts := c.schema.Timestamps
	if ts.Enabled {
		cols = append(cols, fmt.Sprintf("%q", ts.CreatedAtName), fmt.Sprintf("%q", ts.UpdatedAtName))
		vals = append(vals, now, now)
	}
	placeholders := make([]string, len(vals))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)", c.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	_, err = retry.Do(ctx, c.policy(opts), func() (struct{}, error) {
		_, execErr := c.exec.ExecContext(ctx, stmt, vals...)
		return struct{}{}, execErr
	})
	if err != nil {
		mapped := mapSQLiteErr("insertOne", "", err)
		if de, ok := mapped.(*Error); ok && de.Kind == KindUniqueConstraint {
			de.Field = uniqueFieldFromMessage(err.Error())
		}
		return Doc[T]{}, mapped
	}

	result := Doc[T]{Meta: Meta{ID: id, CreatedAt: now, UpdatedAt: now}, Data: validated}
	c.bus.Emit(events.Insert, c.table, result)
	return result, nil
}

// InsertMany inserts every document in docs. If ordered, the first
// failure stops the batch; otherwise every document is attempted
// independently, one goroutine per document (golang.org/x/sync/errgroup).
func (c *Collection[T]) InsertMany(ctx context.Context, docs []T, ordered bool, opts ...OpOption) (InsertManyResult[T], error) {
	var result InsertManyResult[T]

	if ordered {
		for i, d := range docs {
			doc, err := c.InsertOne(ctx, d, opts...)
			if err != nil {
				result.FailedIndexes = append(result.FailedIndexes, i)
				result.Errors = append(result.Errors, err)
				return result, err
			}
			result.Inserted = append(result.Inserted, doc)
		}
		return result, nil
	}

	type outcome struct {
		idx int
		doc Doc[T]
		err error
	}
	outcomes := make([]outcome, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range docs {
		i, d := i, d
		g.Go(func() error {
			doc, err := c.InsertOne(gctx, d, opts...)
			outcomes[i] = outcome{idx: i, doc: doc, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			result.FailedIndexes = append(result.FailedIndexes, o.idx)
			result.Errors = append(result.Errors, o.err)
			continue
		}
		result.Inserted = append(result.Inserted, o.doc)
	}
	return result, nil
}

// FindByID fetches one document by its id. The boolean result is false
// (with a nil error) when no document has that id.
func (c *Collection[T]) FindByID(ctx context.Context, id string, opts ...OpOption) (Doc[T], bool, error) {
	stmt := fmt.Sprintf("SELECT %s FROM %q WHERE \"_id\" = ?", c.selectColumns(), c.table)
	row, err := retry.Do(ctx, c.policy(opts), func() (scannedRow, error) {
		return c.scanRow(c.exec.QueryRowContext(ctx, stmt, id))
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return Doc[T]{}, false, nil
		}
		return Doc[T]{}, false, mapSQLiteErr("findByID", "", err)
	}
	doc, err := c.toDoc(row)
	if err != nil {
		return Doc[T]{}, false, err
	}
	return doc, true, nil
}

// FindOne fetches the first document matching f. f may be a bare id
// (query.ByID) or a full filter (query.Where); a bare id, or a filter that
// is exactly an _id equality on a string, takes the primary-key fast path
// and bypasses the translator entirely.
func (c *Collection[T]) FindOne(ctx context.Context, f query.FilterOrID, opts ...OpOption) (Doc[T], bool, error) {
	if id, ok := f.IsByID(); ok {
		return c.FindByID(ctx, id, opts...)
	}
	norm := f.Normalize()
	if fld, ok := norm.(query.Field); ok && fld.Name == "_id" {
		if cmp, ok := fld.Op.(query.Cmp); ok && cmp.Op == query.OpEq {
			if id, ok := cmp.Value.(string); ok {
				return c.FindByID(ctx, id, opts...)
			}
		}
	}

	where, params, err := c.tr.Translate(norm)
	if err != nil {
		return Doc[T]{}, false, queryErr(err.Error(), "")
	}
	stmt := fmt.Sprintf("SELECT %s FROM %q WHERE %s LIMIT 1", c.selectColumns(), c.table, where)

	row, err := retry.Do(ctx, c.policy(opts), func() (scannedRow, error) {
		return c.scanRow(c.exec.QueryRowContext(ctx, stmt, params...))
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return Doc[T]{}, false, nil
		}
		return Doc[T]{}, false, mapSQLiteErr("findOne", "", err)
	}
	doc, err := c.toDoc(row)
	if err != nil {
		return Doc[T]{}, false, err
	}
	return doc, true, nil
}

// Find returns every document matching f, shaped by o (sort/limit/skip/
// cursor/select/omit).
func (c *Collection[T]) Find(ctx context.Context, f query.Filter, o query.Options, opts ...OpOption) ([]Doc[T], error) {
	where, params, err := c.tr.Translate(f)
	if err != nil {
		return nil, queryErr(err.Error(), "")
	}
	where, suffix, params, err := c.tr.TranslateOptions(o, where, params)
	if err != nil {
		return nil, queryErr(err.Error(), "")
	}
	stmt := fmt.Sprintf("SELECT %s FROM %q WHERE %s%s", c.selectColumns(), c.table, where, suffix)

	rows, err := retry.Do(ctx, c.policy(opts), func() (*sql.Rows, error) {
		return c.exec.QueryContext(ctx, stmt, params...)
	})
	if err != nil {
		return nil, mapSQLiteErr("find", "", err)
	}
	defer rows.Close()

	var out []Doc[T]
	for rows.Next() {
		r, err := c.scanRow(rows)
		if err != nil {
			return nil, mapSQLiteErr("find: scan row", "", err)
		}
		doc, err := c.toDoc(r)
		if err != nil {
			return nil, err
		}
		if len(o.Select) > 0 || len(o.Omit) > 0 {
			doc.Data, err = c.projectInto(r.body, o.Select, o.Omit)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteErr("find: iterate rows", "", err)
	}
	return out, nil
}

func (c *Collection[T]) projectInto(body []byte, sel, omit []string) (T, error) {
	var zero T
	m, err := codec.ToMap(body)
	if err != nil {
		return zero, serializationErr("", "decode document body for projection", err)
	}
	projected := codec.Project(m, sel, omit)
	reencoded, err := codec.Encode(projected)
	if err != nil {
		return zero, serializationErr("", "re-encode projected document", err)
	}
	var out T
	if err := codec.Decode(reencoded, &out); err != nil {
		return zero, serializationErr("", "decode projected document", err)
	}
	return out, nil
}

// Count returns the number of documents matching f.
func (c *Collection[T]) Count(ctx context.Context, f query.Filter, opts ...OpOption) (int64, error) {
	where, params, err := c.tr.Translate(f)
	if err != nil {
		return 0, queryErr(err.Error(), "")
	}
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %q WHERE %s", c.table, where)
	return retry.Do(ctx, c.policy(opts), func() (int64, error) {
		var n int64
		err := c.exec.QueryRowContext(ctx, stmt, params...).Scan(&n)
		return n, err
	})
}

// EstimatedDocumentCount returns a fast, approximate row count (no WHERE
// clause, so it never touches the JSON body).
func (c *Collection[T]) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %q", c.table)
	var n int64
	err := c.exec.QueryRowContext(ctx, stmt).Scan(&n)
	if err != nil {
		return 0, mapSQLiteErr("estimatedDocumentCount", "", err)
	}
	return n, nil
}

// Distinct returns the distinct values of field among documents matching
// f.
func (c *Collection[T]) Distinct(ctx context.Context, field string, f query.Filter, opts ...OpOption) ([]any, error) {
	where, params, err := c.tr.Translate(f)
	if err != nil {
		return nil, queryErr(err.Error(), "")
	}
	col := fmt.Sprintf("jsonb_extract(body, '$.%s')", field)
	if fd, ok := c.schema.FieldByName(field); ok && fd.Indexed {
		col = fmt.Sprintf("%q", "_"+field)
	}
	stmt := fmt.Sprintf("SELECT DISTINCT %s FROM %q WHERE %s ORDER BY %s ASC", col, c.table, where, col)

	rows, err := retry.Do(ctx, c.policy(opts), func() (*sql.Rows, error) {
		return c.exec.QueryContext(ctx, stmt, params...)
	})
	if err != nil {
		return nil, mapSQLiteErr("distinct", "", err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, mapSQLiteErr("distinct: scan row", "", err)
		}
		if v != nil {
			out = append(out, v)
		}
	}
	return out, rows.Err()
}

// Search performs a case-insensitive substring match across fields.
func (c *Collection[T]) Search(ctx context.Context, text string, fields []string, o query.Options, opts ...OpOption) ([]Doc[T], error) {
	where, params := c.tr.TranslateSearch(text, fields, false)
	where, suffix, params, err := c.tr.TranslateOptions(o, where, params)
	if err != nil {
		return nil, queryErr(err.Error(), "")
	}
	stmt := fmt.Sprintf("SELECT %s FROM %q WHERE %s%s", c.selectColumns(), c.table, where, suffix)

	rows, err := retry.Do(ctx, c.policy(opts), func() (*sql.Rows, error) {
		return c.exec.QueryContext(ctx, stmt, params...)
	})
	if err != nil {
		return nil, mapSQLiteErr("search", "", err)
	}
	defer rows.Close()

	var out []Doc[T]
	for rows.Next() {
		r, err := c.scanRow(rows)
		if err != nil {
			return nil, mapSQLiteErr("search: scan row", "", err)
		}
		doc, err := c.toDoc(r)
		if err != nil {
			return nil, err
		}
		if len(o.Select) > 0 || len(o.Omit) > 0 {
			doc.Data, err = c.projectInto(r.body, o.Select, o.Omit)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (c *Collection[T]) mergePatch(body []byte, patch map[string]any) ([]byte, error) {
	existing, err := codec.ToMap(body)
	if err != nil {
		return nil, serializationErr("", "decode document body for update", err)
	}
	for k, v := range patch {
		existing[k] = v
	}
	return codec.Encode(existing)
}

func (c *Collection[T]) docFromPatch(patch map[string]any) (T, error) {
	var out T
	raw, err := codec.Encode(patch)
	if err != nil {
		return out, serializationErr("", "encode upsert document", err)
	}
	if err := codec.Decode(raw, &out); err != nil {
		return out, serializationErr("", "decode upsert document", err)
	}
	return out, nil
}

// UpdateOne shallow-merges patch into the first document matching f. If
// no document matches and upsert is true, a new document is built from
// patch, validated, and inserted.
func (c *Collection[T]) UpdateOne(ctx context.Context, f query.FilterOrID, patch map[string]any, upsert bool, opts ...OpOption) (Doc[T], bool, error) {
	existing, found, err := c.FindOne(ctx, f, opts...)
	if err != nil {
		return Doc[T]{}, false, err
	}
	if !found {
		if !upsert {
			return Doc[T]{}, false, nil
		}
		doc, err := c.docFromPatch(patch)
		if err != nil {
			return Doc[T]{}, false, err
		}
		inserted, err := c.InsertOne(ctx, doc, opts...)
		return inserted, true, err
	}

	body, err := codec.Encode(existing.Data)
	if err != nil {
		return Doc[T]{}, false, serializationErr("", "encode existing document", err)
	}
	merged, err := c.mergePatch(body, patch)
	if err != nil {
		return Doc[T]{}, false, err
	}
	var data T
	if err := codec.Decode(merged, &data); err != nil {
		return Doc[T]{}, false, serializationErr("", "decode merged document", err)
	}
	data, err = c.validate(data)
	if err != nil {
		return Doc[T]{}, false, err
	}
	merged, err = codec.Encode(data)
	if err != nil {
		return Doc[T]{}, false, serializationErr("", "re-encode validated document", err)
	}

	now := idgen.NowMS()
	stmt := c.updateStmt()
	_, err = retry.Do(ctx, c.policy(opts), func() (struct{}, error) {
		_, execErr := c.exec.ExecContext(ctx, stmt, c.updateArgs(merged, now, existing.ID)...)
		return struct{}{}, execErr
	})
	if err != nil {
		return Doc[T]{}, false, mapSQLiteErr("updateOne", "", err)
	}

	result := Doc[T]{Meta: Meta{ID: existing.ID, CreatedAt: existing.CreatedAt, UpdatedAt: now}, Data: data}
	c.bus.Emit(events.Update, c.table, result)
	return result, true, nil
}

func (c *Collection[T]) updateStmt() string {
	ts := c.schema.Timestamps
	if ts.Enabled {
		return fmt.Sprintf("UPDATE %q SET body = ?, %q = ? WHERE \"_id\" = ?", c.table, ts.UpdatedAtName)
	}
	return fmt.Sprintf("UPDATE %q SET body = ? WHERE \"_id\" = ?", c.table)
}

func (c *Collection[T]) updateArgs(body []byte, now int64, id string) []any {
	if c.schema.Timestamps.Enabled {
		return []any{body, now, id}
	}
	return []any{body, id}
}

// UpdateMany shallow-merges patch into every document matching f.
func (c *Collection[T]) UpdateMany(ctx context.Context, f query.Filter, patch map[string]any, opts ...OpOption) (UpdateManyResult, error) {
	docs, err := c.Find(ctx, f, query.Options{}, opts...)
	if err != nil {
		return UpdateManyResult{}, err
	}

	var result UpdateManyResult
	now := idgen.NowMS()
	stmt := c.updateStmt()
	for _, d := range docs {
		result.MatchedCount++
		body, err := codec.Encode(d.Data)
		if err != nil {
			return result, serializationErr("", "encode existing document", err)
		}
		merged, err := c.mergePatch(body, patch)
		if err != nil {
			return result, err
		}
		var data T
		if err := codec.Decode(merged, &data); err != nil {
			return result, serializationErr("", "decode merged document", err)
		}
		data, err = c.validate(data)
		if err != nil {
			return result, err
		}
		merged, err = codec.Encode(data)
		if err != nil {
			return result, serializationErr("", "re-encode validated document", err)
		}

		_, err = retry.Do(ctx, c.policy(opts), func() (struct{}, error) {
			_, execErr := c.exec.ExecContext(ctx, stmt, c.updateArgs(merged, now, d.ID)...)
			return struct{}{}, execErr
		})
		if err != nil {
			return result, mapSQLiteErr("updateMany", "", err)
		}
		if !bytes.Equal(merged, body) {
			result.ModifiedCount++
		}
	}
	c.bus.Emit(events.UpdateMany, c.table, result)
	return result, nil
}

// ReplaceOne replaces the entire document matching f with doc.
func (c *Collection[T]) ReplaceOne(ctx context.Context, f query.FilterOrID, doc T, opts ...OpOption) (Doc[T], bool, error) {
	existing, found, err := c.FindOne(ctx, f, opts...)
	if err != nil {
		return Doc[T]{}, false, err
	}
	if !found {
		return Doc[T]{}, false, nil
	}

	validated, err := c.validate(doc)
	if err != nil {
		return Doc[T]{}, false, err
	}
	body, err := codec.Encode(validated)
	if err != nil {
		return Doc[T]{}, false, serializationErr("", "encode replacement document", err)
	}

	now := idgen.NowMS()
	stmt := c.updateStmt()
	_, err = retry.Do(ctx, c.policy(opts), func() (struct{}, error) {
		_, execErr := c.exec.ExecContext(ctx, stmt, c.updateArgs(body, now, existing.ID)...)
		return struct{}{}, execErr
	})
	if err != nil {
		return Doc[T]{}, false, mapSQLiteErr("replaceOne", "", err)
	}

	result := Doc[T]{Meta: Meta{ID: existing.ID, CreatedAt: existing.CreatedAt, UpdatedAt: now}, Data: validated}
	c.bus.Emit(events.Replace, c.table, result)
	return result, true, nil
}

// DeleteOne deletes the first document matching f.
func (c *Collection[T]) DeleteOne(ctx context.Context, f query.FilterOrID, opts ...OpOption) (bool, error) {
	existing, found, err := c.FindOne(ctx, f, opts...)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	stmt := fmt.Sprintf("DELETE FROM %q WHERE \"_id\" = ?", c.table)
	_, err = retry.Do(ctx, c.policy(opts), func() (struct{}, error) {
		_, execErr := c.exec.ExecContext(ctx, stmt, existing.ID)
		return struct{}{}, execErr
	})
	if err != nil {
		return false, mapSQLiteErr("deleteOne", "", err)
	}
	c.bus.Emit(events.Delete, c.table, existing)
	return true, nil
}

// DeleteMany deletes every document matching f.
func (c *Collection[T]) DeleteMany(ctx context.Context, f query.Filter, opts ...OpOption) (DeleteManyResult, error) {
	where, params, err := c.tr.Translate(f)
	if err != nil {
		return DeleteManyResult{}, queryErr(err.Error(), "")
	}
	stmt := fmt.Sprintf("DELETE FROM %q WHERE %s", c.table, where)

	res, err := retry.Do(ctx, c.policy(opts), func() (sql.Result, error) {
		return c.exec.ExecContext(ctx, stmt, params...)
	})
	if err != nil {
		return DeleteManyResult{}, mapSQLiteErr("deleteMany", "", err)
	}
	n, _ := res.RowsAffected()
	result := DeleteManyResult{DeletedCount: n}
	c.bus.Emit(events.DeleteMany, c.table, result)
	return result, nil
}

// FindOneAndUpdate atomically updates and returns a single document. By
// default (fo.ReturnNew false) the pre-mutation snapshot is returned, per
// the "returnDocument: before" default; fo.ReturnNew requests the
// post-mutation document instead. An upsert that inserts a brand new
// document has no "before" snapshot, so with fo.ReturnNew false it reports
// found=false even though the insert happened.
func (c *Collection[T]) FindOneAndUpdate(ctx context.Context, f query.FilterOrID, patch map[string]any, fo FindOneAndOptions) (Doc[T], bool, error) {
	var result Doc[T]
	var found bool
	err := c.db.Execute(ctx, func(ctx context.Context, tx *Tx) error {
		inTx, err := CollectionIn[T](tx, c.table, c.schema)
		if err != nil {
			return err
		}
		existing, ok, err := inTx.FindOne(ctx, f)
		if err != nil {
			return err
		}
		if !ok {
			if !fo.Upsert {
				return nil
			}
			upsertDoc, err := c.docFromPatch(patch)
			if err != nil {
				return err
			}
			inserted, err := inTx.InsertOne(ctx, upsertDoc)
			if err != nil {
				return err
			}
			if fo.ReturnNew {
				result, found = inserted, true
			}
			return nil
		}

		updated, _, err := inTx.UpdateOne(ctx, f, patch, false)
		if err != nil {
			return err
		}
		if fo.ReturnNew {
			result = updated
		} else {
			result = existing
		}
		found = true
		return nil
	})
	if err != nil {
		return Doc[T]{}, false, err
	}
	if found {
		c.bus.Emit(events.FindOneAndUpdate, c.table, result)
	}
	return result, found, nil
}

// FindOneAndReplace atomically replaces and returns a single document,
// honoring fo.ReturnNew the same way FindOneAndUpdate does.
func (c *Collection[T]) FindOneAndReplace(ctx context.Context, f query.FilterOrID, doc T, fo FindOneAndOptions) (Doc[T], bool, error) {
	var result Doc[T]
	var found bool
	err := c.db.Execute(ctx, func(ctx context.Context, tx *Tx) error {
		inTx, err := CollectionIn[T](tx, c.table, c.schema)
		if err != nil {
			return err
		}
		existing, ok, err := inTx.FindOne(ctx, f)
		if err != nil {
			return err
		}
		if !ok {
			if !fo.Upsert {
				return nil
			}
			inserted, err := inTx.InsertOne(ctx, doc)
			if err != nil {
				return err
			}
			if fo.ReturnNew {
				result, found = inserted, true
			}
			return nil
		}

		replaced, _, err := inTx.ReplaceOne(ctx, f, doc)
		if err != nil {
			return err
		}
		if fo.ReturnNew {
			result = replaced
		} else {
			result = existing
		}
		found = true
		return nil
	})
	if err != nil {
		return Doc[T]{}, false, err
	}
	if found {
		c.bus.Emit(events.FindOneAndReplace, c.table, result)
	}
	return result, found, nil
}

// FindOneAndDelete atomically deletes and returns a single document.
func (c *Collection[T]) FindOneAndDelete(ctx context.Context, f query.FilterOrID, fo FindOneAndOptions) (Doc[T], bool, error) {
	var result Doc[T]
	var found bool
	err := c.db.Execute(ctx, func(ctx context.Context, tx *Tx) error {
		inTx, err := CollectionIn[T](tx, c.table, c.schema)
		if err != nil {
			return err
		}
		doc, ok, err := inTx.FindOne(ctx, f)
		if err != nil || !ok {
			return err
		}
		if _, err := inTx.DeleteOne(ctx, f); err != nil {
			return err
		}
		result, found = doc, true
		return nil
	})
	if err != nil {
		return Doc[T]{}, false, err
	}
	if found {
		c.bus.Emit(events.FindOneAndDelete, c.table, result)
	}
	return result, found, nil
}

// Drop removes the collection's table entirely.
func (c *Collection[T]) Drop(ctx context.Context) error {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %q", c.table)
	if _, err := c.exec.ExecContext(ctx, stmt); err != nil {
		return mapSQLiteErr("drop", "", err)
	}
	c.db.collections.Delete(c.table)
	c.bus.Emit(events.Drop, c.table, nil)
	return nil
}

// Validate runs the schema's Validator, if any, returning doc unchanged
// when none is configured.
func (c *Collection[T]) Validate(doc T) (T, error) {
	return c.validate(doc)
}

func (c *Collection[T]) validate(doc T) (T, error) {
	if c.schema.Validate == nil {
		return doc, nil
	}
	validated, err := c.schema.Validate.Validate(doc)
	if err != nil {
		return doc, validationErr("", err.Error())
	}
	return validated, nil
}

// On subscribes fn to events of type t on this collection, returning a
// func that removes the subscription.
func (c *Collection[T]) On(t events.Type, fn events.Handler) (unsubscribe func()) {
	return c.bus.On(t, fn)
}
