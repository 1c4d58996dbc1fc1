package docdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/g5becks/FractalDb-sub005/internal/builder"
	"github.com/g5becks/FractalDb-sub005/internal/events"
	"github.com/g5becks/FractalDb-sub005/internal/retry"
	"github.com/g5becks/FractalDb-sub005/internal/translate"
	"github.com/g5becks/FractalDb-sub005/schema"
)

type txKey struct{}

// Tx is a single SQLite transaction bound to a dedicated connection.
// Grounded on steveyegge-beads/internal/storage/sqlite/queries.go's
// CreateIssue (s.db.Conn(ctx) + beginImmediateWithRetry + deferred
// unconditional rollback unless committed) — a raw BEGIN/COMMIT issued
// through database/sql's pool could otherwise land on two different
// pooled connections.
type Tx struct {
	conn *sql.Conn
	db   *Database
	done bool
}

// Begin starts a new transaction with BEGIN IMMEDIATE. Calling Begin (or
// Execute) while ctx already carries an active Tx returns a
// TransactionError with Step "nest": nested transactions are not
// supported, per the single-writer semantics of the core.
func (d *Database) Begin(ctx context.Context) (*Tx, error) {
	if isInTx(ctx) {
		return nil, transactionErr("nest", "a transaction is already active on this context")
	}

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, connectionErr("acquire connection for transaction", err)
	}

	_, err = retry.Do(ctx, d.retry, func() (struct{}, error) {
		_, execErr := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		return struct{}{}, execErr
	})
	if err != nil {
		conn.Close()
		return nil, transactionErr("begin", err.Error())
	}

	return &Tx{conn: conn, db: d}, nil
}

// Commit commits the transaction and releases its dedicated connection.
// Calling Commit after Commit/Rollback is a no-op.
func (t *Tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.conn.Close()
	if _, err := t.conn.ExecContext(context.Background(), "COMMIT"); err != nil {
		return transactionErr("commit", err.Error())
	}
	return nil
}

// Rollback rolls back the transaction and releases its dedicated
// connection. Calling Rollback after Commit/Rollback is a no-op.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.conn.Close()
	if _, err := t.conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
		return transactionErr("rollback", err.Error())
	}
	return nil
}

// Execute runs fn inside a transaction: Begin, then Commit if fn returns
// nil, else Rollback. A panic inside fn rolls back and re-panics. The ctx
// passed to fn carries the active Tx, so a nested Execute/Begin called
// with that same ctx is rejected rather than silently opening a second
// transaction.
func (d *Database) Execute(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	tx, err := d.Begin(ctx)
	if err != nil {
		return err
	}
	txCtx := withTx(ctx, tx)

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if fnErr := fn(txCtx, tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", fnErr, rbErr)
		}
		return fnErr
	}
	return tx.Commit()
}

func withTx(ctx context.Context, tx *Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFromContext(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	return tx, ok
}

func isInTx(ctx context.Context) bool {
	_, ok := txFromContext(ctx)
	return ok
}

// CollectionIn binds a collection to an in-flight transaction: every
// operation on the returned *Collection[T] executes against tx's
// dedicated connection rather than the database's pool.
func CollectionIn[T any](tx *Tx, name string, s schema.Schema[T]) (*Collection[T], error) {
	if err := builder.Apply(context.Background(), tx.conn, name, s); err != nil {
		return nil, databaseErr(fmt.Sprintf("apply schema for collection %q", name), err)
	}
	return &Collection[T]{
		db:     tx.db,
		exec:   tx.conn,
		table:  name,
		schema: s,
		tr:     &translate.Translator{Table: name, Schema: s, Cache: translate.NewCache(tx.db.cacheSize)},
		bus:    events.New(),
	}, nil
}
