package docdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/g5becks/FractalDb-sub005/internal/builder"
	"github.com/g5becks/FractalDb-sub005/internal/events"
	"github.com/g5becks/FractalDb-sub005/internal/idgen"
	"github.com/g5becks/FractalDb-sub005/internal/retry"
	"github.com/g5becks/FractalDb-sub005/internal/translate"
	"github.com/g5becks/FractalDb-sub005/schema"
)

// Database owns one SQLite connection pool and the registry of
// collections opened against it. Grounded on the teacher's
// Database{Client *sql.DB; Schema SchemaCache} ownership pattern
// (api/data/base.go), generalized from one global primary-DB singleton to
// a per-*Database sync.Map registry since this core is a library, not a
// single-process HTTP server.
type Database struct {
	db          *sql.DB
	owned       bool
	collections sync.Map // string -> any (*Collection[T])
	retry       retry.Policy
	cacheSize   int
	logger      *slog.Logger

	mu     sync.Mutex
	closed bool
}

func newDatabase(db *sql.DB, owned bool, opts ...Option) *Database {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Database{
		db:        db,
		owned:     owned,
		retry:     cfg.retry,
		cacheSize: cfg.cacheSize,
		logger:    cfg.logger,
	}
}

// Open opens (creating if necessary) a SQLite database file at path.
func Open(ctx context.Context, path string, opts ...Option) (*Database, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, connectionErr("open database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, connectionErr("ping database", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, connectionErr("set journal mode", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, connectionErr("enable foreign keys", err)
	}
	return newDatabase(db, true, opts...), nil
}

// InMemory opens a private in-memory SQLite database. It uses a uniquely
// named shared-cache database and a single pooled connection
// (mode=memory&cache=shared plus SetMaxOpenConns(1)) so that every
// *sql.Conn handed out of the pool, including the dedicated connection a
// transaction borrows, sees the same in-memory database instead of each
// getting its own empty one, while other InMemory databases stay separate.
func InMemory(ctx context.Context, opts ...Option) (*Database, error) {
	d, err := Open(ctx, fmt.Sprintf("file:docdb-%s?mode=memory&cache=shared", idgen.NewID()), opts...)
	if err != nil {
		return nil, err
	}
	d.db.SetMaxOpenConns(1)
	return d, nil
}

// FromDB adapts an already-open *sql.DB. If owned is false, Close is a
// no-op on the underlying *sql.DB (the caller retains ownership).
func FromDB(db *sql.DB, owned bool, opts ...Option) *Database {
	return newDatabase(db, owned, opts...)
}

// Close releases the underlying connection pool, if this Database owns
// it. Double-close is a no-op.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if !d.owned {
		return nil
	}
	if err := d.db.Close(); err != nil {
		return connectionErr("close database", err)
	}
	return nil
}

// CollectionFor returns the collection named name, applying s's DDL the
// first time it is seen. A later call for the same name with an
// equivalent schema returns the existing *Collection[T]; a call with a
// different document type or a structurally different schema fails.
func CollectionFor[T any](d *Database, name string, s schema.Schema[T], opts ...CollectionOption) (*Collection[T], error) {
	if existing, ok := d.collections.Load(name); ok {
		coll, ok := existing.(*Collection[T])
		if !ok {
			return nil, invalidOperationErr(fmt.Sprintf("collection %q is already registered with a different document type", name))
		}
		if !coll.schema.Equal(s) {
			return nil, schemaValidationErr(fmt.Sprintf("collection %q is already registered with a different schema", name))
		}
		return coll, nil
	}

	if err := builder.Apply(context.Background(), d.db, name, s); err != nil {
		return nil, databaseErr(fmt.Sprintf("apply schema for collection %q", name), err)
	}
	if err := builder.CheckDrift(context.Background(), d.db, name, s); err != nil {
		var de *builder.DriftError
		if errors.As(err, &de) {
			return nil, schemaValidationErr(de.Error())
		}
		return nil, databaseErr(fmt.Sprintf("check schema drift for collection %q", name), err)
	}

	cc := resolveCollectionConfig(opts)
	coll := &Collection[T]{
		db:     d,
		exec:   d.db,
		table:  name,
		schema: s,
		tr:     &translate.Translator{Table: name, Schema: s, Cache: translate.NewCache(d.cacheSize)},
		bus:    events.New(),
	}
	if cc.retrySet {
		coll.retryOverride = cc.retry
	}

	actual, loaded := d.collections.LoadOrStore(name, coll)
	if loaded {
		return actual.(*Collection[T]), nil
	}
	return coll, nil
}
