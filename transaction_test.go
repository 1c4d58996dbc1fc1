package docdb

import (
	"context"
	"testing"

	"github.com/g5becks/FractalDb-sub005/query"
)

func TestBeginCommitPersistsWrites(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	s := personSchema(t)
	coll, err := CollectionFor(db, "people", s)
	if err != nil {
		t.Fatalf("CollectionFor: %v", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	inTx, err := CollectionIn[person](tx, "people", s)
	if err != nil {
		t.Fatalf("CollectionIn: %v", err)
	}
	if _, err := inTx.InsertOne(ctx, person{Email: "a@b.com", Age: 30}); err != nil {
		t.Fatalf("InsertOne in tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Visible through the pool, not just the dedicated tx connection,
	// proving the shared-cache in-memory DSN actually shares one database.
	n, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		t.Fatalf("EstimatedDocumentCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 document visible after commit, got %d", n)
	}
}

func TestBeginRollbackDiscardsWrites(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	s := personSchema(t)
	coll, err := CollectionFor(db, "people", s)
	if err != nil {
		t.Fatalf("CollectionFor: %v", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	inTx, err := CollectionIn[person](tx, "people", s)
	if err != nil {
		t.Fatalf("CollectionIn: %v", err)
	}
	if _, err := inTx.InsertOne(ctx, person{Email: "a@b.com", Age: 30}); err != nil {
		t.Fatalf("InsertOne in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	n, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		t.Fatalf("EstimatedDocumentCount: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 documents visible after rollback, got %d", n)
	}
}

func TestCommitAfterCommitIsNoOp(t *testing.T) {
	db := openTestDatabase(t)
	tx, err := db.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("second Commit (should be a no-op): %v", err)
	}
}

func TestExecuteCommitsOnSuccess(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	s := personSchema(t)
	coll, err := CollectionFor(db, "people", s)
	if err != nil {
		t.Fatalf("CollectionFor: %v", err)
	}

	err = db.Execute(ctx, func(ctx context.Context, tx *Tx) error {
		inTx, err := CollectionIn[person](tx, "people", s)
		if err != nil {
			return err
		}
		_, err = inTx.InsertOne(ctx, person{Email: "a@b.com", Age: 30})
		return err
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	n, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		t.Fatalf("EstimatedDocumentCount: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 document after Execute success, got %d", n)
	}
}

func TestExecuteRollsBackOnError(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	s := personSchema(t)
	coll, err := CollectionFor(db, "people", s)
	if err != nil {
		t.Fatalf("CollectionFor: %v", err)
	}

	sentinel := databaseErr("boom", nil)
	err = db.Execute(ctx, func(ctx context.Context, tx *Tx) error {
		inTx, err := CollectionIn[person](tx, "people", s)
		if err != nil {
			return err
		}
		if _, err := inTx.InsertOne(ctx, person{Email: "a@b.com", Age: 30}); err != nil {
			return err
		}
		return sentinel
	})
	if err == nil {
		t.Fatalf("expected Execute to surface fn's error")
	}

	n, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		t.Fatalf("EstimatedDocumentCount: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 documents after Execute rollback, got %d", n)
	}
}

func TestNestedExecuteIsRejected(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	err := db.Execute(ctx, func(ctx context.Context, tx *Tx) error {
		_, err := db.Begin(ctx)
		return err
	})
	if err == nil {
		t.Fatalf("expected nested transaction attempt to be rejected")
	}
	var de *Error
	if !asError(err, &de) {
		t.Fatalf("expected a *docdb.Error, got %T: %v", err, err)
	}
	if de.Kind != KindTransaction {
		t.Fatalf("expected KindTransaction, got %v", de.Kind)
	}
}

func TestFindOneAndUpdateIsAtomic(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	s := personSchema(t)
	coll, err := CollectionFor(db, "people", s)
	if err != nil {
		t.Fatalf("CollectionFor: %v", err)
	}

	inserted, err := coll.InsertOne(ctx, person{Email: "a@b.com", Age: 30})
	if err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	updated, found, err := coll.FindOneAndUpdate(ctx, query.ByID(inserted.ID), map[string]any{"age": 31}, FindOneAndOptions{ReturnNew: true})
	if err != nil {
		t.Fatalf("FindOneAndUpdate: %v", err)
	}
	if !found {
		t.Fatalf("expected the document to be found")
	}
	if updated.Data.Age != 31 {
		t.Fatalf("expected age 31, got %d", updated.Data.Age)
	}

	current, _, err := coll.FindByID(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if current.Data.Age != 31 {
		t.Fatalf("expected the stored document to have been updated, got %d", current.Data.Age)
	}
}

func TestFindOneAndUpdateDefaultReturnsBeforeSnapshot(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	s := personSchema(t)
	coll, err := CollectionFor(db, "people", s)
	if err != nil {
		t.Fatalf("CollectionFor: %v", err)
	}

	inserted, err := coll.InsertOne(ctx, person{Email: "a@b.com", Age: 30})
	if err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	before, found, err := coll.FindOneAndUpdate(ctx, query.ByID(inserted.ID), map[string]any{"age": 31}, FindOneAndOptions{})
	if err != nil {
		t.Fatalf("FindOneAndUpdate: %v", err)
	}
	if !found {
		t.Fatalf("expected the document to be found")
	}
	if before.Data.Age != 30 {
		t.Fatalf("expected the default returnDocument=before snapshot (age 30), got %d", before.Data.Age)
	}

	current, _, err := coll.FindByID(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if current.Data.Age != 31 {
		t.Fatalf("expected the update to have actually applied, got %d", current.Data.Age)
	}
}

func TestFindOneAndUpdateUpsertWithBeforeReturnsNone(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	s := personSchema(t)
	coll, err := CollectionFor(db, "people", s)
	if err != nil {
		t.Fatalf("CollectionFor: %v", err)
	}

	_, found, err := coll.FindOneAndUpdate(ctx, query.ByID("missing-id"), map[string]any{"email": "new@b.com", "age": 1}, FindOneAndOptions{Upsert: true})
	if err != nil {
		t.Fatalf("FindOneAndUpdate upsert: %v", err)
	}
	if found {
		t.Fatalf("expected found=false for an upsert with the default returnDocument=before")
	}

	docs, err := coll.Find(ctx, query.WhereField("email", query.Eq("new@b.com")), query.Options{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected the upsert to have inserted a document regardless, got %d", len(docs))
	}
}

func asError(err error, target **Error) bool {
	de, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = de
	return true
}
