package docdb

// Meta carries the out-of-band fields every document has regardless of its
// declared schema: its id and the two timestamps the runtime stamps when
// TimestampPolicy is enabled.
type Meta struct {
	ID        string
	CreatedAt int64
	UpdatedAt int64
}

// Doc wraps a caller's document type with its Meta, mirroring how the
// teacher wraps row data in typed query-result structs (api/data/types.go).
type Doc[T any] struct {
	Meta
	Data T
}

// InsertManyResult reports the outcome of an InsertMany call. When ordered
// is false, FailedIndexes/Errors may be non-empty even though Inserted also
// has entries, since unrelated documents in the batch succeeded
// independently.
type InsertManyResult[T any] struct {
	Inserted      []Doc[T]
	FailedIndexes []int
	Errors        []error
}

// UpdateManyResult reports how many documents an UpdateMany call matched
// versus actually modified (a matched document whose patch is a no-op
// still counts toward Matched but not Modified).
type UpdateManyResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// DeleteManyResult reports how many documents a DeleteMany call removed.
type DeleteManyResult struct {
	DeletedCount int64
}

// FindOneAndOptions configures the three FindOneAnd* atomic operations.
type FindOneAndOptions struct {
	Upsert    bool
	ReturnNew bool
}
