package docdb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/g5becks/FractalDb-sub005/internal/retry"
)

// Kind tags an Error with one of the taxonomy categories a caller can
// switch on without string-matching messages.
type Kind int

const (
	KindValidation Kind = iota
	KindSchemaValidation
	KindUniqueConstraint
	KindConstraint
	KindQuery
	KindDatabase
	KindConnection
	KindTransaction
	KindSerialization
	KindNotFound
	KindAborted
	KindInvalidOperation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSchemaValidation:
		return "schema_validation"
	case KindUniqueConstraint:
		return "unique_constraint"
	case KindConstraint:
		return "constraint"
	case KindQuery:
		return "query"
	case KindDatabase:
		return "database"
	case KindConnection:
		return "connection"
	case KindTransaction:
		return "transaction"
	case KindSerialization:
		return "serialization"
	case KindNotFound:
		return "not_found"
	case KindAborted:
		return "aborted"
	case KindInvalidOperation:
		return "invalid_operation"
	default:
		return "unknown"
	}
}

// Error is the single concrete error type the core returns. Callers switch
// on Kind rather than matching strings; Unwrap exposes the underlying
// driver error (if any) for errors.Is/errors.As.
type Error struct {
	Kind    Kind
	Field   string // Validation / UniqueConstraint
	Value   any    // UniqueConstraint
	Message string
	SQL     string // Query
	Code    string // Database: driver error code
	Step    string // Transaction: "begin" | "commit" | "rollback" | "nest"
	Reason  string // Aborted
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch e.Kind {
	case KindUniqueConstraint:
		return fmt.Sprintf("unique constraint violated on field %q (value %v)", e.Field, e.Value)
	case KindValidation:
		if e.Field != "" {
			return fmt.Sprintf("validation failed on field %q: %s", e.Field, msg)
		}
		return fmt.Sprintf("validation failed: %s", msg)
	case KindTransaction:
		return fmt.Sprintf("transaction error at step %q: %s", e.Step, msg)
	case KindAborted:
		if e.Reason != "" {
			return fmt.Sprintf("aborted: %s", e.Reason)
		}
		return "aborted"
	case KindNotFound:
		return "not found"
	default:
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, ErrNotFound) style sentinel checks keyed on Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel kind markers for errors.Is comparisons, mirroring the teacher's
// own sentinel-error idiom (api/database/errors.go) generalized to the Kind
// taxonomy instead of one sentinel per failure string.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAborted          = &Error{Kind: KindAborted}
	ErrUniqueConstraint = &Error{Kind: KindUniqueConstraint}
)

func validationErr(field, message string) error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func schemaValidationErr(message string) error {
	return &Error{Kind: KindSchemaValidation, Message: message}
}

func uniqueConstraintErr(field string, value any) error {
	return &Error{Kind: KindUniqueConstraint, Field: field, Value: value}
}

func queryErr(message, sqlText string) error {
	return &Error{Kind: KindQuery, Message: message, SQL: sqlText}
}

func databaseErr(message string, err error) error {
	return &Error{Kind: KindDatabase, Message: message, Err: err}
}

func connectionErr(message string, err error) error {
	return &Error{Kind: KindConnection, Message: message, Err: err}
}

func transactionErr(step, message string) error {
	return &Error{Kind: KindTransaction, Step: step, Message: message}
}

func serializationErr(field, message string, err error) error {
	return &Error{Kind: KindSerialization, Field: field, Message: message, Err: err}
}

func abortedErr(reason string) error {
	return &Error{Kind: KindAborted, Reason: reason}
}

func invalidOperationErr(message string) error {
	return &Error{Kind: KindInvalidOperation, Message: message}
}

// mapSQLiteErr wraps a driver-level failure with operation context,
// classifying SQLite-specific conditions into the Kind taxonomy. Grounded on
// wrapDBError/wrapDBErrorf (steveyegge-beads/internal/storage/sqlite/errors.go),
// generalized from a single ErrNotFound remap into the full Kind switch.
func mapSQLiteErr(op string, field string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Kind: KindNotFound, Message: op}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
				return &Error{Kind: KindUniqueConstraint, Field: field, Message: op, Code: sqliteErr.Error(), Err: err}
			}
			return &Error{Kind: KindConstraint, Message: op, Code: sqliteErr.Error(), Err: err}
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return &Error{Kind: KindDatabase, Message: op + ": database busy", Code: sqliteErr.Error(), Err: err}
		default:
			return &Error{Kind: KindDatabase, Message: op, Code: sqliteErr.Error(), Err: err}
		}
	}

	return &Error{Kind: KindDatabase, Message: op, Err: err}
}

// isRetryableCode reports whether a raw driver error represents a
// transient SQLITE_BUSY/SQLITE_LOCKED condition.
func isRetryableCode(err error) bool {
	return retry.IsBusyOrLocked(err)
}
