package docdb

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/mattn/go-sqlite3"
)

func TestErrorMessageByKind(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want string
	}{
		{"validation with field", &Error{Kind: KindValidation, Field: "email", Message: "required"}, `validation failed on field "email": required`},
		{"unique constraint", &Error{Kind: KindUniqueConstraint, Field: "email", Value: "a@b.com"}, `unique constraint violated on field "email" (value a@b.com)`},
		{"not found", &Error{Kind: KindNotFound}, "not found"},
		{"aborted with reason", &Error{Kind: KindAborted, Reason: "version mismatch"}, "aborted: version mismatch"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("Error() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := &Error{Kind: KindDatabase, Err: cause}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected errors.Is to find wrapped cause")
	}
	if errors.Unwrap(wrapped) != cause {
		t.Fatalf("Unwrap() did not return the original cause")
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := &Error{Kind: KindNotFound, Message: "doc 123"}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected errors.Is(err, ErrNotFound) to match on Kind")
	}
	if errors.Is(err, ErrAborted) {
		t.Fatalf("did not expect KindNotFound to match ErrAborted")
	}
}

func TestMapSQLiteErrNilIsNil(t *testing.T) {
	if mapSQLiteErr("op", "field", nil) != nil {
		t.Fatalf("expected nil error to map to nil")
	}
}

func TestMapSQLiteErrNoRowsBecomesNotFound(t *testing.T) {
	got := mapSQLiteErr("findOne", "", sql.ErrNoRows)
	var de *Error
	if !errors.As(got, &de) {
		t.Fatalf("expected *Error, got %T", got)
	}
	if de.Kind != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", de.Kind)
	}
}

func TestMapSQLiteErrUniqueConstraint(t *testing.T) {
	src := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	got := mapSQLiteErr("insertOne", "email", src)
	var de *Error
	if !errors.As(got, &de) {
		t.Fatalf("expected *Error, got %T", got)
	}
	if de.Kind != KindUniqueConstraint {
		t.Fatalf("expected KindUniqueConstraint, got %v", de.Kind)
	}
	if de.Field != "email" {
		t.Fatalf("expected field %q, got %q", "email", de.Field)
	}
}

func TestMapSQLiteErrGenericConstraint(t *testing.T) {
	src := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}
	got := mapSQLiteErr("insertOne", "", src)
	var de *Error
	if !errors.As(got, &de) {
		t.Fatalf("expected *Error, got %T", got)
	}
	if de.Kind != KindConstraint {
		t.Fatalf("expected KindConstraint, got %v", de.Kind)
	}
}

func TestMapSQLiteErrBusyIsDatabaseKind(t *testing.T) {
	src := sqlite3.Error{Code: sqlite3.ErrBusy}
	got := mapSQLiteErr("exec", "", src)
	var de *Error
	if !errors.As(got, &de) {
		t.Fatalf("expected *Error, got %T", got)
	}
	if de.Kind != KindDatabase {
		t.Fatalf("expected KindDatabase, got %v", de.Kind)
	}
}

func TestIsRetryableCode(t *testing.T) {
	if !isRetryableCode(sqlite3.Error{Code: sqlite3.ErrBusy}) {
		t.Fatalf("expected SQLITE_BUSY to be retryable")
	}
	if !isRetryableCode(sqlite3.Error{Code: sqlite3.ErrLocked}) {
		t.Fatalf("expected SQLITE_LOCKED to be retryable")
	}
	if isRetryableCode(errors.New("boom")) {
		t.Fatalf("expected non-sqlite3 error to be non-retryable")
	}
}
