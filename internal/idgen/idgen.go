// Package idgen generates time-sortable document identifiers and reads the
// wall clock once per logical operation.
package idgen

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh 128-bit time-sortable identifier in canonical
// 36-character hyphenated form. The top 48 bits encode the issuance time in
// Unix milliseconds (RFC 9562 UUIDv7); the remainder is crypto/rand entropy,
// so lexicographic order of the string matches issuance order at millisecond
// resolution.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// crypto/rand failed; fall back to a random v4 id rather than
		// returning the error. The document is still uniquely identified, it
		// simply loses the time-sortable property for this one id. uuid.New
		// panics if its own crypto/rand read fails as well.
		return uuid.New().String()
	}
	return id.String()
}

// NowMS returns the current wall-clock time in milliseconds since the Unix
// epoch. Callers read it exactly once per operation and pass the value down,
// so that a single operation observes a single instant.
func NowMS() int64 {
	return time.Now().UnixMilli()
}
