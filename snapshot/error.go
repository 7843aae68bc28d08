package snapshot

import "fmt"

// ErrorCode identifies a kind of snapshot error. Codes can be used as targets
// of errors.Is.
type ErrorCode uint8

const (
	// ErrMalformedSnapshot indicates a snapshot that could not be decoded
	// or whose member bitset does not fit the masternode list it is
	// replayed against.
	ErrMalformedSnapshot ErrorCode = iota

	// ErrMalformedSkipList indicates a skip list whose decoded positions
	// fall outside the candidate list, name a candidate that cannot have
	// been skipped or are left unconsumed after replay.
	ErrMalformedSkipList

	// ErrDatabase indicates a failure of the underlying snapshot database.
	ErrDatabase
)

var errorCodeStrings = map[ErrorCode]string{
	ErrMalformedSnapshot: "ErrMalformedSnapshot",
	ErrMalformedSkipList: "ErrMalformedSkipList",
	ErrDatabase:          "ErrDatabase",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}

	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error implements the error interface so that codes can be compared against
// with errors.Is.
func (e ErrorCode) Error() string {
	return e.String()
}

// Error provides a single type for errors that can happen during snapshot
// decoding, replay and storage.
type Error struct {
	// ErrorCode is the kind of the error.
	ErrorCode ErrorCode

	// Description is a human-readable description of the error.
	Description string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}

	return e.Description
}

// Unwrap returns the underlying error.
func (e Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the ErrorCode of e.
func (e Error) Is(target error) bool {
	code, ok := target.(ErrorCode)
	return ok && code == e.ErrorCode
}

// newError creates a new Error.
func newError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}
