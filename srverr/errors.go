// Package srverr defines the error kinds of the frontend protocol error
// packet and the mapping from engine-level failures to them.
package srverr

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Kind identifies one of the error categories a client-facing error packet
// can carry.
type Kind string

const (
	KindParseError          Kind = "ParseError"
	KindPermissionDenied    Kind = "PermissionDenied"
	KindReadOnlyViolation   Kind = "ReadOnlyViolation"
	KindBusy                Kind = "Busy"
	KindUniqueViolation     Kind = "UniqueViolation"
	KindIOError             Kind = "IOError"
	KindProtocolError       Kind = "ProtocolError"
	KindImplicitCommitError Kind = "ImplicitCommitError"
	KindNetworkError        Kind = "NetworkError"
	KindTimeout             Kind = "Timeout"
)

// kindInfo carries the canonical SQLSTATE and frontend wire error code for
// each kind, mirroring a MySQL-style (SQLSTATE, ER_xxx) pair.
var kindInfo = map[Kind]struct {
	sqlstate string
	code     uint16
}{
	KindParseError:          {"42000", 1064}, // ER_PARSE_ERROR
	KindPermissionDenied:    {"42000", 1044}, // ER_DBACCESS_DENIED_ERROR
	KindReadOnlyViolation:   {"25006", 1792}, // ER_CANT_EXECUTE_IN_READ_ONLY_TRANSACTION
	KindBusy:                {"HY000", 1205}, // ER_LOCK_WAIT_TIMEOUT
	KindUniqueViolation:     {"23000", 1062}, // ER_DUP_ENTRY
	KindIOError:             {"HY000", 1030}, // ER_GET_ERRNO
	KindProtocolError:       {"08P01", 1835}, // ER_MALFORMED_PACKET
	KindImplicitCommitError: {"40000", 1180}, // ER_ERROR_DURING_COMMIT
	KindNetworkError:        {"08S01", 2013}, // ER_SERVER_LOST
	KindTimeout:             {"HY000", 1159}, // ER_NET_READ_INTERRUPTED
}

// Error is the typed error carried through the server, wrapping the
// underlying cause while attaching the protocol-facing kind.
type Error struct {
	Kind     Kind
	SQLSTATE string
	Code     uint16
	Message  string
	Position int // byte offset, meaningful for KindParseError; -1 otherwise
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, cause error) *Error {
	info := kindInfo[kind]
	return &Error{
		Kind:     kind,
		SQLSTATE: info.sqlstate,
		Code:     info.code,
		Message:  message,
		Position: -1,
		Err:      cause,
	}
}

// NewParseError builds a ParseError at a given byte offset into the
// original statement text.
func NewParseError(position int, format string, args ...any) *Error {
	e := newError(KindParseError, fmt.Sprintf(format, args...), nil)
	e.Position = position
	return e
}

func NewPermissionDenied(format string, args ...any) *Error {
	return newError(KindPermissionDenied, fmt.Sprintf(format, args...), nil)
}

func NewReadOnlyViolation(format string, args ...any) *Error {
	return newError(KindReadOnlyViolation, fmt.Sprintf(format, args...), nil)
}

func NewBusy(cause error, format string, args ...any) *Error {
	return newError(KindBusy, fmt.Sprintf(format, args...), cause)
}

func NewUniqueViolation(cause error, format string, args ...any) *Error {
	return newError(KindUniqueViolation, fmt.Sprintf(format, args...), cause)
}

func NewIOError(cause error, format string, args ...any) *Error {
	return newError(KindIOError, fmt.Sprintf(format, args...), cause)
}

func NewProtocolError(format string, args ...any) *Error {
	return newError(KindProtocolError, fmt.Sprintf(format, args...), nil)
}

func NewImplicitCommitError(cause error, format string, args ...any) *Error {
	return newError(KindImplicitCommitError, fmt.Sprintf(format, args...), cause)
}

func NewNetworkError(cause error, format string, args ...any) *Error {
	return newError(KindNetworkError, fmt.Sprintf(format, args...), cause)
}

func NewTimeout(format string, args ...any) *Error {
	return newError(KindTimeout, fmt.Sprintf(format, args...), nil)
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// FromSQLite maps an error returned by the engine driver into the
// server's kind taxonomy. Non-sqlite3 errors are wrapped as IOError.
func FromSQLite(err error, statement string) *Error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		return se
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return NewBusy(err, "database is locked: %s", statement)
		case sqlite3.ErrConstraint:
			if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
				return NewUniqueViolation(err, "duplicate entry for statement: %s", statement)
			}
			return NewPermissionDenied("constraint violation: %s", statement)
		case sqlite3.ErrReadonly:
			return NewReadOnlyViolation("read-only database: %s", statement)
		case sqlite3.ErrInterrupt:
			return newError(KindTimeout, "statement canceled", err)
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrFull, sqlite3.ErrNotADB:
			return NewIOError(err, "engine I/O error for statement: %s", statement)
		default:
			return NewParseError(-1, "%v", err)
		}
	}

	return NewIOError(err, "engine error: %v", err)
}
