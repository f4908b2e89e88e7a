package hamgo

import (
	"errors"
	"fmt"

	"github.com/Giulio2002/hamgo/internal/engine"
)

// Error represents an engine failure with its status code
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hamgo: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("hamgo: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, NewError(ErrKeyNotFound)) matches any key-not-found failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrorCode is an engine status code. The values are fixed by the storage
// format and never change.
type ErrorCode int

// Error codes
const (
	// Success indicates the operation completed successfully
	Success ErrorCode = 0

	// ErrInvRecordSize indicates a record does not match the fixed record size
	ErrInvRecordSize ErrorCode = -2

	// ErrInvKeySize indicates a key does not match the fixed key size
	ErrInvKeySize ErrorCode = -3

	// ErrInvPageSize indicates an unsupported page size
	ErrInvPageSize ErrorCode = -4

	ErrOutOfMemory ErrorCode = -6

	// ErrNotInitialized indicates the object holds no engine handle
	ErrNotInitialized ErrorCode = -7

	// ErrInvParameter indicates an invalid flag, parameter or argument
	ErrInvParameter ErrorCode = -8

	// ErrInvFileHeader indicates the file is not a database file
	ErrInvFileHeader ErrorCode = -9

	// ErrInvFileVersion indicates the file was written by a newer version
	ErrInvFileVersion ErrorCode = -10

	// ErrKeyNotFound indicates the key does not exist
	ErrKeyNotFound ErrorCode = -11

	// ErrDuplicateKey indicates the key exists and neither overwrite nor
	// duplicate was requested
	ErrDuplicateKey ErrorCode = -12

	ErrIntegrityViolated ErrorCode = -13
	ErrInternal          ErrorCode = -14

	// ErrWriteProtected indicates a write to a read-only database
	ErrWriteProtected ErrorCode = -15

	ErrBlobNotFound ErrorCode = -16

	// ErrPrefixRequestFullKey is returned by a prefix comparator that needs
	// the full keys to decide
	ErrPrefixRequestFullKey ErrorCode = -17

	ErrIO             ErrorCode = -18
	ErrCacheFull      ErrorCode = -19
	ErrNotImplemented ErrorCode = -20
	ErrFileNotFound   ErrorCode = -21

	// ErrWouldBlock indicates the file is locked by another environment
	ErrWouldBlock ErrorCode = -22

	// ErrNotReady indicates a custom-typed database without a comparator
	ErrNotReady ErrorCode = -23

	ErrLimitsReached      ErrorCode = -24
	ErrAccessDenied       ErrorCode = -25
	ErrAlreadyInitialized ErrorCode = -27

	// ErrNeedRecovery indicates the file was not closed cleanly
	ErrNeedRecovery ErrorCode = -28

	// ErrCursorStillOpen indicates a transaction still has cursors
	ErrCursorStillOpen ErrorCode = -29

	ErrFilterNotFound ErrorCode = -30

	// ErrTxnConflict indicates the key is locked by another transaction
	ErrTxnConflict ErrorCode = -31

	ErrKeyErasedInTxn ErrorCode = -32
	ErrTxnStillOpen   ErrorCode = -33

	// ErrCursorIsNil indicates the cursor does not point to an item
	ErrCursorIsNil ErrorCode = -100

	ErrDatabaseNotFound       ErrorCode = -200
	ErrDatabaseAlreadyExists  ErrorCode = -201
	ErrDatabaseAlreadyOpen    ErrorCode = -202
	ErrEnvironmentAlreadyOpen ErrorCode = -203
	ErrLogInvFileHeader       ErrorCode = -300

	// ErrNetwork indicates a remote environment could not be reached
	ErrNetwork ErrorCode = -400
)

// Error descriptions
var errorMessages = map[ErrorCode]string{
	Success:                   "Success",
	ErrInvRecordSize:          "Invalid record size",
	ErrInvKeySize:             "Invalid key size",
	ErrInvPageSize:            "Invalid page size",
	ErrOutOfMemory:            "Out of memory",
	ErrNotInitialized:         "Object not initialized",
	ErrInvParameter:           "Invalid parameter",
	ErrInvFileHeader:          "Invalid database file header",
	ErrInvFileVersion:         "Invalid database file version",
	ErrKeyNotFound:            "Key not found",
	ErrDuplicateKey:           "Duplicate key",
	ErrIntegrityViolated:      "Internal integrity violated",
	ErrInternal:               "Internal error",
	ErrWriteProtected:         "Database opened in read-only mode",
	ErrBlobNotFound:           "Data blob not found",
	ErrPrefixRequestFullKey:   "Comparator needs more data",
	ErrIO:                     "System I/O error",
	ErrCacheFull:              "Database cache is full",
	ErrNotImplemented:         "Operation not implemented",
	ErrFileNotFound:           "File not found",
	ErrWouldBlock:             "Operation would block",
	ErrNotReady:               "Object was not initialized correctly",
	ErrLimitsReached:          "Database limits reached",
	ErrAccessDenied:           "Access denied",
	ErrAlreadyInitialized:     "Object was already initialized",
	ErrNeedRecovery:           "Database needs recovery",
	ErrCursorStillOpen:        "Cursor must be closed prior to Transaction abort/commit",
	ErrFilterNotFound:         "Record filter or file filter not found",
	ErrTxnConflict:            "Operation conflicts with another Transaction",
	ErrKeyErasedInTxn:         "Key was erased in a Transaction",
	ErrTxnStillOpen:           "Database cannot be closed because it is modified in a Transaction",
	ErrCursorIsNil:            "Cursor points to NIL",
	ErrDatabaseNotFound:       "Database not found",
	ErrDatabaseAlreadyExists:  "Database name already exists",
	ErrDatabaseAlreadyOpen:    "Database already open, or: Database handle already initialized",
	ErrEnvironmentAlreadyOpen: "Environment already open, or: Environment handle already initialized",
	ErrLogInvFileHeader:       "Invalid log file header",
	ErrNetwork:                "Remote I/O error/Network error",
}

// Strerror returns the message for code, or "Unknown error".
func Strerror(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Unknown error"
}

// NewError creates a new Error with the given code
func NewError(code ErrorCode) *Error {
	return &Error{Code: code, Message: Strerror(code)}
}

// WrapError creates a new Error wrapping another error
func WrapError(code ErrorCode, err error) *Error {
	e := NewError(code)
	e.Err = err
	return e
}

// Caller-contract errors. They never reach the engine.
var (
	// ErrInvalidArgument reports a nil key, record or parameter entry, or a
	// contradictory flag combination.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed reports use of a cursor, transaction or owner whose handle
	// was already released.
	ErrClosed = errors.New("handle is closed")
)

// errClosed is the error returned by operations on a released handle.
func errClosed() error {
	return WrapError(ErrNotInitialized, ErrClosed)
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// statusError translates an engine status; success becomes nil.
func statusError(st engine.Status) error {
	if st == engine.StatusSuccess {
		return nil
	}
	return NewError(ErrorCode(st))
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsNotFound returns true if the error is ErrKeyNotFound
func IsNotFound(err error) bool {
	return hasCode(err, ErrKeyNotFound)
}

// IsDuplicateKey returns true if the error is ErrDuplicateKey
func IsDuplicateKey(err error) bool {
	return hasCode(err, ErrDuplicateKey)
}

// IsCursorNil returns true if the cursor did not point to an item
func IsCursorNil(err error) bool {
	return hasCode(err, ErrCursorIsNil)
}

// IsInvalidParameter returns true for engine parameter errors and for
// caller-contract violations.
func IsInvalidParameter(err error) bool {
	return hasCode(err, ErrInvParameter) || errors.Is(err, ErrInvalidArgument)
}

// IsReadOnly returns true if a write hit a read-only database
func IsReadOnly(err error) bool {
	return hasCode(err, ErrWriteProtected)
}

// IsNetworkError returns true if a remote environment could not be reached
func IsNetworkError(err error) bool {
	return hasCode(err, ErrNetwork)
}

// Code returns the error code from an error, ErrInvParameter for
// caller-contract errors, or ErrInternal if not a hamgo error
func Code(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, ErrInvalidArgument) {
		return ErrInvParameter
	}
	return ErrInternal
}
