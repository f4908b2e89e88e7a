// Package engine declares the call surface of the storage engine behind the
// hamgo binding.
//
// The surface is deliberately C-shaped: resources are identified by opaque
// integer handles and every call reports an integer Status. Implementations
// live in sub-packages (local, remote); the binding never sees their types.
package engine

// Handle is an opaque token identifying a live engine resource
// (environment, database, cursor or transaction). Zero means no resource.
type Handle uint32

// Status is an engine status code. Zero is success, negative values are
// failures (see the Status constants).
type Status int32

// Status codes. The values are part of the engine contract and never change.
const (
	StatusSuccess                Status = 0
	StatusInvRecordSize          Status = -2
	StatusInvKeySize             Status = -3
	StatusInvPageSize            Status = -4
	StatusOutOfMemory            Status = -6
	StatusNotInitialized         Status = -7
	StatusInvParameter           Status = -8
	StatusInvFileHeader          Status = -9
	StatusInvFileVersion         Status = -10
	StatusKeyNotFound            Status = -11
	StatusDuplicateKey           Status = -12
	StatusIntegrityViolated      Status = -13
	StatusInternalError          Status = -14
	StatusWriteProtected         Status = -15
	StatusBlobNotFound           Status = -16
	StatusPrefixRequestFullKey   Status = -17
	StatusIOError                Status = -18
	StatusCacheFull              Status = -19
	StatusNotImplemented         Status = -20
	StatusFileNotFound           Status = -21
	StatusWouldBlock             Status = -22
	StatusNotReady               Status = -23
	StatusLimitsReached          Status = -24
	StatusAccessDenied           Status = -25
	StatusAlreadyInitialized     Status = -27
	StatusNeedRecovery           Status = -28
	StatusCursorStillOpen        Status = -29
	StatusFilterNotFound         Status = -30
	StatusTxnConflict            Status = -31
	StatusKeyErasedInTxn         Status = -32
	StatusTxnStillOpen           Status = -33
	StatusCursorIsNil            Status = -100
	StatusDatabaseNotFound       Status = -200
	StatusDatabaseAlreadyExists  Status = -201
	StatusDatabaseAlreadyOpen    Status = -202
	StatusEnvironmentAlreadyOpen Status = -203
	StatusLogInvFileHeader       Status = -300
	StatusNetworkError           Status = -400
)

// Message levels passed to an ErrorHandlerFunc.
const (
	LevelDebug  = 0
	LevelNormal = 1
	LevelFatal  = 3
)

// Param is a named configuration value. Get-parameter calls fill Value and
// String in place.
type Param struct {
	Name   uint32
	Value  uint64
	String string
}

// CompareFunc orders two keys: negative, zero or positive.
type CompareFunc func(lhs, rhs []byte) int

// PrefixCompareFunc orders two key prefixes. lhsLen and rhsLen are the full
// key lengths. Returning StatusPrefixRequestFullKey asks for a full compare.
type PrefixCompareFunc func(lhs []byte, lhsLen int, rhs []byte, rhsLen int) int

// ErrorHandlerFunc receives diagnostic messages emitted by the engine.
type ErrorHandlerFunc func(level int, message string)

// Engine is the complete operation set the binding may call. Implementations
// must not assume concurrent calls against handles derived from the same
// environment; the binding serializes those.
type Engine interface {
	Version() (major, minor, revision uint32)
	License() (licensee, product string)
	SetErrorHandler(fn ErrorHandlerFunc)

	EnvNew() Handle
	EnvDelete(env Handle)
	EnvCreate(env Handle, filename string, flags, mode uint32, params []Param) Status
	EnvOpen(env Handle, filename string, flags uint32, params []Param) Status
	EnvCreateDB(env, db Handle, name uint16, flags uint32, params []Param) Status
	EnvOpenDB(env, db Handle, name uint16, flags uint32, params []Param) Status
	EnvRenameDB(env Handle, oldName, newName uint16, flags uint32) Status
	EnvEraseDB(env Handle, name uint16, flags uint32) Status
	EnvDatabaseNames(env Handle) ([]uint16, Status)
	EnvGetParameters(env Handle, params []Param) Status
	EnvFlush(env Handle) Status
	EnvClose(env Handle, flags uint32) Status

	DBNew() Handle
	DBDelete(db Handle)
	DBCreate(db Handle, filename string, flags, mode uint32, params []Param) Status
	DBOpen(db Handle, filename string, flags uint32, params []Param) Status
	DBGetError(db Handle) Status
	DBSetCompare(db Handle, fn CompareFunc) Status
	DBSetPrefixCompare(db Handle, fn PrefixCompareFunc) Status
	DBGetParameters(db Handle, params []Param) Status
	DBInsert(db, txn Handle, key, record []byte, flags uint32) Status
	DBFind(db, txn Handle, key []byte, flags uint32) ([]byte, Status)
	DBErase(db, txn Handle, key []byte, flags uint32) Status
	DBKeyCount(db, txn Handle, flags uint32) (uint64, Status)
	DBFlush(db Handle) Status
	DBClose(db Handle, flags uint32) Status

	CursorCreate(db, txn Handle, flags uint32) Handle
	CursorClone(cursor Handle) Handle
	CursorMove(cursor Handle, flags uint32) Status
	CursorKey(cursor Handle) ([]byte, Status)
	CursorRecord(cursor Handle) ([]byte, Status)
	CursorOverwrite(cursor Handle, record []byte, flags uint32) Status
	CursorFind(cursor Handle, key []byte, flags uint32) Status
	CursorInsert(cursor Handle, key, record []byte, flags uint32) Status
	CursorErase(cursor Handle, flags uint32) Status
	CursorDuplicateCount(cursor Handle, flags uint32) (uint32, Status)
	CursorRecordSize(cursor Handle) (uint64, Status)
	CursorClose(cursor Handle) Status

	TxnBegin(env Handle, flags uint32) (Handle, Status)
	TxnCommit(txn Handle, flags uint32) Status
	TxnAbort(txn Handle, flags uint32) Status
}
