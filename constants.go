package hamgo

import "github.com/Giulio2002/hamgo/internal/engine"

// Insert flags
const (
	// Overwrite replaces the record of an existing key
	Overwrite = engine.Overwrite

	// Duplicate adds the record as a duplicate of an existing key
	Duplicate = engine.Duplicate

	// DuplicateInsertBefore places the duplicate before the cursor's one
	DuplicateInsertBefore = engine.DuplicateInsertBefore

	// DuplicateInsertAfter places the duplicate after the cursor's one
	DuplicateInsertAfter = engine.DuplicateInsertAfter

	// DuplicateInsertFirst makes the duplicate the first of its key
	DuplicateInsertFirst = engine.DuplicateInsertFirst

	// DuplicateInsertLast makes the duplicate the last of its key
	DuplicateInsertLast = engine.DuplicateInsertLast

	// DirectAccess returns records without copying (in-memory only)
	DirectAccess = engine.DirectAccess

	Partial = engine.Partial
)

// Cursor movement flags
const (
	CursorFirst    = engine.CursorFirst
	CursorLast     = engine.CursorLast
	CursorNext     = engine.CursorNext
	CursorPrevious = engine.CursorPrevious

	// SkipDuplicates moves over duplicates of the current key
	SkipDuplicates = engine.SkipDuplicates

	// OnlyDuplicates restricts movement to duplicates of the current key
	OnlyDuplicates = engine.OnlyDuplicates
)

// Approximate matching flags for Cursor.FindNear
const (
	// FindLTMatch accepts the nearest smaller key
	FindLTMatch = engine.FindLTMatch

	// FindGTMatch accepts the nearest greater key
	FindGTMatch = engine.FindGTMatch

	// FindEQMatch accepts an exact match
	FindEQMatch = engine.FindEQMatch

	FindLEQMatch = FindLTMatch | FindEQMatch
	FindGEQMatch = FindGTMatch | FindEQMatch
)

// Environment and database flags
const (
	// WriteThrough syncs every write to disk
	WriteThrough = engine.WriteThrough

	// ReadOnly opens the file without write access
	ReadOnly = engine.ReadOnly

	// InMemory keeps everything in memory; no file is written
	InMemory = engine.InMemory

	DisableMmap = engine.DisableMmap
	CacheStrict = engine.CacheStrict

	// EnableDuplicateKeys allows several records per key
	EnableDuplicateKeys = engine.EnableDuplicateKeys

	EnableRecovery = engine.EnableRecovery

	// AutoRecovery opens a file that was not closed cleanly
	AutoRecovery = engine.AutoRecovery

	// EnableTransactions allows Environment.Begin
	EnableTransactions = engine.EnableTransactions

	CacheUnlimited = engine.CacheUnlimited
)

// Close flags
const (
	// AutoCleanup closes databases and cursors along with their owner
	AutoCleanup = engine.AutoCleanup

	// TxnAutoAbort aborts transactions still open at close
	TxnAutoAbort = engine.TxnAutoAbort

	// TxnAutoCommit commits transactions still open at close
	TxnAutoCommit = engine.TxnAutoCommit
)

// Transaction flags
const (
	TxnReadOnly  = engine.TxnReadOnly
	TxnTemporary = engine.TxnTemporary
)

// Parameter names
const (
	ParamCacheSize         = engine.ParamCacheSize
	ParamPageSize          = engine.ParamPageSize
	ParamKeySize           = engine.ParamKeySize
	ParamMaxDatabases      = engine.ParamMaxDatabases
	ParamKeyType           = engine.ParamKeyType
	ParamNetworkTimeoutSec = engine.ParamNetworkTimeoutSec
	ParamRecordSize        = engine.ParamRecordSize
	ParamFlags             = engine.ParamFlags
	ParamFileMode          = engine.ParamFileMode
	ParamFilename          = engine.ParamFilename
	ParamDatabaseName      = engine.ParamDatabaseName
	ParamMaxKeysPerPage    = engine.ParamMaxKeysPerPage
	ParamRecordCompression = engine.ParamRecordCompression
	ParamKeyCompression    = engine.ParamKeyCompression
)

// Key types for ParamKeyType
const (
	// TypeBinary orders keys bytewise
	TypeBinary = engine.TypeBinary

	// TypeCustom orders keys with the installed Comparator
	TypeCustom = engine.TypeCustom

	// Numeric types hold little-endian keys of a fixed width
	TypeUint8  = engine.TypeUint8
	TypeUint16 = engine.TypeUint16
	TypeUint32 = engine.TypeUint32
	TypeUint64 = engine.TypeUint64
	TypeReal32 = engine.TypeReal32
	TypeReal64 = engine.TypeReal64
)

// Compressors for ParamRecordCompression and ParamKeyCompression
const (
	CompressorNone   = engine.CompressorNone
	CompressorZlib   = engine.CompressorZlib
	CompressorSnappy = engine.CompressorSnappy
	CompressorLZF    = engine.CompressorLZF
	CompressorLZOP   = engine.CompressorLZOP
)

// Size limits
const (
	// KeySizeUnlimited lifts the fixed key size
	KeySizeUnlimited = engine.KeySizeUnlimited

	// RecordSizeUnlimited lifts the fixed record size
	RecordSizeUnlimited = engine.RecordSizeUnlimited
)

// Message levels passed to an ErrorHandler
const (
	LevelDebug  = engine.LevelDebug
	LevelNormal = engine.LevelNormal
	LevelFatal  = engine.LevelFatal
)
