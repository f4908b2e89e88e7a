package engine

// Insert flags.
const (
	Overwrite             = 0x0001
	Duplicate             = 0x0002
	DuplicateInsertBefore = 0x0004
	DuplicateInsertAfter  = 0x0008
	DuplicateInsertFirst  = 0x0010
	DuplicateInsertLast   = 0x0020
	DirectAccess          = 0x0040
	Partial               = 0x0080

	// DuplicatePositionMask covers the relative duplicate placement flags.
	DuplicatePositionMask = DuplicateInsertBefore | DuplicateInsertAfter |
		DuplicateInsertFirst | DuplicateInsertLast
)

// Cursor movement flags.
const (
	CursorFirst     = 0x0001
	CursorLast      = 0x0002
	CursorNext      = 0x0004
	CursorPrevious  = 0x0008
	SkipDuplicates  = 0x0010
	OnlyDuplicates  = 0x0020
	CursorDirection = CursorFirst | CursorLast | CursorNext | CursorPrevious
)

// Find flags for approximate matching.
const (
	FindLTMatch = 0x1000
	FindGTMatch = 0x2000
	FindEQMatch = 0x4000
)

// Environment and database flags.
const (
	WriteThrough        = 0x00000001
	ReadOnly            = 0x00000004
	InMemory            = 0x00000080
	DisableMmap         = 0x00000200
	CacheStrict         = 0x00000400
	EnableDuplicateKeys = 0x00004000
	EnableRecovery      = 0x00008000
	AutoRecovery        = 0x00010000
	EnableTransactions  = 0x00020000
	CacheUnlimited      = 0x00040000
)

// Close flags.
const (
	AutoCleanup   = 1
	TxnAutoAbort  = 4
	TxnAutoCommit = 8
)

// Transaction flags.
const (
	TxnReadOnly  = 1
	TxnTemporary = 2
)

// Parameter names.
const (
	ParamCacheSize         = 0x00000100
	ParamPageSize          = 0x00000101
	ParamKeySize           = 0x00000102
	ParamMaxDatabases      = 0x00000103
	ParamKeyType           = 0x00000104
	ParamNetworkTimeoutSec = 0x00000107
	ParamRecordSize        = 0x00000108
	ParamFlags             = 0x00000200
	ParamFileMode          = 0x00000201
	ParamFilename          = 0x00000202
	ParamDatabaseName      = 0x00000203
	ParamMaxKeysPerPage    = 0x00000204
	ParamRecordCompression = 0x00001001
	ParamKeyCompression    = 0x00001002
)

// Key types for ParamKeyType.
const (
	TypeBinary = 0
	TypeCustom = 1
	TypeUint8  = 3
	TypeUint16 = 5
	TypeUint32 = 7
	TypeUint64 = 9
	TypeReal32 = 11
	TypeReal64 = 12
)

// Compressor identifiers for ParamRecordCompression and ParamKeyCompression.
const (
	CompressorNone   = 0
	CompressorZlib   = 1
	CompressorSnappy = 2
	CompressorLZF    = 3
	CompressorLZOP   = 4
)

// Size sentinels.
const (
	KeySizeUnlimited    = 0xffff
	RecordSizeUnlimited = 0xffffffff
)

// Database name limits. Names at or above FirstReservedName belong to the
// engine.
const (
	FirstReservedName = 0xf000
	PrivateDBName     = 0xf001
)
