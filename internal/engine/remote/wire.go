package remote

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Giulio2002/hamgo/internal/engine"
)

// Path prefix of every operation; the operation name follows it.
const PathPrefix = "/v1/"

// Operation names.
const (
	OpEnvCreate       = "env_create"
	OpEnvOpen         = "env_open"
	OpEnvCreateDB     = "env_create_db"
	OpEnvOpenDB       = "env_open_db"
	OpEnvRenameDB     = "env_rename_db"
	OpEnvEraseDB      = "env_erase_db"
	OpEnvNames        = "env_names"
	OpEnvParams       = "env_params"
	OpEnvFlush        = "env_flush"
	OpEnvClose        = "env_close"
	OpDBCreate        = "db_create"
	OpDBOpen          = "db_open"
	OpDBError         = "db_error"
	OpDBParams        = "db_params"
	OpDBInsert        = "db_insert"
	OpDBFind          = "db_find"
	OpDBErase         = "db_erase"
	OpDBCount         = "db_count"
	OpDBFlush         = "db_flush"
	OpDBClose         = "db_close"
	OpCursorCreate    = "cursor_create"
	OpCursorClone     = "cursor_clone"
	OpCursorMove      = "cursor_move"
	OpCursorKey       = "cursor_key"
	OpCursorRecord    = "cursor_record"
	OpCursorOverwrite = "cursor_overwrite"
	OpCursorFind      = "cursor_find"
	OpCursorInsert    = "cursor_insert"
	OpCursorErase     = "cursor_erase"
	OpCursorDupCount  = "cursor_dup_count"
	OpCursorRecSize   = "cursor_rec_size"
	OpCursorClose     = "cursor_close"
	OpTxnBegin        = "txn_begin"
	OpTxnCommit       = "txn_commit"
	OpTxnAbort        = "txn_abort"
)

// Param is the wire form of engine.Param.
type Param struct {
	Name   uint32 `bson:"n"`
	Value  uint64 `bson:"v"`
	String string `bson:"s,omitempty"`
}

// Request is the body of every operation. Handles are the server's.
type Request struct {
	Handle   uint32  `bson:"h,omitempty"`
	Txn      uint32  `bson:"txn,omitempty"`
	Filename string  `bson:"f,omitempty"`
	Flags    uint32  `bson:"fl,omitempty"`
	Mode     uint32  `bson:"m,omitempty"`
	Name     uint16  `bson:"n,omitempty"`
	NewName  uint16  `bson:"nn,omitempty"`
	Key      []byte  `bson:"k"`
	Record   []byte  `bson:"r"`
	Params   []Param `bson:"p,omitempty"`
}

// Response carries the status and whatever the operation returns.
type Response struct {
	Status int32    `bson:"st"`
	Handle uint32   `bson:"h,omitempty"`
	Key    []byte   `bson:"k,omitempty"`
	Record []byte   `bson:"r,omitempty"`
	Count  uint64   `bson:"c,omitempty"`
	Names  []uint16 `bson:"names,omitempty"`
	Params []Param  `bson:"p,omitempty"`
}

func ToWire(params []engine.Param) []Param {
	if len(params) == 0 {
		return nil
	}
	out := make([]Param, len(params))
	for i, p := range params {
		out[i] = Param{Name: p.Name, Value: p.Value, String: p.String}
	}
	return out
}

func FromWire(params []Param) []engine.Param {
	if len(params) == 0 {
		return nil
	}
	out := make([]engine.Param, len(params))
	for i, p := range params {
		out[i] = engine.Param{Name: p.Name, Value: p.Value, String: p.String}
	}
	return out
}

// Marshal encodes a request or response.
func Marshal(v any) ([]byte, error) {
	return bson.Marshal(v)
}

// Unmarshal decodes a request or response.
func Unmarshal(data []byte, v any) error {
	return bson.Unmarshal(data, v)
}
