package local

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zlib"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Giulio2002/hamgo/internal/engine"
)

// formatVersion is written into the meta document of every file. Files with a
// newer version are refused.
const formatVersion = 1

var errUnsupportedCompressor = errors.New("unsupported compressor")

// dbConfig is the persistent configuration of one database.
type dbConfig struct {
	Name              uint16 `bson:"name"`
	Flags             uint32 `bson:"flags"`
	KeyType           uint32 `bson:"key_type"`
	KeySize           uint32 `bson:"key_size"`
	RecordSize        uint32 `bson:"record_size"`
	RecordCompression uint32 `bson:"record_compression"`
}

// envMeta is the document stored under the meta bucket.
type envMeta struct {
	Version      int32      `bson:"version"`
	Flags        uint32     `bson:"flags"`
	PageSize     uint32     `bson:"page_size"`
	MaxDatabases uint32     `bson:"max_databases"`
	Dirty        bool       `bson:"dirty"`
	Databases    []dbConfig `bson:"databases"`
}

func (m *envMeta) lookup(name uint16) (int, bool) {
	for i := range m.Databases {
		if m.Databases[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// recordList is the stored value of one key: its duplicates in order.
type recordList struct {
	Records [][]byte `bson:"r"`
}

func checkCompressor(id uint32) engine.Status {
	switch id {
	case engine.CompressorNone, engine.CompressorZlib, engine.CompressorSnappy:
		return engine.StatusSuccess
	case engine.CompressorLZF, engine.CompressorLZOP:
		return engine.StatusNotImplemented
	}
	return engine.StatusInvParameter
}

func compress(id uint32, data []byte) ([]byte, error) {
	switch id {
	case engine.CompressorNone:
		return data, nil
	case engine.CompressorZlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case engine.CompressorSnappy:
		return s2.EncodeSnappy(nil, data), nil
	}
	return nil, fmt.Errorf("%w: %d", errUnsupportedCompressor, id)
}

func decompress(id uint32, data []byte) ([]byte, error) {
	switch id {
	case engine.CompressorNone:
		return data, nil
	case engine.CompressorZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case engine.CompressorSnappy:
		return s2.Decode(nil, data)
	}
	return nil, fmt.Errorf("%w: %d", errUnsupportedCompressor, id)
}

// encodeRecords serializes a duplicate list, compressing each record.
func encodeRecords(compressor uint32, recs [][]byte) ([]byte, error) {
	list := recordList{Records: make([][]byte, len(recs))}
	for i, r := range recs {
		c, err := compress(compressor, r)
		if err != nil {
			return nil, err
		}
		list.Records[i] = c
	}
	return bson.Marshal(list)
}

func decodeRecords(compressor uint32, data []byte) ([][]byte, error) {
	var list recordList
	if err := bson.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	for i, r := range list.Records {
		d, err := decompress(compressor, r)
		if err != nil {
			return nil, err
		}
		if d == nil {
			d = []byte{}
		}
		list.Records[i] = d
	}
	return list.Records, nil
}
