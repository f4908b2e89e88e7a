package local

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Giulio2002/hamgo/internal/engine"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(WithLogger(zaptest.NewLogger(t)), WithLockTimeout(50*time.Millisecond))
}

// createEnv creates an environment with one database named 1.
func createEnv(t *testing.T, e *Engine, path string, envFlags, dbFlags uint32, dbParams ...engine.Param) (engine.Handle, engine.Handle) {
	t.Helper()
	env := e.EnvNew()
	require.Equal(t, engine.StatusSuccess, e.EnvCreate(env, path, envFlags, 0o644, nil))
	db := e.DBNew()
	require.Equal(t, engine.StatusSuccess, e.EnvCreateDB(env, db, 1, dbFlags, dbParams))
	return env, db
}

func TestInsertFindErase(t *testing.T) {
	e := newTestEngine(t)
	_, db := createEnv(t, e, "", engine.InMemory, 0)

	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("k"), []byte("v1"), 0))
	require.Equal(t, engine.StatusDuplicateKey, e.DBInsert(db, 0, []byte("k"), []byte("v2"), 0))
	require.Equal(t, engine.StatusDuplicateKey, e.DBGetError(db))

	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("k"), []byte("v2"), engine.Overwrite))
	rec, st := e.DBFind(db, 0, []byte("k"), 0)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, []byte("v2"), rec)

	require.Equal(t, engine.StatusSuccess, e.DBErase(db, 0, []byte("k"), 0))
	assert.Equal(t, engine.StatusKeyNotFound, e.DBErase(db, 0, []byte("k"), 0))
	assert.Equal(t, engine.StatusKeyNotFound, e.DBErase(db, 0, []byte("k"), 0))
	_, st = e.DBFind(db, 0, []byte("k"), 0)
	assert.Equal(t, engine.StatusKeyNotFound, st)
}

func TestEmptyKeyAndRecord(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "empty.db")
	env, db := createEnv(t, e, path, 0, 0)

	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte{}, []byte{}, 0))
	require.Equal(t, engine.StatusSuccess, e.DBClose(db, 0))
	require.Equal(t, engine.StatusSuccess, e.EnvClose(env, 0))

	require.Equal(t, engine.StatusSuccess, e.EnvOpen(env, path, 0, nil))
	require.Equal(t, engine.StatusSuccess, e.EnvOpenDB(env, db, 1, 0, nil))
	rec, st := e.DBFind(db, 0, []byte{}, 0)
	require.Equal(t, engine.StatusSuccess, st)
	assert.NotNil(t, rec)
	assert.Empty(t, rec)
}

func TestInsertFlagValidation(t *testing.T) {
	e := newTestEngine(t)
	_, db := createEnv(t, e, "", engine.InMemory, 0)

	assert.Equal(t, engine.StatusInvParameter, e.DBInsert(db, 0, []byte("k"), []byte("v"), engine.Duplicate))
	assert.Equal(t, engine.StatusInvParameter, e.DBInsert(db, 0, []byte("k"), []byte("v"), engine.Overwrite|engine.Duplicate))
	assert.Equal(t, engine.StatusNotImplemented, e.DBInsert(db, 0, []byte("k"), []byte("v"), engine.Partial))

	path := filepath.Join(t.TempDir(), "direct.db")
	_, disk := createEnv(t, e, path, 0, 0)
	assert.Equal(t, engine.StatusInvParameter, e.DBInsert(disk, 0, []byte("k"), []byte("v"), engine.DirectAccess))
	assert.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("k"), []byte("v"), engine.DirectAccess))
}

func TestDuplicates(t *testing.T) {
	e := newTestEngine(t)
	_, db := createEnv(t, e, "", engine.InMemory, engine.EnableDuplicateKeys)

	for _, r := range []string{"a", "b", "c"} {
		require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("k"), []byte(r), engine.Duplicate))
	}
	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("z"), []byte("z"), 0))

	n, st := e.DBKeyCount(db, 0, 0)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, uint64(4), n)
	n, _ = e.DBKeyCount(db, 0, engine.SkipDuplicates)
	assert.Equal(t, uint64(2), n)

	c := e.CursorCreate(db, 0, 0)
	require.NotZero(t, c)
	require.Equal(t, engine.StatusSuccess, e.CursorFind(c, []byte("k"), 0))
	count, st := e.CursorDuplicateCount(c, 0)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, uint32(3), count)

	var got []string
	for st := e.CursorMove(c, engine.CursorFirst); st == engine.StatusSuccess; st = e.CursorMove(c, engine.CursorNext) {
		rec, _ := e.CursorRecord(c)
		got = append(got, string(rec))
	}
	assert.Equal(t, []string{"a", "b", "c", "z"}, got)

	got = got[:0]
	for st := e.CursorMove(c, engine.CursorFirst); st == engine.StatusSuccess; st = e.CursorMove(c, engine.CursorNext|engine.SkipDuplicates) {
		key, _ := e.CursorKey(c)
		got = append(got, string(key))
	}
	assert.Equal(t, []string{"k", "z"}, got)

	require.Equal(t, engine.StatusSuccess, e.CursorFind(c, []byte("k"), 0))
	require.Equal(t, engine.StatusSuccess, e.CursorMove(c, engine.CursorNext|engine.OnlyDuplicates))
	require.Equal(t, engine.StatusSuccess, e.CursorMove(c, engine.CursorNext|engine.OnlyDuplicates))
	assert.Equal(t, engine.StatusKeyNotFound, e.CursorMove(c, engine.CursorNext|engine.OnlyDuplicates))
	rec, _ := e.CursorRecord(c)
	assert.Equal(t, []byte("c"), rec)

	assert.Equal(t, engine.StatusInvParameter, e.CursorMove(c, engine.CursorNext|engine.CursorPrevious))
	assert.Equal(t, engine.StatusInvParameter, e.CursorMove(c, engine.CursorNext|engine.SkipDuplicates|engine.OnlyDuplicates))
}

func TestCursorRelativeDuplicateInsert(t *testing.T) {
	e := newTestEngine(t)
	_, db := createEnv(t, e, "", engine.InMemory, engine.EnableDuplicateKeys)
	c := e.CursorCreate(db, 0, 0)

	require.Equal(t, engine.StatusSuccess, e.CursorInsert(c, []byte("k"), []byte("m"), 0))
	require.Equal(t, engine.StatusSuccess, e.CursorInsert(c, []byte("k"), []byte("b"), engine.DuplicateInsertBefore))
	rec, _ := e.CursorRecord(c)
	assert.Equal(t, []byte("b"), rec)
	require.Equal(t, engine.StatusSuccess, e.CursorInsert(c, []byte("k"), []byte("c"), engine.DuplicateInsertAfter))
	require.Equal(t, engine.StatusSuccess, e.CursorInsert(c, []byte("k"), []byte("a"), engine.DuplicateInsertFirst))
	require.Equal(t, engine.StatusSuccess, e.CursorInsert(c, []byte("k"), []byte("z"), engine.DuplicateInsertLast))

	var got []string
	for st := e.CursorMove(c, engine.CursorFirst); st == engine.StatusSuccess; st = e.CursorMove(c, engine.CursorNext) {
		rec, _ := e.CursorRecord(c)
		got = append(got, string(rec))
	}
	assert.Equal(t, []string{"a", "b", "c", "m", "z"}, got)
}

func TestCursorMovement(t *testing.T) {
	e := newTestEngine(t)
	_, db := createEnv(t, e, "", engine.InMemory, 0)
	c := e.CursorCreate(db, 0, 0)

	assert.Equal(t, engine.StatusKeyNotFound, e.CursorMove(c, engine.CursorNext))
	assert.Equal(t, engine.StatusCursorIsNil, e.CursorMove(c, 0))
	_, st := e.CursorKey(c)
	assert.Equal(t, engine.StatusCursorIsNil, st)

	for i := byte(1); i <= 5; i++ {
		require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte{i}, []byte{i * 10}, 0))
	}
	steps := []struct {
		flags uint32
		key   byte
	}{
		{engine.CursorNext, 1},
		{engine.CursorNext, 2},
		{engine.CursorPrevious, 1},
		{engine.CursorLast, 5},
		{engine.CursorFirst, 1},
	}
	for _, s := range steps {
		require.Equal(t, engine.StatusSuccess, e.CursorMove(c, s.flags))
		key, _ := e.CursorKey(c)
		assert.Equal(t, []byte{s.key}, key)
	}
	assert.Equal(t, engine.StatusKeyNotFound, e.CursorMove(c, engine.CursorPrevious))
	key, _ := e.CursorKey(c)
	assert.Equal(t, []byte{1}, key, "failed move keeps the position")

	require.Equal(t, engine.StatusSuccess, e.CursorErase(c, 0))
	_, st = e.CursorRecord(c)
	assert.Equal(t, engine.StatusCursorIsNil, st)
	require.Equal(t, engine.StatusSuccess, e.CursorMove(c, engine.CursorNext))
	key, _ = e.CursorKey(c)
	assert.Equal(t, []byte{2}, key)

	clone := e.CursorClone(c)
	require.NotZero(t, clone)
	key, _ = e.CursorKey(clone)
	assert.Equal(t, []byte{2}, key)
	require.Equal(t, engine.StatusSuccess, e.CursorClose(clone))

	require.Equal(t, engine.StatusSuccess, e.CursorOverwrite(c, []byte("new"), 0))
	rec, _ := e.DBFind(db, 0, []byte{2}, 0)
	assert.Equal(t, []byte("new"), rec)
	size, _ := e.CursorRecordSize(c)
	assert.Equal(t, uint64(3), size)
}

func TestApproximateFind(t *testing.T) {
	e := newTestEngine(t)
	_, db := createEnv(t, e, "", engine.InMemory, 0)
	for _, k := range []string{"b", "d", "f"} {
		require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte(k), []byte(k), 0))
	}
	c := e.CursorCreate(db, 0, 0)

	cases := []struct {
		key   string
		flags uint32
		want  string
	}{
		{"c", engine.FindLTMatch, "b"},
		{"c", engine.FindGTMatch, "d"},
		{"d", engine.FindLTMatch, "b"},
		{"d", engine.FindLTMatch | engine.FindEQMatch, "d"},
		{"d", engine.FindGTMatch, "f"},
	}
	for _, tc := range cases {
		require.Equal(t, engine.StatusSuccess, e.CursorFind(c, []byte(tc.key), tc.flags), tc)
		key, _ := e.CursorKey(c)
		assert.Equal(t, tc.want, string(key), tc)
	}
	assert.Equal(t, engine.StatusKeyNotFound, e.CursorFind(c, []byte("a"), engine.FindLTMatch))
	assert.Equal(t, engine.StatusKeyNotFound, e.CursorFind(c, []byte("c"), 0))
}

func TestPersistenceAcrossReopen(t *testing.T) {
	for _, comp := range []uint64{engine.CompressorNone, engine.CompressorZlib, engine.CompressorSnappy} {
		e := newTestEngine(t)
		path := filepath.Join(t.TempDir(), "persist.db")
		payload := bytes.Repeat([]byte("hamgo"), 100)
		env, db := createEnv(t, e, path, engine.WriteThrough, engine.EnableDuplicateKeys,
			engine.Param{Name: engine.ParamRecordCompression, Value: comp})
		require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("a"), payload, 0))
		require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("a"), []byte("dup"), engine.Duplicate))
		require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("b"), []byte("gone"), 0))
		require.Equal(t, engine.StatusSuccess, e.DBErase(db, 0, []byte("b"), 0))
		require.Equal(t, engine.StatusSuccess, e.EnvFlush(env))
		require.Equal(t, engine.StatusSuccess, e.EnvClose(env, engine.AutoCleanup))

		require.Equal(t, engine.StatusSuccess, e.EnvOpen(env, path, 0, nil))
		require.Equal(t, engine.StatusSuccess, e.EnvOpenDB(env, db, 1, 0, nil))
		rec, st := e.DBFind(db, 0, []byte("a"), 0)
		require.Equal(t, engine.StatusSuccess, st)
		assert.Equal(t, payload, rec)
		n, _ := e.DBKeyCount(db, 0, 0)
		assert.Equal(t, uint64(2), n)
		_, st = e.DBFind(db, 0, []byte("b"), 0)
		assert.Equal(t, engine.StatusKeyNotFound, st)

		params := []engine.Param{{Name: engine.ParamRecordCompression}, {Name: engine.ParamFilename}}
		require.Equal(t, engine.StatusSuccess, e.DBGetParameters(db, params))
		assert.Equal(t, comp, params[0].Value)
		assert.Equal(t, path, params[1].String)
		require.Equal(t, engine.StatusSuccess, e.EnvClose(env, engine.AutoCleanup))
		e.EnvDelete(env)
	}
}

func TestUnsupportedCompressors(t *testing.T) {
	e := newTestEngine(t)
	env := e.EnvNew()
	require.Equal(t, engine.StatusSuccess, e.EnvCreate(env, "", engine.InMemory, 0, nil))
	db := e.DBNew()
	assert.Equal(t, engine.StatusNotImplemented, e.EnvCreateDB(env, db, 1, 0,
		[]engine.Param{{Name: engine.ParamRecordCompression, Value: engine.CompressorLZF}}))
	assert.Equal(t, engine.StatusInvParameter, e.EnvCreateDB(env, db, 1, 0,
		[]engine.Param{{Name: engine.ParamKeyCompression, Value: engine.CompressorZlib}}))
}

func TestOpenErrors(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	env := e.EnvNew()

	assert.Equal(t, engine.StatusFileNotFound, e.EnvOpen(env, filepath.Join(dir, "missing.db"), 0, nil))
	assert.Equal(t, engine.StatusInvParameter, e.EnvOpen(env, filepath.Join(dir, "x.db"), engine.InMemory, nil))
	assert.Equal(t, engine.StatusInvParameter, e.EnvCreate(env, filepath.Join(dir, "x.db"), engine.ReadOnly, 0, nil))
	assert.Equal(t, engine.StatusInvPageSize, e.EnvCreate(env, filepath.Join(dir, "x.db"), 0, 0,
		[]engine.Param{{Name: engine.ParamPageSize, Value: 1000}}))

	garbage := filepath.Join(dir, "garbage.db")
	require.NoError(t, os.WriteFile(garbage, bytes.Repeat([]byte{0xab}, 8192), 0o644))
	assert.Equal(t, engine.StatusInvFileHeader, e.EnvOpen(env, garbage, 0, nil))
}

func TestMissingFilenameCallsHandlerOnce(t *testing.T) {
	e := newTestEngine(t)
	var calls int
	e.SetErrorHandler(func(level int, message string) { calls++ })
	env := e.EnvNew()
	assert.Equal(t, engine.StatusInvParameter, e.EnvCreate(env, "", 0, 0o644, nil))
	assert.Equal(t, 1, calls)
}

func TestFileLockedWouldBlock(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "locked.db")
	env, _ := createEnv(t, e, path, 0, 0)
	defer e.EnvClose(env, engine.AutoCleanup)

	other := e.EnvNew()
	assert.Equal(t, engine.StatusWouldBlock, e.EnvOpen(other, path, 0, nil))
}

func TestRecoveryMarker(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "recover.db")
	env, db := createEnv(t, e, path, engine.EnableTransactions, 0)
	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("k"), []byte("v"), 0))

	// Drop the file without a clean close.
	state, _ := e.envs.Get(uint32(env))
	require.NoError(t, state.store.close())
	state.reset()

	again := e.EnvNew()
	assert.Equal(t, engine.StatusNeedRecovery, e.EnvOpen(again, path, engine.EnableTransactions, nil))

	var messages []string
	e.SetErrorHandler(func(level int, message string) { messages = append(messages, message) })
	require.Equal(t, engine.StatusSuccess, e.EnvOpen(again, path, engine.EnableTransactions|engine.AutoRecovery, nil))
	assert.NotEmpty(t, messages)
	db2 := e.DBNew()
	require.Equal(t, engine.StatusSuccess, e.EnvOpenDB(again, db2, 1, 0, nil))
	rec, st := e.DBFind(db2, 0, []byte("k"), 0)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, []byte("v"), rec)
	require.Equal(t, engine.StatusSuccess, e.EnvClose(again, engine.AutoCleanup))

	require.Equal(t, engine.StatusSuccess, e.EnvOpen(again, path, 0, nil))
	require.Equal(t, engine.StatusSuccess, e.EnvClose(again, 0))
}

func TestTransactions(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "txn.db")
	env, db := createEnv(t, e, path, engine.EnableTransactions, 0)

	t1, st := e.TxnBegin(env, 0)
	require.Equal(t, engine.StatusSuccess, st)
	t2, st := e.TxnBegin(env, 0)
	require.Equal(t, engine.StatusSuccess, st)

	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, t1, []byte("k"), []byte("t1"), 0))
	assert.Equal(t, engine.StatusTxnConflict, e.DBInsert(db, t2, []byte("k"), []byte("t2"), 0))
	assert.Equal(t, engine.StatusTxnConflict, e.DBInsert(db, 0, []byte("k"), []byte("auto"), 0))

	_, st = e.DBFind(db, 0, []byte("k"), 0)
	assert.Equal(t, engine.StatusKeyNotFound, st, "uncommitted write is invisible outside the transaction")
	rec, st := e.DBFind(db, t1, []byte("k"), 0)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, []byte("t1"), rec)

	c := e.CursorCreate(db, t1, 0)
	require.NotZero(t, c)
	assert.Equal(t, engine.StatusCursorStillOpen, e.TxnCommit(t1, 0))
	require.Equal(t, engine.StatusSuccess, e.CursorClose(c))
	assert.Equal(t, engine.StatusTxnStillOpen, e.DBClose(db, 0))
	require.Equal(t, engine.StatusSuccess, e.TxnCommit(t1, 0))

	rec, st = e.DBFind(db, 0, []byte("k"), 0)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, []byte("t1"), rec)

	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, t2, []byte("k"), []byte("t2"), engine.Overwrite))
	require.Equal(t, engine.StatusSuccess, e.TxnAbort(t2, 0))
	rec, _ = e.DBFind(db, 0, []byte("k"), 0)
	assert.Equal(t, []byte("t1"), rec)

	ro, st := e.TxnBegin(env, engine.TxnReadOnly)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, engine.StatusWriteProtected, e.DBInsert(db, ro, []byte("x"), []byte("x"), 0))

	assert.Equal(t, engine.StatusTxnStillOpen, e.EnvClose(env, 0))
	require.Equal(t, engine.StatusSuccess, e.EnvClose(env, engine.TxnAutoAbort))

	require.Equal(t, engine.StatusSuccess, e.EnvOpen(env, path, engine.EnableTransactions, nil))
	require.Equal(t, engine.StatusSuccess, e.EnvOpenDB(env, db, 1, 0, nil))
	rec, _ = e.DBFind(db, 0, []byte("k"), 0)
	assert.Equal(t, []byte("t1"), rec)
	require.Equal(t, engine.StatusSuccess, e.EnvClose(env, engine.AutoCleanup))
}

func TestTransactionsRequireFlag(t *testing.T) {
	e := newTestEngine(t)
	env, _ := createEnv(t, e, "", engine.InMemory, 0)
	_, st := e.TxnBegin(env, 0)
	assert.Equal(t, engine.StatusInvParameter, st)
}

func TestNumericKeys(t *testing.T) {
	e := newTestEngine(t)
	_, db := createEnv(t, e, "", engine.InMemory, 0,
		engine.Param{Name: engine.ParamKeyType, Value: engine.TypeUint32})

	for _, v := range []uint32{300, 2, 70000, 1} {
		k := binary.LittleEndian.AppendUint32(nil, v)
		require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, k, []byte("r"), 0))
	}
	assert.Equal(t, engine.StatusInvKeySize, e.DBInsert(db, 0, []byte{1, 2}, []byte("r"), 0))
	_, st := e.DBFind(db, 0, []byte{1}, 0)
	assert.Equal(t, engine.StatusInvKeySize, st)
	assert.Equal(t, engine.StatusInvKeySize, e.DBGetError(db))
	_, st = e.DBFind(db, 0, []byte{1}, engine.FindGTMatch)
	assert.Equal(t, engine.StatusInvKeySize, st)
	assert.Equal(t, engine.StatusInvKeySize, e.DBErase(db, 0, []byte{1}, 0))

	c := e.CursorCreate(db, 0, 0)
	assert.Equal(t, engine.StatusInvKeySize, e.CursorFind(c, []byte{}, 0))
	assert.Equal(t, engine.StatusInvKeySize, e.CursorInsert(c, []byte{1, 2, 3, 4, 5}, []byte("r"), 0))
	var got []uint32
	for st := e.CursorMove(c, engine.CursorFirst); st == engine.StatusSuccess; st = e.CursorMove(c, engine.CursorNext) {
		k, _ := e.CursorKey(c)
		got = append(got, binary.LittleEndian.Uint32(k))
	}
	assert.Equal(t, []uint32{1, 2, 300, 70000}, got)

	params := []engine.Param{{Name: engine.ParamKeySize}, {Name: engine.ParamKeyType}}
	require.Equal(t, engine.StatusSuccess, e.DBGetParameters(db, params))
	assert.Equal(t, uint64(4), params[0].Value)
	assert.Equal(t, uint64(engine.TypeUint32), params[1].Value)
	assert.Equal(t, engine.StatusInvParameter, e.DBSetCompare(db, bytes.Compare))
}

func TestFixedSizes(t *testing.T) {
	e := newTestEngine(t)
	_, db := createEnv(t, e, "", engine.InMemory, 0,
		engine.Param{Name: engine.ParamKeySize, Value: 4},
		engine.Param{Name: engine.ParamRecordSize, Value: 2})

	assert.Equal(t, engine.StatusInvKeySize, e.DBInsert(db, 0, []byte("abc"), []byte("xy"), 0))
	assert.Equal(t, engine.StatusInvRecordSize, e.DBInsert(db, 0, []byte("abcd"), []byte("xyz"), 0))
	assert.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("abcd"), []byte("xy"), 0))
}

func TestCustomComparator(t *testing.T) {
	e := newTestEngine(t)
	_, db := createEnv(t, e, "", engine.InMemory, 0,
		engine.Param{Name: engine.ParamKeyType, Value: engine.TypeCustom})

	assert.Equal(t, engine.StatusNotReady, e.DBInsert(db, 0, []byte("a"), []byte("r"), 0))

	reverse := func(a, b []byte) int { return bytes.Compare(b, a) }
	require.Equal(t, engine.StatusSuccess, e.DBSetCompare(db, reverse))
	for _, k := range []string{"a", "c", "b"} {
		require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte(k), []byte(k), 0))
	}
	c := e.CursorCreate(db, 0, 0)
	var got []string
	for st := e.CursorMove(c, engine.CursorFirst); st == engine.StatusSuccess; st = e.CursorMove(c, engine.CursorNext) {
		k, _ := e.CursorKey(c)
		got = append(got, string(k))
	}
	assert.Equal(t, []string{"c", "b", "a"}, got)

	require.Equal(t, engine.StatusSuccess, e.DBSetCompare(db, bytes.Compare))
	require.Equal(t, engine.StatusSuccess, e.CursorMove(c, engine.CursorFirst))
	k, _ := e.CursorKey(c)
	assert.Equal(t, []byte("a"), k, "installing a comparator reorders the table")
}

func TestPrefixComparator(t *testing.T) {
	e := newTestEngine(t)
	_, db := createEnv(t, e, "", engine.InMemory, 0,
		engine.Param{Name: engine.ParamKeyType, Value: engine.TypeCustom})

	var prefixCalls, fullCalls int
	require.Equal(t, engine.StatusSuccess, e.DBSetCompare(db, func(a, b []byte) int {
		fullCalls++
		return bytes.Compare(a, b)
	}))
	require.Equal(t, engine.StatusSuccess, e.DBSetPrefixCompare(db, func(a []byte, al int, b []byte, bl int) int {
		prefixCalls++
		if r := bytes.Compare(a, b); r != 0 {
			return r
		}
		return int(engine.StatusPrefixRequestFullKey)
	}))

	long := func(tail byte) []byte { return append(bytes.Repeat([]byte("x"), 40), tail) }
	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, long('a'), []byte("a"), 0))
	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, long('b'), []byte("b"), 0))
	rec, st := e.DBFind(db, 0, long('b'), 0)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, []byte("b"), rec)
	assert.Positive(t, prefixCalls)
	assert.Positive(t, fullCalls)
}

func TestDatabaseManagement(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "multi.db")
	env := e.EnvNew()
	require.Equal(t, engine.StatusSuccess, e.EnvCreate(env, path, 0, 0o644,
		[]engine.Param{{Name: engine.ParamMaxDatabases, Value: 2}}))

	db := e.DBNew()
	assert.Equal(t, engine.StatusInvParameter, e.EnvCreateDB(env, db, 0, 0, nil))
	assert.Equal(t, engine.StatusInvParameter, e.EnvCreateDB(env, db, 0xf000, 0, nil))
	require.Equal(t, engine.StatusSuccess, e.EnvCreateDB(env, db, 7, 0, nil))
	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("k"), []byte("v"), 0))

	other := e.DBNew()
	assert.Equal(t, engine.StatusDatabaseAlreadyExists, e.EnvCreateDB(env, other, 7, 0, nil))
	assert.Equal(t, engine.StatusDatabaseAlreadyOpen, e.EnvOpenDB(env, other, 7, 0, nil))
	assert.Equal(t, engine.StatusDatabaseNotFound, e.EnvOpenDB(env, other, 9, 0, nil))
	require.Equal(t, engine.StatusSuccess, e.EnvCreateDB(env, other, 8, 0, nil))
	third := e.DBNew()
	assert.Equal(t, engine.StatusLimitsReached, e.EnvCreateDB(env, third, 9, 0, nil))

	assert.Equal(t, engine.StatusDatabaseAlreadyOpen, e.EnvRenameDB(env, 7, 10, 0))
	require.Equal(t, engine.StatusSuccess, e.DBClose(db, 0))
	assert.Equal(t, engine.StatusDatabaseAlreadyExists, e.EnvRenameDB(env, 7, 8, 0))
	require.Equal(t, engine.StatusSuccess, e.EnvRenameDB(env, 7, 10, 0))

	names, st := e.EnvDatabaseNames(env)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, []uint16{8, 10}, names)

	require.Equal(t, engine.StatusSuccess, e.EnvClose(env, engine.AutoCleanup))
	require.Equal(t, engine.StatusSuccess, e.EnvOpen(env, path, 0, nil))
	require.Equal(t, engine.StatusSuccess, e.EnvOpenDB(env, db, 10, 0, nil))
	rec, st := e.DBFind(db, 0, []byte("k"), 0)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, []byte("v"), rec)
	require.Equal(t, engine.StatusSuccess, e.DBClose(db, 0))

	require.Equal(t, engine.StatusSuccess, e.EnvEraseDB(env, 10, 0))
	assert.Equal(t, engine.StatusDatabaseNotFound, e.EnvEraseDB(env, 10, 0))
	names, _ = e.EnvDatabaseNames(env)
	assert.Equal(t, []uint16{8}, names)

	params := []engine.Param{{Name: engine.ParamMaxDatabases}, {Name: engine.ParamPageSize}, {Name: engine.ParamFilename}}
	require.Equal(t, engine.StatusSuccess, e.EnvGetParameters(env, params))
	assert.Equal(t, uint64(2), params[0].Value)
	assert.Equal(t, uint64(defaultPageSize), params[1].Value)
	assert.Equal(t, path, params[2].String)
	assert.Equal(t, engine.StatusInvParameter, e.EnvGetParameters(env, []engine.Param{{Name: 0x999}}))
	require.Equal(t, engine.StatusSuccess, e.EnvClose(env, 0))
}

func TestReadOnly(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "ro.db")
	env, db := createEnv(t, e, path, 0, 0)
	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("k"), []byte("v"), 0))
	require.Equal(t, engine.StatusSuccess, e.EnvClose(env, engine.AutoCleanup))

	require.Equal(t, engine.StatusSuccess, e.EnvOpen(env, path, engine.ReadOnly, nil))
	require.Equal(t, engine.StatusSuccess, e.EnvOpenDB(env, db, 1, 0, nil))
	assert.Equal(t, engine.StatusWriteProtected, e.DBInsert(db, 0, []byte("x"), []byte("y"), 0))
	assert.Equal(t, engine.StatusWriteProtected, e.DBErase(db, 0, []byte("k"), 0))
	rec, st := e.DBFind(db, 0, []byte("k"), 0)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, []byte("v"), rec)
	require.Equal(t, engine.StatusSuccess, e.EnvClose(env, engine.AutoCleanup))
}

func TestStandaloneDatabase(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "single.db")
	db := e.DBNew()
	require.Equal(t, engine.StatusSuccess, e.DBCreate(db, path, engine.EnableDuplicateKeys, 0o644,
		[]engine.Param{{Name: engine.ParamCacheSize, Value: 1 << 20}}))
	assert.Equal(t, engine.StatusDatabaseAlreadyOpen, e.DBCreate(db, path, 0, 0o644, nil))
	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("k"), []byte("a"), 0))
	require.Equal(t, engine.StatusSuccess, e.DBInsert(db, 0, []byte("k"), []byte("b"), engine.Duplicate))

	c := e.CursorCreate(db, 0, 0)
	assert.Equal(t, engine.StatusCursorStillOpen, e.DBClose(db, 0))
	require.Equal(t, engine.StatusSuccess, e.DBClose(db, engine.AutoCleanup))
	_, st := e.CursorKey(c)
	assert.Equal(t, engine.StatusInvParameter, st, "cursor died with its database")

	require.Equal(t, engine.StatusSuccess, e.DBOpen(db, path, 0, nil))
	n, st := e.DBKeyCount(db, 0, 0)
	require.Equal(t, engine.StatusSuccess, st)
	assert.Equal(t, uint64(2), n)
	require.Equal(t, engine.StatusSuccess, e.DBClose(db, 0))
	e.DBDelete(db)

	missing := e.DBNew()
	assert.Equal(t, engine.StatusFileNotFound, e.DBOpen(missing, filepath.Join(t.TempDir(), "nope.db"), 0, nil))
	assert.Equal(t, engine.StatusFileNotFound, e.DBGetError(missing))
}

func TestHandlesAreUnique(t *testing.T) {
	e := newTestEngine(t)
	seen := make(map[engine.Handle]bool)
	for i := 0; i < 100; i++ {
		for _, h := range []engine.Handle{e.EnvNew(), e.DBNew()} {
			require.NotZero(t, h)
			require.False(t, seen[h])
			seen[h] = true
		}
	}
}
