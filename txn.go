package hamgo

import "github.com/Giulio2002/hamgo/internal/engine"

// Transaction groups writes to the databases of one Environment. Its
// changes are invisible to other transactions until Commit. Keys written by
// a transaction stay locked against other transactions until it ends.
type Transaction struct {
	handle engine.Handle
	env    *Environment
}

// Environment returns the environment the transaction runs in.
func (t *Transaction) Environment() *Environment {
	return t.env
}

// Commit makes the transaction's changes durable. Cursors opened in the
// transaction must be closed first. Committing an ended transaction does
// nothing.
func (t *Transaction) Commit() error {
	return t.finish(t.env.eng().TxnCommit)
}

// Abort discards the transaction's changes. Aborting an ended transaction
// does nothing.
func (t *Transaction) Abort() error {
	return t.finish(t.env.eng().TxnAbort)
}

func (t *Transaction) finish(end func(engine.Handle, uint32) engine.Status) error {
	t.env.mu.Lock()
	defer t.env.mu.Unlock()
	if t.handle == 0 {
		return nil
	}
	if err := statusError(end(t.handle, 0)); err != nil {
		return err
	}
	t.handle = 0
	t.env.txns.remove(t)
	return nil
}

// finishForced ends t during its environment's close. Caller holds the
// environment lock.
func (t *Transaction) finishForced(commit bool) {
	if t.handle == 0 {
		return
	}
	eng := t.env.eng()
	if commit {
		st := eng.TxnCommit(t.handle, 0)
		if st == engine.StatusSuccess {
			t.handle = 0
			return
		}
		t.env.logForced("transaction commit", t.handle, st)
	}
	t.env.logForced("transaction", t.handle, eng.TxnAbort(t.handle, 0))
	t.handle = 0
}
