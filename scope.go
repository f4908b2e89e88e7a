package hamgo

import "errors"

// TxnOp is a function that operates on a transaction.
// This is the callback type for View, Update, and RunTxn.
type TxnOp func(txn *Transaction) error

// View executes a read-only transaction.
// The transaction is automatically committed when fn returns nil,
// or aborted when fn returns an error.
func (e *Environment) View(fn TxnOp) error {
	return e.RunTxn(TxnReadOnly, fn)
}

// Update executes a read-write transaction.
// The transaction is automatically committed when fn returns nil,
// or aborted when fn returns an error.
func (e *Environment) Update(fn TxnOp) error {
	return e.RunTxn(0, fn)
}

// RunTxn runs a transaction with the given flags.
// The transaction is automatically committed when fn returns nil,
// or aborted when fn returns an error.
func (e *Environment) RunTxn(flags uint32, fn TxnOp) error {
	txn, err := e.Begin(flags)
	if err != nil {
		return err
	}
	if err := fn(txn); err != nil {
		return errors.Join(err, txn.Abort())
	}
	return txn.Commit()
}

// WithCursor opens a cursor, runs fn and closes the cursor, also when fn
// fails.
func (d *Database) WithCursor(txn *Transaction, fn func(c *Cursor) error) error {
	c, err := d.NewCursor(txn)
	if err != nil {
		return err
	}
	err = fn(c)
	return errors.Join(err, c.Close())
}

// WithEnvironment opens the environment at filename, runs fn and closes the
// environment with everything derived from it.
func WithEnvironment(ctx *Context, filename string, flags uint32, params []*Parameter, fn func(env *Environment) error) error {
	env := NewEnvironment(ctx)
	if err := env.Open(filename, flags, params); err != nil {
		return err
	}
	err := fn(env)
	return errors.Join(err, env.Close())
}
