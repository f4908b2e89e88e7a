// Package hamgo is an embedded key/value store with named databases,
// duplicate keys, cursors and transactions.
//
// Every object wraps an engine handle. Environments and standalone
// Databases own the cursors and transactions created from them: closing an
// owner closes all of them first, and every Close is safe to repeat. Owners
// share nothing except the Context they were created with, which holds the
// engine, the logger and the error handler.
//
// Filenames of the form ham://host:port/name open environments served by a
// hamserver process; all other filenames are local files.
//
// Basic usage:
//
//	env := hamgo.NewEnvironment(nil)
//	err := env.Create("/path/to/file.db", hamgo.EnableTransactions, 0644, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	db, err := env.CreateDatabase(1, hamgo.EnableDuplicateKeys, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = env.Update(func(txn *hamgo.Transaction) error {
//	    return db.Insert(txn, []byte("key"), []byte("value"), 0)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = db.WithCursor(nil, func(c *hamgo.Cursor) error {
//	    for err := c.MoveFirst(); err == nil; err = c.MoveNext() {
//	        key, _ := c.Key()
//	        fmt.Printf("%s\n", key)
//	    }
//	    return nil
//	})
package hamgo
