package hamgo

import "github.com/Giulio2002/hamgo/internal/engine"

// Comparator orders the keys of a database. It is called with the owner's
// lock held and must not call back into the database.
type Comparator interface {
	Compare(lhs, rhs []byte) int
}

// ComparatorFunc adapts a function to Comparator.
type ComparatorFunc func(lhs, rhs []byte) int

func (f ComparatorFunc) Compare(lhs, rhs []byte) int { return f(lhs, rhs) }

// PrefixComparator orders keys by their leading bytes. lhsRealLen and
// rhsRealLen are the full key lengths. Returning int(ErrPrefixRequestFullKey)
// asks for a full comparison.
type PrefixComparator interface {
	ComparePrefix(lhs []byte, lhsRealLen int, rhs []byte, rhsRealLen int) int
}

// PrefixComparatorFunc adapts a function to PrefixComparator.
type PrefixComparatorFunc func(lhs []byte, lhsRealLen int, rhs []byte, rhsRealLen int) int

func (f PrefixComparatorFunc) ComparePrefix(lhs []byte, lhsRealLen int, rhs []byte, rhsRealLen int) int {
	return f(lhs, lhsRealLen, rhs, rhsRealLen)
}

// ErrorHandler receives the engine's diagnostic messages.
type ErrorHandler interface {
	HandleMessage(level int, message string)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(level int, message string)

func (f ErrorHandlerFunc) HandleMessage(level int, message string) { f(level, message) }

// callbacks keeps the comparators installed on a database referenced for as
// long as the engine may call them.
type callbacks struct {
	compare Comparator
	prefix  PrefixComparator
}

func (c *callbacks) compareFunc() engine.CompareFunc {
	if c.compare == nil {
		return nil
	}
	cmp := c.compare
	return func(lhs, rhs []byte) int { return cmp.Compare(lhs, rhs) }
}

func (c *callbacks) prefixFunc() engine.PrefixCompareFunc {
	if c.prefix == nil {
		return nil
	}
	cmp := c.prefix
	return func(lhs []byte, lhsLen int, rhs []byte, rhsLen int) int {
		return cmp.ComparePrefix(lhs, lhsLen, rhs, rhsLen)
	}
}

func (c *callbacks) clear() {
	c.compare = nil
	c.prefix = nil
}
