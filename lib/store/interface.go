package store

import (
	"fmt"

	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.ChainDB

// IServerStore is the generic interface for interacting with a chain store.
// Every key addresses one chain on the server. Keys that were never written
// read as the empty chain. All four operations are atomic per key.
//
// All methods return a *Error (nil on success) if the store itself fails.
// Communication errors of remote implementations are returned as they are.
type IServerStore interface {
	// Get returns a snapshot of the chain of key. A missing key is not an
	// error, the returned chain is empty.
	Get(key uint64) (c chain.Chain, err error)
	// Append adds payload as a new element with a fresh id to the end of the
	// chain of key.
	Append(key uint64, payload []byte) (err error)
	// GetAndAppend works like Append but returns the chain as it was
	// immediately before the new element was added.
	GetAndAppend(key uint64, payload []byte) (prior chain.Chain, err error)
	// ReplaceAtHead replaces the head of the chain of key with update if the
	// head is exactly expect (compared by element id). Elements appended
	// after expect was read are kept behind update. If expect does not match
	// the call is a no-op and err is nil.
	ReplaceAtHead(key uint64, expect, update chain.Chain) (err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("ChainStoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a *Error with the same code.
// This allows errors.Is(err, store.NewError(store.RetCUnsupportedOperation, ""))
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(c))
	}
}
