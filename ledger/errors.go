package ledger

import (
	"errors"
	"fmt"
	"sync"
)

// Error is a failure with a stable numeric code. Programs declare their
// errors with NewError so that a code received over the network maps back
// to the same sentinel with ErrorFromCode.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

var registry = struct {
	sync.RWMutex
	codes map[uint32]*Error
}{codes: map[uint32]*Error{}}

// NewError registers and returns a new coded error. It panics if the code is
// already taken, which can only happen at package initialisation.
func NewError(code uint32, name, msg string) *Error {
	registry.Lock()
	defer registry.Unlock()
	if old, ok := registry.codes[code]; ok {
		panic(fmt.Sprintf("error code %d registered twice (%s, %s)", code, old.Name, name))
	}
	e := &Error{Code: code, Name: name, Msg: msg}
	registry.codes[code] = e
	return e
}

// Host errors.
var (
	ErrMissingSignature         = NewError(1, "MissingSignature", "missing required signature")
	ErrInvalidSignature         = NewError(2, "InvalidSignature", "invalid transaction signature")
	ErrReadonlyModified         = NewError(3, "ReadonlyModified", "instruction modified a read-only account")
	ErrInsufficientFunds        = NewError(4, "InsufficientFunds", "insufficient funds")
	ErrInsufficientFundsForRent = NewError(5, "InsufficientFundsForRent", "account would not be rent exempt")
	ErrAccountInUse             = NewError(6, "AccountInUse", "account already in use")
	ErrUnbalancedInstruction    = NewError(7, "UnbalancedInstruction", "sum of account balances changed")
	ErrUnknownProgram           = NewError(8, "UnknownProgram", "unknown program")
	ErrDuplicateTransaction     = NewError(9, "DuplicateTransaction", "nonce already used by a signer")
	ErrExternalDataModified     = NewError(10, "ExternalAccountDataModified", "instruction modified data of an account it does not own")
	ErrExternalBalanceSpent     = NewError(11, "ExternalAccountLamportSpend", "instruction spent from an account it does not own")
	ErrAccountNotFound          = NewError(12, "AccountNotFound", "account not found")
	ErrInvalidSeeds             = NewError(13, "InvalidSeeds", "seeds do not derive the given address")
	ErrEmptyTransaction         = NewError(14, "EmptyTransaction", "transaction has no instructions")
	ErrIllegalOwnerChange       = NewError(15, "IllegalOwnerChange", "instruction changed the owner of an account")
	ErrTransferFromNonSystem    = NewError(16, "TransferFromNonSystem", "transfer source must be a plain system account")
	ErrBalanceOverflow          = NewError(17, "BalanceOverflow", "account balance overflow")
	ErrUnknownCommand           = NewError(18, "UnknownCommand", "unknown command")
	ErrInvalidArgument          = NewError(19, "InvalidArgument", "missing or malformed argument")
	ErrNotEnoughAccounts        = NewError(20, "NotEnoughAccountKeys", "not enough account keys given to the instruction")
	ErrProgramExists            = NewError(21, "ProgramExists", "a program is already registered at this id")
	ErrProgramFailed            = NewError(99, "ProgramFailed", "program failed")
)

// CodeOf returns the code of the first coded error in err's chain,
// ErrProgramFailed's code for uncoded errors and 0 for nil.
func CodeOf(err error) uint32 {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrProgramFailed.Code
}

// remoteError keeps the full message of a failure while unwrapping to the
// registered sentinel.
type remoteError struct {
	sentinel *Error
	msg      string
}

func (r *remoteError) Error() string { return r.msg }
func (r *remoteError) Unwrap() error { return r.sentinel }

// ErrorFromCode rebuilds an error from a code and message as found in a
// Receipt. errors.Is matches the registered sentinel for that code.
func ErrorFromCode(code uint32, msg string) error {
	if code == 0 {
		return nil
	}
	registry.RLock()
	e, ok := registry.codes[code]
	registry.RUnlock()
	if !ok {
		e = &Error{Code: code, Name: "Unknown", Msg: msg}
	}
	if msg == "" {
		msg = e.Msg
	}
	return &remoteError{sentinel: e, msg: msg}
}
