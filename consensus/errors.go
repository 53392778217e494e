package consensus

import "fmt"

// ErrorKind is the single error taxonomy surfaced by every core operation
// (spec §7). Every exported consensus error carries one.
type ErrorKind string

const (
	ErrDatabase          ErrorKind = "Database"
	ErrCrypto            ErrorKind = "Crypto"
	ErrSerialization     ErrorKind = "Serialization"
	ErrTransaction       ErrorKind = "Transaction"
	ErrInvalidBlock      ErrorKind = "InvalidBlock"
	ErrInsufficientFunds ErrorKind = "InsufficientFunds"
	ErrInvalidAddress    ErrorKind = "InvalidAddress"
	ErrWallet            ErrorKind = "Wallet"
	ErrNetwork           ErrorKind = "Network"
	ErrConfig            ErrorKind = "Config"
)

// Error is the concrete error type every package in this module returns.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NewError constructs an *Error with the given kind and formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError carries the structured payload spec §4.4/§7
// requires for a failed spend construction.
type InsufficientFundsError struct {
	Required  uint64
	Available uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("InsufficientFunds: required=%d available=%d", e.Required, e.Available)
}

// Kind reports ErrInsufficientFunds. *Error carries its kind in the
// exported Kind field instead; it has no Kind method.
func (e *InsufficientFundsError) Kind() ErrorKind { return ErrInsufficientFunds }
