package flash

import (
	"errors"
	"fmt"
)

var (
	// ErrActiveBank indicates an erase or program targeting the active bank.
	ErrActiveBank = errors.New("bank is active")
	// ErrMisaligned indicates offset or length is not a multiple of the
	// program unit.
	ErrMisaligned = errors.New("misaligned access")
	// ErrOutOfRange indicates the access exceeds the bank.
	ErrOutOfRange = errors.New("out of range")
	// ErrInvalidBank indicates an unknown bank.
	ErrInvalidBank = errors.New("invalid bank")
	// ErrLocked indicates the flash (or option bytes) is locked.
	ErrLocked = errors.New("flash locked")
	// ErrNotErased indicates programming over a word which is not erased.
	ErrNotErased = errors.New("not erased")
	// ErrVerify indicates read-back does not match.
	ErrVerify = errors.New("verify failed")
	// ErrInvalidRemap indicates the live remap state doesn't name a bank.
	ErrInvalidRemap = errors.New("invalid remap state")
)

// FlashError reports a failed hardware operation.
type FlashError struct {
	Op     string
	Bank   Bank
	Offset uint32
	Err    error
}

// Error implements error.
func (e *FlashError) Error() string {
	return fmt.Sprintf("flash %s %s@%#x: %v", e.Op, e.Bank, e.Offset, e.Err)
}

// Unwrap returns the underlying error.
func (e *FlashError) Unwrap() error {
	return e.Err
}
