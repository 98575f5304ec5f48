package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrNoReply indicates no RETURN frame arrived before timeout.
	ErrNoReply = errors.New("no reply")
	// ErrUnexpectedReply indicates the reply doesn't match the request.
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// ErrUnknownOpcode indicates a frame with unknown opcode.
type ErrUnknownOpcode struct {
	Opcode byte
}

// Error implements error.
func (e *ErrUnknownOpcode) Error() string {
	return fmt.Sprintf("unknown opcode: %02x", e.Opcode)
}
