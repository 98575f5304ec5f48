package link

import "fmt"

// FrameSize is the size of a frame in bytes.
const FrameSize = 8

// PayloadSize is the size of the opcode specific payload.
const PayloadSize = FrameSize - 1

// Frame is the unit exchanged over the link.
// Byte 0 is the opcode, the rest is opcode specific, zero filled.
type Frame [FrameSize]byte

// MakeFrame creates a frame. Payload longer than PayloadSize is truncated.
func MakeFrame(opcode byte, payload ...byte) (f Frame) {
	f[0] = opcode
	copy(f[1:], payload)
	return
}

// Opcode returns the opcode byte.
func (f Frame) Opcode() byte {
	return f[0]
}

// Payload returns a copy of the payload bytes.
func (f Frame) Payload() []byte {
	p := make([]byte, PayloadSize)
	copy(p, f[1:])
	return p
}

// IsIdle checks if it's an all-zero frame clocked when nothing is sent.
func (f Frame) IsIdle() bool {
	return f == Frame{}
}

// String implements fmt.Stringer.
func (f Frame) String() string {
	return fmt.Sprintf("[%02x % x]", f[0], f[1:])
}
