package flash

import "fmt"

// Bank identifies one of the two flash banks.
type Bank int

// Banks
const (
	Bank0 Bank = 0
	Bank1 Bank = 1
)

// NumBanks is the number of flash banks.
const NumBanks = 2

// Other returns the peer bank.
func (b Bank) Other() Bank {
	return b ^ 1
}

// IsValid checks if it's a known bank.
func (b Bank) IsValid() bool {
	return b == Bank0 || b == Bank1
}

// String implements fmt.Stringer.
func (b Bank) String() string {
	if !b.IsValid() {
		return fmt.Sprintf("bank(%d)", int(b))
	}
	return fmt.Sprintf("bank%d", int(b))
}

// RemapState is the live memory remap state of the hardware.
type RemapState int

const (
	// RemapNone means bank 0 is visible at the base address.
	RemapNone RemapState = iota
	// RemapSwapped means bank 1 is visible at the base address.
	RemapSwapped
	// RemapInvalid means the remap register is in a transitional or
	// inconsistent state.
	RemapInvalid
)

// ActiveBank returns the bank mapped at the base address.
func (s RemapState) ActiveBank() (Bank, bool) {
	switch s {
	case RemapNone:
		return Bank0, true
	case RemapSwapped:
		return Bank1, true
	}
	return Bank0, false
}

// String implements fmt.Stringer.
func (s RemapState) String() string {
	switch s {
	case RemapNone:
		return "none"
	case RemapSwapped:
		return "swapped"
	case RemapInvalid:
		return "invalid"
	}
	return fmt.Sprintf("remap(%d)", int(s))
}

// RemapFor returns the remap state that makes bank active.
func RemapFor(bank Bank) RemapState {
	if bank == Bank1 {
		return RemapSwapped
	}
	return RemapNone
}

// Geometry describes the flash layout.
type Geometry struct {
	// Base is the execute base address where the active bank is mapped.
	Base uint32
	// BankSize is the size of a single bank in bytes.
	BankSize uint32
	// ProgramUnit is the program granularity in bytes.
	ProgramUnit uint32
	// VectorOffset is the offset of the application vector table
	// inside a bank.
	VectorOffset uint32
}

// DefaultGeometry is the layout of the dual-bank controller: two 256KiB
// banks programmed by double words, the first 2KiB hold the loader.
var DefaultGeometry = Geometry{
	Base:         0x08000000,
	BankSize:     0x40000,
	ProgramUnit:  8,
	VectorOffset: 0x800,
}

// IsAligned checks if v is a multiple of the program unit.
func (g Geometry) IsAligned(v uint32) bool {
	return v%g.ProgramUnit == 0
}

// InBank checks if [offset, offset+length) is inside a bank.
func (g Geometry) InBank(offset, length uint32) bool {
	return offset <= g.BankSize && length <= g.BankSize-offset
}

// Address returns the address of offset in bank when mapped per state.
func (g Geometry) Address(state RemapState, bank Bank, offset uint32) uint32 {
	active, _ := state.ActiveBank()
	if bank == active {
		return g.Base + offset
	}
	return g.Base + g.BankSize + offset
}
