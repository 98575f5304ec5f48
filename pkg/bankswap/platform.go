package bankswap

import "github.com/robotalks/chiplink/pkg/flash"

// Platform abstracts the processor core operations used around a bank
// swap. Jump, Halt and SystemReset are terminal and never return on real
// hardware.
type Platform interface {
	DisableIRQ()
	EnableIRQ()
	// DisableCaches disables instruction and data caches and prefetch.
	DisableCaches()
	ResetCaches()
	EnableCaches()
	DataBarrier()
	InstructionBarrier()
	// SetRemap toggles the memory remap.
	SetRemap(flash.RemapState)
	// SetVectorTable relocates the interrupt vector table.
	SetVectorTable(addr uint32)

	// SetUpdateRequest sets a flag which survives SystemReset, e.g. in a
	// backup register.
	SetUpdateRequest(bool)
	// UpdateRequested reads the flag.
	UpdateRequested() bool

	// Jump loads the stack pointer and branches to pc.
	Jump(sp, pc uint32)
	Halt()
	SystemReset()
}
