package flash

// Device is the hardware abstraction of the flash peripheral.
// All offsets are relative to the physical bank.
type Device interface {
	// Geometry returns the flash layout.
	Geometry() Geometry
	// Remap reads the live remap state.
	Remap() RemapState

	// Unlock unlocks the main flash control.
	Unlock() error
	// Lock locks the main flash control.
	Lock() error
	// UnlockOptions unlocks the option bytes, main flash must be unlocked.
	UnlockOptions() error
	// LockOptions locks the option bytes.
	LockOptions() error

	// MassErase erases the whole bank.
	MassErase(bank Bank) error
	// ProgramDoubleWord programs one program unit at offset.
	ProgramDoubleWord(bank Bank, offset uint32, value uint64) error
	// Read reads from the bank.
	Read(bank Bank, offset uint32, p []byte) error

	// Selector reads the persisted boot selector.
	Selector() Bank
	// ProgramSelector writes the boot selector option bit.
	// Option bytes must be unlocked.
	ProgramSelector(bank Bank) error
	// LaunchOptions reloads option bytes, the change becomes visible
	// after the next reset.
	LaunchOptions() error
}
