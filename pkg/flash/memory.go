package flash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// ErrInjected is returned by Memory for injected faults.
var ErrInjected = errors.New("injected fault")

// Memory is a simulated dual-bank Device.
// It behaves like NOR flash: erase sets bytes to 0xFF and a program unit
// can only be programmed when fully erased.
type Memory struct {
	// FailErase makes MassErase of the bank fail.
	FailErase map[Bank]bool

	// FailProgramAt makes programming at the offset fail.
	FailProgramAt map[uint32]bool

	geo       Geometry
	banks     [NumBanks][]byte
	remap     RemapState
	selector  Bank
	pending   Bank
	locked    bool
	optLocked bool
	trace     []string
	lock      sync.Mutex
}

// NewMemory creates an erased Memory using geometry.
func NewMemory(geo Geometry) *Memory {
	m := &Memory{
		geo:       geo,
		locked:    true,
		optLocked: true,
	}
	for n := range m.banks {
		m.banks[n] = make([]byte, geo.BankSize)
		fill(m.banks[n], 0xff)
	}
	return m
}

func fill(p []byte, b byte) {
	for i := range p {
		p[i] = b
	}
}

func (m *Memory) record(format string, args ...interface{}) {
	m.trace = append(m.trace, fmt.Sprintf(format, args...))
}

// Trace returns the recorded operations and clears the record.
func (m *Memory) Trace() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	t := m.trace
	m.trace = nil
	return t
}

// Geometry implements Device.
func (m *Memory) Geometry() Geometry {
	return m.geo
}

// Remap implements Device.
func (m *Memory) Remap() RemapState {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.remap
}

// SetRemap sets the live remap state.
func (m *Memory) SetRemap(state RemapState) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.record("remap %s", state)
	m.remap = state
}

// Reset simulates a system reset: remap goes back to the hardware default
// and the launched selector becomes the persisted selector.
func (m *Memory) Reset() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.record("reset")
	m.remap = RemapNone
	m.selector = m.pending
	m.locked, m.optLocked = true, true
}

// Unlock implements Device.
func (m *Memory) Unlock() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.record("unlock")
	m.locked = false
	return nil
}

// Lock implements Device.
func (m *Memory) Lock() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.record("lock")
	m.locked, m.optLocked = true, true
	return nil
}

// UnlockOptions implements Device.
func (m *Memory) UnlockOptions() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.locked {
		return ErrLocked
	}
	m.record("unlock-options")
	m.optLocked = false
	return nil
}

// LockOptions implements Device.
func (m *Memory) LockOptions() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.record("lock-options")
	m.optLocked = true
	return nil
}

// Locked reports whether main flash and option bytes are locked.
func (m *Memory) Locked() (main, options bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.locked, m.optLocked
}

// MassErase implements Device.
func (m *Memory) MassErase(bank Bank) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.locked {
		return ErrLocked
	}
	m.record("erase %s", bank)
	if m.FailErase[bank] {
		// half erased
		fill(m.banks[bank][:len(m.banks[bank])/2], 0xff)
		return ErrInjected
	}
	fill(m.banks[bank], 0xff)
	return nil
}

// ProgramDoubleWord implements Device.
func (m *Memory) ProgramDoubleWord(bank Bank, offset uint32, value uint64) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.locked {
		return ErrLocked
	}
	if m.FailProgramAt[offset] {
		return ErrInjected
	}
	if !m.geo.IsAligned(offset) || !m.geo.InBank(offset, 8) {
		return ErrMisaligned
	}
	unit := m.banks[bank][offset : offset+8]
	for _, b := range unit {
		if b != 0xff {
			return ErrNotErased
		}
	}
	binary.LittleEndian.PutUint64(unit, value)
	return nil
}

// Read implements Device.
func (m *Memory) Read(bank Bank, offset uint32, p []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if !m.geo.InBank(offset, uint32(len(p))) {
		return ErrOutOfRange
	}
	copy(p, m.banks[bank][offset:])
	return nil
}

// Selector implements Device.
func (m *Memory) Selector() Bank {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.pending
}

// BootedSelector returns the selector value in effect since last reset.
func (m *Memory) BootedSelector() Bank {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.selector
}

// ProgramSelector implements Device.
func (m *Memory) ProgramSelector(bank Bank) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.locked || m.optLocked {
		return ErrLocked
	}
	m.record("selector %s", bank)
	m.pending = bank
	return nil
}

// LaunchOptions implements Device.
func (m *Memory) LaunchOptions() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.record("launch-options")
	return nil
}

// Load copies data into bank at offset without flash semantics,
// e.g. to simulate a factory programmed image.
func (m *Memory) Load(bank Bank, offset uint32, data []byte) {
	m.lock.Lock()
	defer m.lock.Unlock()
	copy(m.banks[bank][offset:], data)
}
