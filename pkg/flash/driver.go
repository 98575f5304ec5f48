package flash

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/snksoft/crc"
)

var crcTable = crc.NewTable(crc.CRC32)

// Driver erases, programs and inspects flash banks through a Device.
// It is the exclusive owner of the device, all operations are serialized.
type Driver struct {
	dev  Device
	geo  Geometry
	lock sync.Mutex
}

// NewDriver creates a Driver.
func NewDriver(dev Device) *Driver {
	return &Driver{dev: dev, geo: dev.Geometry()}
}

// Geometry returns the flash layout.
func (d *Driver) Geometry() Geometry {
	return d.geo
}

// Device returns the wrapped device.
func (d *Driver) Device() Device {
	return d.dev
}

// CurrentBank returns the bank mapped active by the live remap state.
// The persisted selector is not consulted: it only takes effect after reset.
// With an invalid remap state it returns Bank0, use ActiveBank to tell.
func (d *Driver) CurrentBank() Bank {
	bank, _ := d.dev.Remap().ActiveBank()
	return bank
}

// ActiveBank is CurrentBank failing with ErrInvalidRemap when the live
// remap state doesn't name a bank.
func (d *Driver) ActiveBank() (Bank, error) {
	state := d.dev.Remap()
	bank, ok := state.ActiveBank()
	if !ok {
		return bank, fmt.Errorf("%w: %s", ErrInvalidRemap, state)
	}
	return bank, nil
}

// checkWritable fails closed: no bank is writable while the active one
// is unknown.
func (d *Driver) checkWritable(bank Bank) error {
	if !bank.IsValid() {
		return ErrInvalidBank
	}
	active, err := d.ActiveBank()
	if err != nil {
		return err
	}
	if bank == active {
		return ErrActiveBank
	}
	return nil
}

// Erase erases the whole inactive bank.
func (d *Driver) Erase(bank Bank) (err error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if err = d.checkWritable(bank); err != nil {
		return
	}
	glog.V(1).Infof("erase %s", bank)
	err = d.unlocked(func() error {
		return d.dev.MassErase(bank)
	})
	if err != nil {
		return &FlashError{Op: "erase", Bank: bank, Err: err}
	}
	return nil
}

// Write programs data into the inactive bank at offset.
// Both offset and len(data) must be multiples of the program unit.
// A failure stops at the first failing unit, leaving the bank partially
// written.
func (d *Driver) Write(bank Bank, offset uint32, data []byte) error {
	length := uint32(len(data))
	if !d.geo.IsAligned(offset) || !d.geo.IsAligned(length) {
		return ErrMisaligned
	}
	if !d.geo.InBank(offset, length) {
		return ErrOutOfRange
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.checkWritable(bank); err != nil {
		return err
	}
	unit := d.geo.ProgramUnit
	var failedAt uint32
	err := d.unlocked(func() error {
		for i := uint32(0); i < length; i += unit {
			if err := d.dev.ProgramDoubleWord(bank, offset+i, binary.LittleEndian.Uint64(data[i:i+unit])); err != nil {
				failedAt = offset + i
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &FlashError{Op: "program", Bank: bank, Offset: failedAt, Err: err}
	}
	return nil
}

// Read reads from bank at offset.
func (d *Driver) Read(bank Bank, offset uint32, p []byte) error {
	if !bank.IsValid() {
		return ErrInvalidBank
	}
	if !d.geo.InBank(offset, uint32(len(p))) {
		return ErrOutOfRange
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if err := d.dev.Read(bank, offset, p); err != nil {
		return &FlashError{Op: "read", Bank: bank, Offset: offset, Err: err}
	}
	return nil
}

// ReadWord reads a little-endian 32-bit word.
func (d *Driver) ReadWord(bank Bank, offset uint32) (uint32, error) {
	var buf [4]byte
	if err := d.Read(bank, offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Checksum calculates CRC-32 over [offset, offset+length) of bank.
func (d *Driver) Checksum(bank Bank, offset, length uint32) (uint32, error) {
	if !d.geo.InBank(offset, length) {
		return 0, ErrOutOfRange
	}
	h := crc.NewHashWithTable(crcTable)
	buf := make([]byte, 1024)
	for length > 0 {
		n := uint32(len(buf))
		if n > length {
			n = length
		}
		if err := d.Read(bank, offset, buf[:n]); err != nil {
			return 0, err
		}
		h.Update(buf[:n])
		offset += n
		length -= n
	}
	return h.CRC32(), nil
}

// Validate compares the CRC-32 of a bank range with expected.
func (d *Driver) Validate(bank Bank, offset, length uint32, expected uint32) error {
	actual, err := d.Checksum(bank, offset, length)
	if err != nil {
		return err
	}
	if actual != expected {
		return &FlashError{
			Op:     "validate",
			Bank:   bank,
			Offset: offset,
			Err:    fmt.Errorf("%w: crc %08x, expect %08x", ErrVerify, actual, expected),
		}
	}
	return nil
}

// HasImage checks the "has an image" sentinel of bank: the initial stack
// pointer in the vector table must be a positive signed word. Erased
// (0xFFFFFFFF) and blank (0) words fail. This is not an integrity check.
func (d *Driver) HasImage(bank Bank) bool {
	sp, err := d.ReadWord(bank, d.geo.VectorOffset)
	if err != nil {
		return false
	}
	return int32(sp) > 0
}

// Vectors reads the initial stack pointer and reset entry of bank.
func (d *Driver) Vectors(bank Bank) (sp, pc uint32, err error) {
	if sp, err = d.ReadWord(bank, d.geo.VectorOffset); err != nil {
		return
	}
	pc, err = d.ReadWord(bank, d.geo.VectorOffset+4)
	return
}

// BootSelector reads the persisted boot selector.
func (d *Driver) BootSelector() Bank {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dev.Selector()
}

// SetBootSelector programs the persisted boot selector. The option bytes
// are unlocked inside the main flash unlock, and both are locked again
// regardless of the result. The new value is read back and launched.
func (d *Driver) SetBootSelector(bank Bank) error {
	if !bank.IsValid() {
		return ErrInvalidBank
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	err := d.unlocked(func() error {
		if err := d.dev.UnlockOptions(); err != nil {
			return err
		}
		err := d.dev.ProgramSelector(bank)
		if lerr := d.dev.LockOptions(); err == nil {
			err = lerr
		}
		return err
	})
	if err == nil && d.dev.Selector() != bank {
		err = ErrVerify
	}
	if err == nil {
		err = d.dev.LaunchOptions()
	}
	if err != nil {
		return &FlashError{Op: "selector", Bank: bank, Err: err}
	}
	glog.Infof("boot selector set to %s", bank)
	return nil
}

func (d *Driver) unlocked(fn func() error) error {
	if err := d.dev.Unlock(); err != nil {
		return err
	}
	err := fn()
	if lerr := d.dev.Lock(); err == nil {
		err = lerr
	}
	return err
}
