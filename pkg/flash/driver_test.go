package flash

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var testGeometry = Geometry{
	Base:         0x08000000,
	BankSize:     0x1000,
	ProgramUnit:  8,
	VectorOffset: 0x100,
}

func newTestDriver() (*Memory, *Driver) {
	mem := NewMemory(testGeometry)
	return mem, NewDriver(mem)
}

func pattern(n int, seed byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = seed + byte(i*7)
	}
	return p
}

func TestCurrentBank(t *testing.T) {
	mem, drv := newTestDriver()
	require.Equal(t, Bank0, drv.CurrentBank())
	mem.SetRemap(RemapSwapped)
	require.Equal(t, Bank1, drv.CurrentBank())
	// the persisted selector doesn't matter before reset.
	require.NoError(t, drv.SetBootSelector(Bank0))
	require.Equal(t, Bank1, drv.CurrentBank())
}

func TestWriteReadBack(t *testing.T) {
	testCases := []struct {
		name   string
		offset uint32
		length int
	}{
		{"single unit", 0, 8},
		{"unit at end", testGeometry.BankSize - 8, 8},
		{"multiple units", 0x40, 64},
		{"whole bank", 0, int(testGeometry.BankSize)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, drv := newTestDriver()
			data := pattern(tc.length, byte(tc.offset))
			require.NoError(t, drv.Write(Bank1, tc.offset, data))
			readBack := make([]byte, tc.length)
			require.NoError(t, drv.Read(Bank1, tc.offset, readBack))
			require.Equal(t, data, readBack)
		})
	}
}

func TestWriteRejected(t *testing.T) {
	testCases := []struct {
		name   string
		bank   Bank
		offset uint32
		length int
		err    error
	}{
		{"misaligned offset", Bank1, 4, 8, ErrMisaligned},
		{"misaligned length", Bank1, 0, 12, ErrMisaligned},
		{"partial word", Bank1, 0, 3, ErrMisaligned},
		{"past the end", Bank1, testGeometry.BankSize - 8, 16, ErrOutOfRange},
		{"active bank", Bank0, 0, 8, ErrActiveBank},
		{"unknown bank", Bank(2), 0, 8, ErrInvalidBank},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mem, drv := newTestDriver()
			err := drv.Write(tc.bank, tc.offset, pattern(tc.length, 1))
			require.True(t, errors.Is(err, tc.err), "got %v", err)
			require.Empty(t, mem.Trace(), "hardware touched")
		})
	}
}

func TestWriteFailure(t *testing.T) {
	mem, drv := newTestDriver()
	mem.FailProgramAt = map[uint32]bool{0x18: true}
	err := drv.Write(Bank1, 0, pattern(64, 3))
	var flashErr *FlashError
	require.True(t, errors.As(err, &flashErr))
	require.Equal(t, "program", flashErr.Op)
	require.Equal(t, uint32(0x18), flashErr.Offset)
	require.True(t, errors.Is(err, ErrInjected))
	main, _ := mem.Locked()
	require.True(t, main, "flash left unlocked")
}

func TestWriteOverProgrammed(t *testing.T) {
	_, drv := newTestDriver()
	require.NoError(t, drv.Write(Bank1, 0, pattern(8, 1)))
	err := drv.Write(Bank1, 0, pattern(8, 2))
	require.True(t, errors.Is(err, ErrNotErased))
}

func TestErase(t *testing.T) {
	mem, drv := newTestDriver()
	require.NoError(t, drv.Write(Bank1, 0, pattern(256, 9)))
	mem.Trace()

	erased := bytes.Repeat([]byte{0xff}, int(testGeometry.BankSize))
	buf := make([]byte, testGeometry.BankSize)
	for i := 0; i < 2; i++ {
		require.NoError(t, drv.Erase(Bank1))
		require.NoError(t, drv.Read(Bank1, 0, buf))
		require.Equal(t, erased, buf, "erase #%d", i)
	}
	require.Equal(t, []string{
		"unlock", "erase bank1", "lock",
		"unlock", "erase bank1", "lock",
	}, mem.Trace())
}

func TestEraseActiveBank(t *testing.T) {
	mem, drv := newTestDriver()
	require.Equal(t, ErrActiveBank, drv.Erase(Bank0))
	mem.SetRemap(RemapSwapped)
	mem.Trace()
	require.Equal(t, ErrActiveBank, drv.Erase(Bank1))
	require.Empty(t, mem.Trace())
}

func TestInvalidRemapNotWritable(t *testing.T) {
	mem, drv := newTestDriver()
	mem.SetRemap(RemapInvalid)
	mem.Trace()
	_, err := drv.ActiveBank()
	require.True(t, errors.Is(err, ErrInvalidRemap), "got %v", err)
	for _, bank := range []Bank{Bank0, Bank1} {
		require.True(t, errors.Is(drv.Erase(bank), ErrInvalidRemap), "erase %s", bank)
		require.True(t, errors.Is(drv.Write(bank, 0, pattern(8, 1)), ErrInvalidRemap), "write %s", bank)
	}
	require.Empty(t, mem.Trace())
}

func TestEraseFailure(t *testing.T) {
	mem, drv := newTestDriver()
	mem.FailErase = map[Bank]bool{Bank1: true}
	err := drv.Erase(Bank1)
	var flashErr *FlashError
	require.True(t, errors.As(err, &flashErr))
	require.Equal(t, "erase", flashErr.Op)
	require.Equal(t, Bank1, flashErr.Bank)
}

func TestBootSelector(t *testing.T) {
	mem, drv := newTestDriver()
	require.Equal(t, Bank0, drv.BootSelector())
	require.NoError(t, drv.SetBootSelector(Bank1))
	require.Equal(t, Bank1, drv.BootSelector())
	require.Equal(t, []string{
		"unlock", "unlock-options", "selector bank1", "lock-options", "lock", "launch-options",
	}, mem.Trace())
	main, options := mem.Locked()
	require.True(t, main)
	require.True(t, options)
	require.Equal(t, Bank0, mem.BootedSelector())
	mem.Reset()
	require.Equal(t, Bank1, mem.BootedSelector())
}

func TestHasImage(t *testing.T) {
	testCases := []struct {
		name   string
		vector []byte
		expect bool
	}{
		{"erased", nil, false},
		{"blank", []byte{0, 0, 0, 0}, false},
		{"negative", []byte{0, 0, 0, 0x80}, false},
		{"stack pointer", []byte{0x00, 0x80, 0x01, 0x20}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mem, drv := newTestDriver()
			if tc.vector != nil {
				mem.Load(Bank1, testGeometry.VectorOffset, tc.vector)
			}
			require.Equal(t, tc.expect, drv.HasImage(Bank1))
		})
	}
}

func TestChecksum(t *testing.T) {
	_, drv := newTestDriver()
	img, err := NewImage(testGeometry, 0x100, pattern(2000, 5))
	require.NoError(t, err)
	require.NoError(t, drv.Write(Bank1, img.Offset, img.Data))
	require.NoError(t, drv.Validate(Bank1, img.Offset, img.Size(), img.Checksum()))
	err = drv.Validate(Bank1, img.Offset, img.Size(), img.Checksum()+1)
	require.True(t, errors.Is(err, ErrVerify))
}
