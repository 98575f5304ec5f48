package flash

import (
	"bytes"
	"errors"
	"testing"

	"github.com/marcinbor85/gohex"
	"github.com/stretchr/testify/require"
)

func TestNewImagePadding(t *testing.T) {
	img, err := NewImage(testGeometry, 0x100, []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 0xff, 0xff, 0xff, 0xff, 0xff}, img.Data)

	_, err = NewImage(testGeometry, 0x104, []byte{1})
	require.Equal(t, ErrMisaligned, err)
	_, err = NewImage(testGeometry, 0, nil)
	require.Equal(t, ErrEmptyImage, err)
	_, err = NewImage(testGeometry, 0, make([]byte, testGeometry.BankSize+1))
	require.True(t, errors.Is(err, ErrOutOfRange))
}

func TestParseHex(t *testing.T) {
	mem := gohex.NewMemory()
	data := pattern(20, 1)
	mem.AddBinary(testGeometry.Base+0x104, data)
	var buf bytes.Buffer
	require.NoError(t, mem.DumpIntelHex(&buf, 16))

	img, err := ParseHex(testGeometry, buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, uint32(0x100), img.Offset)
	require.Len(t, img.Data, 24)
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, img.Data[:4])
	require.Equal(t, data, img.Data[4:])
}

func TestParseHexBelowBase(t *testing.T) {
	mem := gohex.NewMemory()
	mem.AddBinary(0x100, []byte{1, 2, 3, 4})
	var buf bytes.Buffer
	require.NoError(t, mem.DumpIntelHex(&buf, 16))
	_, err := ParseHex(testGeometry, buf.Bytes())
	require.True(t, errors.Is(err, ErrOutOfRange))
}
