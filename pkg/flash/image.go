package flash

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/snksoft/crc"
)

// ErrEmptyImage indicates the image contains no data.
var ErrEmptyImage = errors.New("empty image")

// Image is a firmware image ready to be programmed into a bank.
type Image struct {
	// Offset is the offset inside the bank.
	Offset uint32
	// Data is padded to the program unit.
	Data []byte
}

// Size returns the size of the image in bytes.
func (img *Image) Size() uint32 {
	return uint32(len(img.Data))
}

// Checksum calculates CRC-32 of the image data.
func (img *Image) Checksum() uint32 {
	h := crc.NewHashWithTable(crcTable)
	h.Update(img.Data)
	return h.CRC32()
}

// NewImage creates an image from raw bytes starting at bank offset.
func NewImage(geo Geometry, offset uint32, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if !geo.IsAligned(offset) {
		return nil, ErrMisaligned
	}
	img := &Image{Offset: offset, Data: pad(data, geo.ProgramUnit)}
	if !geo.InBank(img.Offset, img.Size()) {
		return nil, fmt.Errorf("image %d bytes at %#x: %w", img.Size(), offset, ErrOutOfRange)
	}
	return img, nil
}

func pad(data []byte, unit uint32) []byte {
	n := uint32(len(data))
	if rem := n % unit; rem != 0 {
		n += unit - rem
	}
	out := make([]byte, n)
	fill(out[len(data):], 0xff)
	copy(out, data)
	return out
}

// ParseHex parses an Intel HEX image. Addresses are rebased to the bank:
// an image linked at the execute base address lands at offset 0.
func ParseHex(geo Geometry, content []byte) (*Image, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(bytes.NewReader(content)); err != nil {
		return nil, err
	}
	segs := mem.GetDataSegments()
	if len(segs) == 0 {
		return nil, ErrEmptyImage
	}
	start := segs[0].Address
	end := start
	for _, seg := range segs {
		if seg.Address < start {
			start = seg.Address
		}
		if e := seg.Address + uint32(len(seg.Data)); e > end {
			end = e
		}
	}
	if start < geo.Base {
		return nil, fmt.Errorf("image starts at %#x below base %#x: %w", start, geo.Base, ErrOutOfRange)
	}
	offset := start - geo.Base
	offset -= offset % geo.ProgramUnit
	data := mem.ToBinary(geo.Base+offset, end-geo.Base-offset, 0xff)
	return NewImage(geo, offset, data)
}

// LoadImage loads an image file. Files with ".hex" extension are parsed
// as Intel HEX, others are raw binaries placed at the vector table offset.
func LoadImage(geo Geometry, path string) (*Image, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".hex") {
		return ParseHex(geo, content)
	}
	return NewImage(geo, geo.VectorOffset, content)
}
