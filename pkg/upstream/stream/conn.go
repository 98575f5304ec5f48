package stream

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/robotalks/chiplink/pkg/upstream"
)

// DefaultTimeout is the default write timeout.
const DefaultTimeout = 20 * time.Millisecond

type deadlineWriter interface {
	SetWriteDeadline(time.Time) error
}

// Conn implements upstream.Conn over a byte stream.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type Conn struct {
	io.ReadWriter
	// Timeout bounds Transmit if the stream supports write deadlines.
	Timeout time.Duration

	writeLock sync.Mutex
}

// New creates a Conn with io.ReadWriter.
func New(s io.ReadWriter) *Conn {
	return &Conn{ReadWriter: s, Timeout: DefaultTimeout}
}

// ReadPacket implements upstream.PacketReader.
func (c *Conn) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(c.ReadWriter, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(c.ReadWriter, pkt)
	return pkt, err
}

// Transmit implements upstream.Upstream.
func (c *Conn) Transmit(pkt []byte) error {
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)

	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if dw, ok := c.ReadWriter.(deadlineWriter); ok && c.Timeout > 0 {
		if err := dw.SetWriteDeadline(time.Now().Add(c.Timeout)); err != nil {
			return err
		}
		defer dw.SetWriteDeadline(time.Time{})
	}
	_, err := c.Write(buf)
	return upstream.BusyOnTimeout(err)
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	if closer, ok := c.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
