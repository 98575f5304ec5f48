package link

import (
	"io"
	"net"
	"sync"
)

// Port performs one full-duplex transfer: w is clocked out while r is
// filled with what is clocked in. Either may be nil for a half-duplex
// transfer. The signature matches periph.io spi.Conn.
type Port interface {
	Tx(w, r []byte) error
}

// StreamPort adapts an io.ReadWriter (e.g. a serial port) to Port.
// Writes and reads are independent, so one StreamPort can serve both
// the sending and the receiving task.
type StreamPort struct {
	ReadWriter io.ReadWriter

	writeLock sync.Mutex
	readLock  sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewStreamPort creates a StreamPort.
func NewStreamPort(rw io.ReadWriter) *StreamPort {
	return &StreamPort{ReadWriter: rw}
}

// Tx implements Port.
func (p *StreamPort) Tx(w, r []byte) error {
	if len(w) > 0 {
		p.writeLock.Lock()
		n, err := p.ReadWriter.Write(w)
		p.writeLock.Unlock()
		if err != nil {
			return err
		}
		if n != len(w) {
			return ErrShortTransfer
		}
	}
	if len(r) > 0 {
		p.readLock.Lock()
		defer p.readLock.Unlock()
		if _, err := io.ReadFull(p.ReadWriter, r); err != nil {
			return err
		}
	}
	return nil
}

// Close implements io.Closer. It's safe to call more than once.
func (p *StreamPort) Close() error {
	p.closeOnce.Do(func() {
		if closer, ok := p.ReadWriter.(io.Closer); ok {
			p.closeErr = closer.Close()
		}
	})
	return p.closeErr
}

// Pair creates two connected in-memory ports.
func Pair() (*StreamPort, *StreamPort) {
	a, b := net.Pipe()
	return NewStreamPort(a), NewStreamPort(b)
}
