package upstream

import (
	"errors"
	"net"
)

// ErrBusy indicates the upstream can't accept a packet now.
var ErrBusy = errors.New("upstream busy")

// Upstream transmits packets to the host.
// Transmit must not block longer than a short timeout, it returns ErrBusy
// when the packet can't be accepted in time.
type Upstream interface {
	Transmit([]byte) error
}

// PacketReader reads packets from the host.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// Conn is a bi-directional upstream.
type Conn interface {
	Upstream
	PacketReader
}

// BusyOnTimeout translates a network timeout into ErrBusy.
func BusyOnTimeout(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrBusy
	}
	return err
}
