package link

import (
	"fmt"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// DefaultBaudRate is the default serial baud rate.
const DefaultBaudRate = 115200

// OpenSerial opens a serial port as a StreamPort.
func OpenSerial(name string, baud int) (*StreamPort, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %q: %w", name, err)
	}
	glog.Infof("serial %s opened at %d baud", name, baud)
	return NewStreamPort(port), nil
}
