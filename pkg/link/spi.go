package link

import (
	"fmt"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultSPIFrequency is the default SPI clock.
const DefaultSPIFrequency = 1 * physic.MegaHertz

// SPIPort is a Port on a SPI bus.
type SPIPort struct {
	spi.Conn

	port spi.PortCloser
}

// OpenSPI opens the SPI bus by name (empty for the first one) in mode 0
// with 8-bit words.
func OpenSPI(name string, freq physic.Frequency) (*SPIPort, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	if freq == 0 {
		freq = DefaultSPIFrequency
	}
	conn, err := port.Connect(freq, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi %q: %w", name, err)
	}
	glog.Infof("spi %s opened at %s", port, freq)
	return &SPIPort{Conn: conn, port: port}, nil
}

// Close implements io.Closer.
func (p *SPIPort) Close() error {
	return p.port.Close()
}
