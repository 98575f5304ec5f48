package env

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/robotalks/chiplink/pkg/link"
	"github.com/robotalks/chiplink/pkg/protocol"
)

// Port kinds.
const (
	PortSim    = "sim"
	PortSerial = "serial"
	PortSPI    = "spi"
)

// Config provides common options to set up the link and the upstream.
type Config struct {
	// Port selects the link port: sim, serial:DEVICE or spi:BUS.
	Port string
	// Baud is the baud rate of a serial port.
	Baud int
	// SPIHz is the clock of a SPI port.
	SPIHz int64
	// Timeout is the default request timeout.
	Timeout time.Duration
	// QueueDepth is the depth of each link queue.
	QueueDepth int

	// UpstreamURL selects the upstream, e.g. mqtt://host:1883/chiplink/,
	// ws://host/path or tcp://host:port. Empty for none.
	UpstreamURL string
	// DeviceID identifies the device upstream, the machine ID if empty.
	DeviceID string
}

var defaultConfig = Config{
	Port:       PortSim,
	Baud:       link.DefaultBaudRate,
	SPIHz:      int64(link.DefaultSPIFrequency / physic.Hertz),
	Timeout:    protocol.DefaultTimeout,
	QueueDepth: link.DefaultQueueDepth,
}

func init() {
	if val := os.Getenv("CHIPLINK_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("CHIPLINK_UPSTREAM"); val != "" {
		defaultConfig.UpstreamURL = val
	}
	if val := os.Getenv("CHIPLINK_ID"); val != "" {
		defaultConfig.DeviceID = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Link port: sim, serial:DEVICE or spi:BUS.")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Serial baud rate.")
	flag.Int64Var(&defaultConfig.SPIHz, "spi-hz", defaultConfig.SPIHz, "SPI clock in Hz.")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Request timeout.")
	flag.IntVar(&defaultConfig.QueueDepth, "queue-depth", defaultConfig.QueueDepth, "Depth of link queues in frames.")
	flag.StringVar(&defaultConfig.UpstreamURL, "upstream", defaultConfig.UpstreamURL, "Upstream URL (mqtt://, ws://, tcp://).")
	flag.StringVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Device ID, machine ID if empty.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// ID returns the device ID.
func (c *Config) ID() string {
	if c.DeviceID == "" {
		c.DeviceID = MachineID()
	}
	return c.DeviceID
}

// SPIFrequency returns SPIHz as physic.Frequency.
func (c *Config) SPIFrequency() physic.Frequency {
	return physic.Frequency(c.SPIHz) * physic.Hertz
}

// ParsePort splits Port into kind and name.
func (c *Config) ParsePort() (kind, name string, err error) {
	items := strings.SplitN(c.Port, ":", 2)
	kind = items[0]
	if len(items) > 1 {
		name = items[1]
	}
	switch kind {
	case PortSim:
	case PortSerial:
		if name == "" {
			return kind, name, fmt.Errorf("serial port device expected: %q", c.Port)
		}
	case PortSPI:
	default:
		return kind, name, fmt.Errorf("unknown port %q", c.Port)
	}
	return kind, name, nil
}
