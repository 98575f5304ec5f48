package env

import (
	"fmt"
	"io"
	"net"
	"net/url"

	"github.com/golang/glog"

	"github.com/robotalks/chiplink/pkg/framework"
	"github.com/robotalks/chiplink/pkg/link"
	"github.com/robotalks/chiplink/pkg/protocol"
	"github.com/robotalks/chiplink/pkg/upstream"
	"github.com/robotalks/chiplink/pkg/upstream/mqtt"
	"github.com/robotalks/chiplink/pkg/upstream/stream"
	"github.com/robotalks/chiplink/pkg/upstream/websocket"
)

// Link is an opened link to the chip.
type Link struct {
	Dispatcher *protocol.Dispatcher
	Transport  *link.Transport
	// Chip is the simulated peer with the sim port.
	Chip *SimChip

	closers []io.Closer
}

// OpenLink opens the configured port and sets up the transport and the
// dispatcher on it.
func (c *Config) OpenLink() (*Link, error) {
	kind, name, err := c.ParsePort()
	if err != nil {
		return nil, err
	}
	l := &Link{Dispatcher: protocol.NewDispatcher(link.NewChannels(c.QueueDepth))}
	switch kind {
	case PortSim:
		local, remote := link.Pair()
		l.Chip = NewSimChip(remote, c.QueueDepth)
		l.Transport = link.NewTransport(local, l.Dispatcher.Channels)
		l.closers = append(l.closers, local, remote)
	case PortSerial:
		port, err := link.OpenSerial(name, c.Baud)
		if err != nil {
			return nil, err
		}
		l.Transport = link.NewTransport(port, l.Dispatcher.Channels)
		l.closers = append(l.closers, port)
	case PortSPI:
		port, err := link.OpenSPI(name, c.SPIFrequency())
		if err != nil {
			return nil, err
		}
		l.Transport = link.NewTransport(port, l.Dispatcher.Channels)
		l.Transport.Duplex = true
		l.closers = append(l.closers, port)
	}
	l.Transport.Handler = l.Dispatcher
	glog.Infof("link opened on %s", c.Port)
	return l, nil
}

// Runnables returns the tasks serving the link.
func (l *Link) Runnables() []framework.Runnable {
	runnables := []framework.Runnable{l.Transport}
	if l.Chip != nil {
		runnables = append(runnables, l.Chip)
	}
	return runnables
}

// Close implements io.Closer.
func (l *Link) Close() error {
	var errs framework.AggregatedError
	for _, closer := range l.closers {
		errs.Add(closer.Close())
	}
	return errs.Aggregate()
}

// Upstream is an opened upstream.
type Upstream struct {
	Conn upstream.Conn
	// Runnable is the connection task if the upstream needs one.
	Runnable framework.Runnable

	closer io.Closer
}

// OpenUpstream opens the configured upstream, nil if not configured.
func (c *Config) OpenUpstream() (*Upstream, error) {
	if c.UpstreamURL == "" {
		return nil, nil
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	switch u.Scheme {
	case "mqtt", "mqtts":
		dev, err := mqtt.NewDevice(c.UpstreamURL, c.ID())
		if err != nil {
			return nil, err
		}
		return &Upstream{Conn: dev, Runnable: dev}, nil
	case "ws", "wss":
		conn, err := websocket.Dial(c.UpstreamURL)
		if err != nil {
			return nil, err
		}
		return &Upstream{Conn: conn, closer: conn}, nil
	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		s := stream.New(conn)
		return &Upstream{Conn: s, closer: s}, nil
	}
	return nil, fmt.Errorf("unknown upstream URL scheme: %q", u.Scheme)
}

// Close implements io.Closer.
func (u *Upstream) Close() error {
	if u.closer != nil {
		return u.closer.Close()
	}
	return nil
}

// Relay returns the tasks relaying between the link and the upstream.
// up may be nil, then only handler receives unsolicited commands.
func (l *Link) Relay(up *Upstream, deviceID string, handler protocol.CommandHandler) []framework.Runnable {
	relay := upstream.NewRelay(l.Dispatcher, nil, deviceID)
	relay.Handler = handler
	runnables := []framework.Runnable{relay}
	if up == nil {
		return runnables
	}
	relay.Upstream = up.Conn
	if up.Runnable != nil {
		runnables = append(runnables, up.Runnable)
	}
	fwd := upstream.NewForwarder(up.Conn, l.Dispatcher)
	if up.closer != nil {
		runnables = append(runnables, framework.CloseOnCancel(fwd, up.closer))
	} else {
		runnables = append(runnables, fwd)
	}
	return runnables
}
