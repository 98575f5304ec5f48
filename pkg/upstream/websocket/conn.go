package websocket

import (
	"time"

	"golang.org/x/net/websocket"

	"github.com/robotalks/chiplink/pkg/upstream"
)

// DefaultTimeout is the default write timeout.
const DefaultTimeout = 50 * time.Millisecond

// Conn implements upstream.Conn over a websocket, one packet per binary
// message.
type Conn struct {
	WS      *websocket.Conn
	Timeout time.Duration
}

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *Conn {
	return &Conn{WS: conn, Timeout: DefaultTimeout}
}

// Dial connects to a websocket server.
func Dial(url string) (*Conn, error) {
	ws, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}

// ReadPacket implements upstream.PacketReader.
func (c *Conn) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive(c.WS, &pkt)
	return
}

// Transmit implements upstream.Upstream.
func (c *Conn) Transmit(pkt []byte) error {
	if c.Timeout > 0 {
		if err := c.WS.SetWriteDeadline(time.Now().Add(c.Timeout)); err != nil {
			return err
		}
		defer c.WS.SetWriteDeadline(time.Time{})
	}
	return upstream.BusyOnTimeout(websocket.Message.Send(c.WS, pkt))
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	return c.WS.Close()
}
