package upstream

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/chiplink/pkg/link"
	"github.com/robotalks/chiplink/pkg/protocol"
)

// Relay consumes unsolicited commands of the link, hands them to the
// application handler and transmits them upstream as events.
type Relay struct {
	Dispatcher *protocol.Dispatcher
	Upstream   Upstream
	Handler    protocol.CommandHandler
	// Filter selects the commands to transmit upstream, nil for all.
	Filter   func(protocol.Command) bool
	DeviceID string

	dropped int
}

// NewRelay creates a Relay.
func NewRelay(d *protocol.Dispatcher, up Upstream, deviceID string) *Relay {
	return &Relay{Dispatcher: d, Upstream: up, DeviceID: deviceID}
}

// Name implements framework.Named.
func (r *Relay) Name() string {
	return "relay"
}

// Run implements framework.Runnable.
func (r *Relay) Run(ctx context.Context) error {
	for {
		cmd, err := r.Dispatcher.Receive(ctx, link.Forever)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			glog.Warningf("relay: %v", err)
			continue
		}
		r.relay(ctx, cmd)
	}
}

func (r *Relay) relay(ctx context.Context, cmd protocol.Command) {
	if h := r.Handler; h != nil {
		h.HandleCommand(ctx, cmd)
	}
	if r.Upstream == nil || (r.Filter != nil && !r.Filter(cmd)) {
		return
	}
	pkt, err := EncodeEvent(r.DeviceID, cmd)
	if err != nil {
		glog.Errorf("relay: encode %s: %v", cmd.Opcode(), err)
		return
	}
	switch err = r.Upstream.Transmit(pkt); err {
	case nil:
		glog.V(2).Infof("relay: %s sent", cmd.Opcode())
	case ErrBusy:
		r.dropped++
		glog.Warningf("relay: %s dropped, upstream busy (%d dropped)", cmd.Opcode(), r.dropped)
	default:
		glog.Errorf("relay: transmit %s: %v", cmd.Opcode(), err)
	}
}

// DefaultForwardTimeout is the default timeout to queue a forwarded command.
const DefaultForwardTimeout = 100 * time.Millisecond

// Forwarder reads events from the host and sends the notifications among
// them to the peer.
type Forwarder struct {
	Reader     PacketReader
	Dispatcher *protocol.Dispatcher
	Timeout    time.Duration
}

// NewForwarder creates a Forwarder.
func NewForwarder(r PacketReader, d *protocol.Dispatcher) *Forwarder {
	return &Forwarder{Reader: r, Dispatcher: d, Timeout: DefaultForwardTimeout}
}

// Name implements framework.Named.
func (f *Forwarder) Name() string {
	return "forwarder"
}

// Run implements framework.Runnable.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		pkt, err := f.Reader.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		_, cmd, err := DecodeEvent(pkt)
		if err != nil {
			glog.Warningf("forwarder: drop packet: %v", err)
			continue
		}
		if !cmd.Opcode().IsNotification() {
			glog.Warningf("forwarder: drop %s: not a notification", cmd.Opcode())
			continue
		}
		if err = f.Dispatcher.Send(cmd, f.Timeout); err != nil {
			glog.Warningf("forwarder: drop %s: %v", cmd.Opcode(), err)
		}
	}
}
