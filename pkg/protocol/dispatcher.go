package protocol

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/chiplink/pkg/link"
)

// ModeSource provides the current running mode.
type ModeSource interface {
	Mode() Mode
}

// ModeFunc is func type of ModeSource.
type ModeFunc func() Mode

// Mode implements ModeSource.
func (f ModeFunc) Mode() Mode {
	return f()
}

// RebootHandler is called when the peer requests a reboot.
type RebootHandler interface {
	Reboot(ctx context.Context, toUpdate bool)
}

// RebootFunc is func type of RebootHandler.
type RebootFunc func(ctx context.Context, toUpdate bool)

// Reboot implements RebootHandler.
func (f RebootFunc) Reboot(ctx context.Context, toUpdate bool) {
	f(ctx, toUpdate)
}

// CommandHandler processes an unsolicited command.
type CommandHandler interface {
	HandleCommand(context.Context, Command)
}

// HandleCommandFunc is func type of CommandHandler.
type HandleCommandFunc func(context.Context, Command)

// HandleCommand implements CommandHandler.
func (f HandleCommandFunc) HandleCommand(ctx context.Context, cmd Command) {
	f(ctx, cmd)
}

// DefaultTimeout is the default timeout of a request.
const DefaultTimeout = 5 * time.Second

// DefaultReplyTimeout bounds how long the receiving task waits to queue
// an immediate reply or an unsolicited command.
const DefaultReplyTimeout = 50 * time.Millisecond

// Dispatcher issues commands and classifies received frames.
type Dispatcher struct {
	Channels     *link.Channels
	Modes        ModeSource
	Rebooter     RebootHandler
	ReplyTimeout time.Duration

	reqLock sync.Mutex
	pending int32
}

// NewDispatcher creates a Dispatcher using the shared channels.
func NewDispatcher(channels *link.Channels) *Dispatcher {
	return &Dispatcher{
		Channels:     channels,
		ReplyTimeout: DefaultReplyTimeout,
	}
}

// SendWithReply sends a command and waits up to timeout for the RETURN
// frame. Only one request is in flight: concurrent callers are serialized.
// ErrNoReply is returned when timeout elapses.
func (d *Dispatcher) SendWithReply(ctx context.Context, cmd Command, timeout time.Duration) (Return, error) {
	d.reqLock.Lock()
	defer d.reqLock.Unlock()

	start := time.Now()
	// replies arrived after a previous request timed out.
	if n := d.Channels.Return.Drain(); n > 0 {
		glog.V(1).Infof("dropped %d stale replies", n)
	}
	atomic.StoreInt32(&d.pending, 1)
	defer atomic.StoreInt32(&d.pending, 0)

	if err := d.Channels.Outbound.PutContext(ctx, Encode(cmd), timeout); err != nil {
		return Return{}, err
	}
	wait := timeout
	if timeout >= 0 {
		if wait = timeout - time.Since(start); wait < 0 {
			wait = 0
		}
	}
	f, err := d.Channels.Return.GetContext(ctx, wait)
	if err == link.ErrQueueTimeout {
		glog.V(1).Infof("%s: no reply in %s", cmd.Opcode(), timeout)
		return Return{}, ErrNoReply
	}
	if err != nil {
		return Return{}, err
	}
	reply, err := Decode(f)
	if err != nil {
		return Return{}, err
	}
	return reply.(Return), nil
}

// Send sends a command without waiting for a reply.
func (d *Dispatcher) Send(cmd Command, timeout time.Duration) error {
	return d.Channels.Outbound.Put(Encode(cmd), timeout)
}

// Receive waits up to timeout for an unsolicited command.
func (d *Dispatcher) Receive(ctx context.Context, timeout time.Duration) (Command, error) {
	f, err := d.Channels.Unsolicited.GetContext(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return Decode(f)
}

// Pending indicates a request is waiting for its reply.
func (d *Dispatcher) Pending() bool {
	return atomic.LoadInt32(&d.pending) != 0
}

// HandleFrame implements link.FrameHandler.
func (d *Dispatcher) HandleFrame(ctx context.Context, f link.Frame) {
	cmd, err := Decode(f)
	if err != nil {
		glog.Warningf("drop frame %s: %v", f, err)
		return
	}
	switch c := cmd.(type) {
	case Return:
		if !d.Pending() {
			glog.V(1).Infof("drop RETURN %s: no pending request", f)
			return
		}
		d.put(d.Channels.Return, f)
	case Knock:
		d.reply(KnockAck)
	case ModeQuery:
		d.reply(Return{Payload: [link.PayloadSize]byte{byte(d.mode())}})
	case LinkStateQuery:
		d.reply(Return{Payload: [link.PayloadSize]byte{LinkUp}})
	case Reboot, RebootToUpdate:
		toUpdate := c.Opcode() == OpRebootToUpdate
		glog.Infof("%s requested by peer", c.Opcode())
		if h := d.Rebooter; h != nil {
			go h.Reboot(ctx, toUpdate)
		}
	default:
		d.put(d.Channels.Unsolicited, f)
	}
}

func (d *Dispatcher) mode() Mode {
	if m := d.Modes; m != nil {
		return m.Mode()
	}
	return ModeApplication
}

func (d *Dispatcher) reply(r Return) {
	d.put(d.Channels.Outbound, Encode(r))
}

func (d *Dispatcher) put(q *link.Queue, f link.Frame) {
	if err := q.Put(f, d.ReplyTimeout); err != nil {
		glog.Warningf("drop frame %s: %s: %v", f, q.Name, err)
	}
}

// Knock probes the peer and checks the acknowledgment.
func (d *Dispatcher) Knock(ctx context.Context, timeout time.Duration) error {
	r, err := d.SendWithReply(ctx, Knock{}, timeout)
	if err != nil {
		return err
	}
	if r != KnockAck {
		return ErrUnexpectedReply
	}
	return nil
}

// QueryMode asks the peer for its running mode.
func (d *Dispatcher) QueryMode(ctx context.Context, timeout time.Duration) (Mode, error) {
	r, err := d.SendWithReply(ctx, ModeQuery{}, timeout)
	if err != nil {
		return 0, err
	}
	return r.Mode(), nil
}

// QueryLinkState asks the peer for its link state.
func (d *Dispatcher) QueryLinkState(ctx context.Context, timeout time.Duration) (byte, error) {
	r, err := d.SendWithReply(ctx, LinkStateQuery{}, timeout)
	if err != nil {
		return 0, err
	}
	return r.Payload[0], nil
}

// RequestReboot asks the peer to reboot, optionally into update mode.
func (d *Dispatcher) RequestReboot(toUpdate bool, timeout time.Duration) error {
	if toUpdate {
		return d.Send(RebootToUpdate{}, timeout)
	}
	return d.Send(Reboot{}, timeout)
}

// SetLED switches the LED of the peer.
func (d *Dispatcher) SetLED(state byte, timeout time.Duration) error {
	return d.Send(LEDState{State: state}, timeout)
}

// SendBattery reports the battery life to the peer.
func (d *Dispatcher) SendBattery(percent byte, timeout time.Duration) error {
	return d.Send(BatteryLevel{Percent: percent}, timeout)
}

// SendMIDI forwards a USB-MIDI event packet to the peer.
func (d *Dispatcher) SendMIDI(packet [4]byte, timeout time.Duration) error {
	return d.Send(MIDIEvent{Packet: packet}, timeout)
}

// SendFrequency sends a frequency value to the peer.
func (d *Dispatcher) SendFrequency(hz float32, timeout time.Duration) error {
	return d.Send(Frequency{Hz: hz}, timeout)
}
