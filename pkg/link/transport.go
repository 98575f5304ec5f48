package link

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/chiplink/pkg/framework"
)

// FrameHandler is called when a frame is received.
// It's called from the receiving task and must not block on the reply
// of another exchange.
type FrameHandler interface {
	HandleFrame(context.Context, Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(context.Context, Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame Frame) {
	f(ctx, frame)
}

// DefaultPollInterval is how long the duplex transport waits for an
// outbound frame before clocking an idle frame.
const DefaultPollInterval = 10 * time.Millisecond

// Transport exchanges frames between the Outbound queue and the ports.
//
// With separate ports (or a StreamPort serving both directions), one task
// transmits frames from Outbound on TX and another one blocks on RX and
// delivers every received frame to Handler in completion order.
//
// With Duplex set, a single task owns TX: every transfer clocks out the
// next outbound frame (or an idle frame after PollInterval) and clocks in
// one frame from the peer. Idle frames received are not delivered.
type Transport struct {
	TX           Port
	RX           Port
	Duplex       bool
	PollInterval time.Duration
	Channels     *Channels
	Handler      FrameHandler
}

// NewTransport creates a Transport using a single port for both directions.
func NewTransport(port Port, channels *Channels) *Transport {
	return &Transport{
		TX:           port,
		RX:           port,
		PollInterval: DefaultPollInterval,
		Channels:     channels,
	}
}

// Name implements framework.Named.
func (t *Transport) Name() string {
	return "transport"
}

// Run processes the transport until ctx is done or a port fails.
// The receiving task blocks in RX, so if RX is an io.Closer it's closed
// when Run exits, otherwise the caller must close the port to release it.
func (t *Transport) Run(ctx context.Context) error {
	if t.Duplex {
		return t.duplexLoop(ctx)
	}
	if closer, ok := t.RX.(io.Closer); ok {
		return framework.RunWithContextCloser(ctx, closer, func() error {
			return t.run(ctx)
		})
	}
	return t.run(ctx)
}

func (t *Transport) run(ctx context.Context) error {
	errCh := make(chan error, 2)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		errCh <- t.sendLoop(subCtx)
	}()
	go func() {
		errCh <- t.recvLoop(subCtx)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) sendLoop(ctx context.Context) error {
	for {
		frame, err := t.Channels.Outbound.GetContext(ctx, Forever)
		if err != nil {
			return err
		}
		glog.V(2).Infof("TX %s", frame)
		if err = t.TX.Tx(frame[:], nil); err != nil {
			glog.Errorf("transmit %s: %v", frame, err)
			return err
		}
	}
}

func (t *Transport) recvLoop(ctx context.Context) error {
	var frame Frame
	for {
		if err := t.RX.Tx(nil, frame[:]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			glog.Errorf("receive: %v", err)
			return err
		}
		t.deliver(ctx, frame)
	}
}

func (t *Transport) duplexLoop(ctx context.Context) error {
	interval := t.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	var rx Frame
	for {
		tx, err := t.Channels.Outbound.GetContext(ctx, interval)
		if err == ErrQueueTimeout {
			tx = Frame{}
		} else if err != nil {
			return err
		} else {
			glog.V(2).Infof("TX %s", tx)
		}
		rx = Frame{}
		if err = t.TX.Tx(tx[:], rx[:]); err != nil {
			glog.Errorf("transfer %s: %v", tx, err)
			return err
		}
		// The peer clocks zeros when it has nothing to send, so an
		// all-zero frame is idle even though it decodes as a RETURN with
		// an empty payload. Replies must carry a non-zero payload.
		if !rx.IsIdle() {
			t.deliver(ctx, rx)
		}
	}
}

func (t *Transport) deliver(ctx context.Context, frame Frame) {
	glog.V(2).Infof("RX %s", frame)
	if h := t.Handler; h != nil {
		h.HandleFrame(ctx, frame)
	}
}
