package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/chiplink/pkg/link"
	"github.com/robotalks/chiplink/pkg/protocol"
)

func mustMarshal(t *testing.T, msg proto.Message) []byte {
	pkt, err := proto.Marshal(msg)
	require.NoError(t, err)
	return pkt
}

type fakeUpstream struct {
	packets chan []byte
	err     error
}

func (u *fakeUpstream) Transmit(pkt []byte) error {
	if u.err != nil {
		return u.err
	}
	u.packets <- pkt
	return nil
}

type relayTestEnv struct {
	t      *testing.T
	d      *protocol.Dispatcher
	up     *fakeUpstream
	relay  *Relay
	cmds   chan protocol.Command
	cancel context.CancelFunc
	done   chan error
}

func newRelayTestEnv(t *testing.T) *relayTestEnv {
	env := &relayTestEnv{
		t:    t,
		d:    protocol.NewDispatcher(link.NewChannels(8)),
		up:   &fakeUpstream{packets: make(chan []byte, 8)},
		cmds: make(chan protocol.Command, 8),
		done: make(chan error, 1),
	}
	env.relay = NewRelay(env.d, env.up, "dev1")
	env.relay.Handler = protocol.HandleCommandFunc(func(_ context.Context, cmd protocol.Command) {
		env.cmds <- cmd
	})
	return env
}

func (e *relayTestEnv) start() {
	var ctx context.Context
	ctx, e.cancel = context.WithCancel(context.Background())
	go func() {
		e.done <- e.relay.Run(ctx)
	}()
}

func (e *relayTestEnv) stop() {
	e.cancel()
	require.Equal(e.t, context.Canceled, <-e.done)
}

func (e *relayTestEnv) expectCommand(expected protocol.Command) {
	select {
	case cmd := <-e.cmds:
		require.Equal(e.t, expected, cmd)
	case <-time.After(time.Second):
		e.t.Fatalf("expect %s", expected.Opcode())
	}
}

func (e *relayTestEnv) expectEvent(expected protocol.Command) {
	select {
	case pkt := <-e.up.packets:
		device, cmd, err := DecodeEvent(pkt)
		require.NoError(e.t, err)
		require.Equal(e.t, "dev1", device)
		require.Equal(e.t, expected, cmd)
	case <-time.After(time.Second):
		e.t.Fatalf("expect event %s", expected.Opcode())
	}
}

func TestRelay(t *testing.T) {
	env := newRelayTestEnv(t)
	env.start()
	defer env.stop()

	env.d.HandleFrame(context.Background(), link.MakeFrame(0xa1, 55))
	env.expectCommand(protocol.BatteryLevel{Percent: 55})
	env.expectEvent(protocol.BatteryLevel{Percent: 55})
}

func TestRelayFilter(t *testing.T) {
	env := newRelayTestEnv(t)
	env.relay.Filter = func(cmd protocol.Command) bool {
		return cmd.Opcode() == protocol.OpMIDI
	}
	env.start()
	defer env.stop()

	env.d.HandleFrame(context.Background(), link.MakeFrame(0xa0, 1))
	env.d.HandleFrame(context.Background(), link.MakeFrame(0xaa, 0x09, 0x90, 0x3c, 0x7f))
	env.expectCommand(protocol.LEDState{State: 1})
	env.expectCommand(protocol.MIDIEvent{Packet: [4]byte{0x09, 0x90, 0x3c, 0x7f}})
	env.expectEvent(protocol.MIDIEvent{Packet: [4]byte{0x09, 0x90, 0x3c, 0x7f}})
	require.Empty(t, env.up.packets)
}

func TestRelayBusy(t *testing.T) {
	env := newRelayTestEnv(t)
	env.up.err = ErrBusy
	env.start()
	defer env.stop()

	for i := 0; i < 16; i++ {
		env.d.HandleFrame(context.Background(), link.MakeFrame(0xa1, byte(i)))
		env.expectCommand(protocol.BatteryLevel{Percent: byte(i)})
	}
	require.Zero(t, env.d.Channels.Unsolicited.Len())
}
