package mqtt

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/chiplink/pkg/upstream"
)

// Topics relative to the queue prefix. A device publishes events to
// ID/event, receives packets on ID/cmd and keeps a retained presence
// message on ID/state.
const (
	EventTopic = "event"
	CmdTopic   = "cmd"
	StateTopic = "state"
)

// Presence payloads.
const (
	Online  = "online"
	Offline = "offline"
)

// DefaultTimeout is the default publish timeout.
const DefaultTimeout = 100 * time.Millisecond

// DeviceTopic returns the topic of a device.
func DeviceTopic(deviceID, topic string) string {
	return deviceID + "/" + topic
}

// Device is the upstream of a device over MQTT.
// It implements upstream.Conn and framework.Runnable.
type Device struct {
	Queue    *Queue
	DeviceID string
	Timeout  time.Duration

	packetCh chan []byte
	doneCh   chan struct{}
}

// NewDevice creates a Device from a broker URL.
func NewDevice(brokerURL, deviceID string) (*Device, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+DeviceTopic(deviceID, StateTopic), []byte(Offline), 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("chiplink:" + deviceID)
	}
	d := &Device{
		Queue:    NewQueue(opts, topicPrefix),
		DeviceID: deviceID,
		Timeout:  DefaultTimeout,
		packetCh: make(chan []byte, 16),
		doneCh:   make(chan struct{}),
	}
	d.Queue.OnConnect = func(q *Queue) {
		q.PubWith(DeviceTopic(deviceID, StateTopic), []byte(Online), 1, true)
	}
	return d, nil
}

// Name implements framework.Named.
func (d *Device) Name() string {
	return "mqtt"
}

// Transmit implements upstream.Upstream.
func (d *Device) Transmit(pkt []byte) error {
	if !d.Queue.Client.IsConnected() {
		return upstream.ErrBusy
	}
	token := d.Queue.Pub(DeviceTopic(d.DeviceID, EventTopic), pkt)
	if !token.WaitTimeout(d.Timeout) {
		return upstream.ErrBusy
	}
	return token.Error()
}

// ReadPacket implements upstream.PacketReader.
func (d *Device) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-d.packetCh:
		return pkt, nil
	case <-d.doneCh:
		return nil, io.EOF
	}
}

// Run connects the client and subscribes the command topic until ctx
// is done. Presence is cleared on exit.
func (d *Device) Run(ctx context.Context) error {
	defer close(d.doneCh)
	sub := d.Queue.Sub(DeviceTopic(d.DeviceID, CmdTopic), d.handlePacket)
	token := d.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	<-ctx.Done()
	sub.Close()
	d.Queue.PubWith(DeviceTopic(d.DeviceID, StateTopic), []byte(Offline), 1, true).WaitTimeout(d.Timeout)
	d.Queue.Close()
	return ctx.Err()
}

func (d *Device) handlePacket(_ string, payload []byte) {
	select {
	case d.packetCh <- payload:
	default:
		glog.Warningf("mqtt: drop packet on %s, reader busy", CmdTopic)
	}
}
