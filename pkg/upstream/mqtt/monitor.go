package mqtt

import (
	"context"
	"strings"
	"time"
)

// Message is a packet received from a device topic.
type Message struct {
	DeviceID string
	Topic    string
	Payload  []byte
}

// Monitor watches devices on the broker.
type Monitor struct {
	Queue *Queue
}

// NewMonitor creates a Monitor from a broker URL.
func NewMonitor(brokerURL string) (*Monitor, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return &Monitor{Queue: NewQueue(opts, topicPrefix)}, nil
}

// Connect connects to the broker.
func (m *Monitor) Connect() error {
	token := m.Queue.Connect()
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (m *Monitor) Close() error {
	return m.Queue.Close()
}

// Watch delivers messages of topic from all devices (deviceID "+") or a
// specific device until ctx is done.
func (m *Monitor) Watch(ctx context.Context, deviceID, topic string, handler func(Message)) error {
	if deviceID == "" {
		deviceID = "+"
	}
	sub := m.Queue.Sub(DeviceTopic(deviceID, topic), func(t string, payload []byte) {
		if msg, ok := parseTopic(t, payload); ok {
			handler(msg)
		}
	})
	defer sub.Close()
	<-ctx.Done()
	return ctx.Err()
}

// Discover collects presence of devices within timeout.
func (m *Monitor) Discover(ctx context.Context, timeout time.Duration) (map[string]string, error) {
	resCh := make(chan Message, 16)
	sub := m.Queue.Sub(DeviceTopic("+", StateTopic), func(t string, payload []byte) {
		if msg, ok := parseTopic(t, payload); ok {
			select {
			case resCh <- msg:
			default:
			}
		}
	})
	defer sub.Close()
	res := make(map[string]string)
	expired := time.After(timeout)
	for {
		select {
		case msg := <-resCh:
			res[msg.DeviceID] = string(msg.Payload)
		case <-expired:
			return res, nil
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
}

// SendTo publishes a packet to the command topic of a device.
func (m *Monitor) SendTo(deviceID string, pkt []byte) error {
	token := m.Queue.Pub(DeviceTopic(deviceID, CmdTopic), pkt)
	token.Wait()
	return token.Error()
}

func parseTopic(topic string, payload []byte) (Message, bool) {
	items := strings.Split(topic, "/")
	if len(items) != 2 || len(payload) == 0 {
		return Message{}, false
	}
	return Message{DeviceID: items[0], Topic: items[1], Payload: payload}, true
}
