package upstream

import (
	"fmt"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/chiplink/pkg/link"
	"github.com/robotalks/chiplink/pkg/protocol"
)

// Event field names.
const (
	FieldDevice  = "device"
	FieldOpcode  = "opcode"
	FieldName    = "name"
	FieldState   = "state"
	FieldPercent = "percent"
	FieldPacket  = "packet"
	FieldHz      = "hz"
	FieldPayload = "payload"
)

func numberValue(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func bytesValue(p []byte) *structpb.Value {
	values := make([]*structpb.Value, len(p))
	for n, b := range p {
		values[n] = numberValue(float64(b))
	}
	return &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: &structpb.ListValue{Values: values}}}
}

// EventStruct converts a command into an event.
func EventStruct(device string, cmd protocol.Command) *structpb.Struct {
	fields := map[string]*structpb.Value{
		FieldOpcode: numberValue(float64(cmd.Opcode())),
		FieldName:   stringValue(cmd.Opcode().String()),
	}
	if device != "" {
		fields[FieldDevice] = stringValue(device)
	}
	switch c := cmd.(type) {
	case protocol.LEDState:
		fields[FieldState] = numberValue(float64(c.State))
	case protocol.BatteryLevel:
		fields[FieldPercent] = numberValue(float64(c.Percent))
	case protocol.MIDIEvent:
		fields[FieldPacket] = bytesValue(c.Packet[:])
	case protocol.Frequency:
		fields[FieldHz] = numberValue(float64(c.Hz))
	case protocol.Return:
		fields[FieldPayload] = bytesValue(c.Payload[:])
	}
	return &structpb.Struct{Fields: fields}
}

// EncodeEvent encodes a command as an event packet.
func EncodeEvent(device string, cmd protocol.Command) ([]byte, error) {
	return proto.Marshal(EventStruct(device, cmd))
}

// DecodeEventStruct decodes an event packet.
func DecodeEventStruct(data []byte) (*structpb.Struct, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeEvent decodes an event packet into the device and the command.
func DecodeEvent(data []byte) (device string, cmd protocol.Command, err error) {
	s, err := DecodeEventStruct(data)
	if err != nil {
		return "", nil, err
	}
	fields := s.GetFields()
	device = fields[FieldDevice].GetStringValue()
	op, ok := fields[FieldOpcode].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return device, nil, fmt.Errorf("event without %s", FieldOpcode)
	}
	var f link.Frame
	f[0] = byte(op.NumberValue)
	switch protocol.Opcode(f[0]) {
	case protocol.OpLED:
		f[1] = byte(fields[FieldState].GetNumberValue())
	case protocol.OpBattery:
		f[1] = byte(fields[FieldPercent].GetNumberValue())
	case protocol.OpMIDI:
		copyBytes(f[1:5], fields[FieldPacket])
	case protocol.OpFrequency:
		cmd = protocol.Frequency{Hz: float32(fields[FieldHz].GetNumberValue())}
		return device, cmd, nil
	case protocol.OpReturn:
		copyBytes(f[1:], fields[FieldPayload])
	}
	cmd, err = protocol.Decode(f)
	return device, cmd, err
}

func copyBytes(dst []byte, v *structpb.Value) {
	for n, item := range v.GetListValue().GetValues() {
		if n >= len(dst) {
			break
		}
		dst[n] = byte(item.GetNumberValue())
	}
}
