package upstream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/chiplink/pkg/protocol"
)

func TestEventStruct(t *testing.T) {
	s := EventStruct("dev1", protocol.MIDIEvent{Packet: [4]byte{0x09, 0x90, 0x3c, 0x7f}})
	fields := s.GetFields()
	require.Equal(t, "dev1", fields[FieldDevice].GetStringValue())
	require.Equal(t, float64(0xaa), fields[FieldOpcode].GetNumberValue())
	require.Equal(t, "MIDI", fields[FieldName].GetStringValue())
	require.Len(t, fields[FieldPacket].GetListValue().GetValues(), 4)
	require.Equal(t, float64(0x90), fields[FieldPacket].GetListValue().GetValues()[1].GetNumberValue())

	s = EventStruct("", protocol.Knock{})
	require.NotContains(t, s.GetFields(), FieldDevice)
	require.Len(t, s.GetFields(), 2)
}

func TestDecodeEvent(t *testing.T) {
	commands := []protocol.Command{
		protocol.LEDState{State: 1},
		protocol.BatteryLevel{Percent: 87},
		protocol.MIDIEvent{Packet: [4]byte{0x08, 0x80, 0x3c, 0x00}},
		protocol.Frequency{Hz: 261.625},
		protocol.KnockAck,
	}
	for _, cmd := range commands {
		t.Run(cmd.Opcode().String(), func(t *testing.T) {
			pkt, err := EncodeEvent("dev1", cmd)
			require.NoError(t, err)
			device, decoded, err := DecodeEvent(pkt)
			require.NoError(t, err)
			require.Equal(t, "dev1", device)
			require.Equal(t, cmd, decoded)
		})
	}
}

func TestDecodeEventInvalid(t *testing.T) {
	_, _, err := DecodeEvent([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)

	pkt, err := EncodeEvent("dev1", protocol.Knock{})
	require.NoError(t, err)
	s, err := DecodeEventStruct(pkt)
	require.NoError(t, err)
	delete(s.Fields, FieldOpcode)
	_, _, err = DecodeEvent(mustMarshal(t, s))
	require.Error(t, err)
}
