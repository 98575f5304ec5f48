package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/robotalks/chiplink/pkg/link"
)

// Opcode is the first byte of a frame.
type Opcode byte

// Protocol control opcodes.
const (
	OpReturn Opcode = iota
	OpKnock
	OpMode
	OpReboot
	OpRebootToUpdate
	OpLinkState
)

// Notification opcodes.
const (
	OpLED       Opcode = 0xa0
	OpBattery   Opcode = 0xa1
	OpMIDI      Opcode = 0xaa
	OpFrequency Opcode = 0xac
)

var opcodeNames = map[Opcode]string{
	OpReturn:         "RETURN",
	OpKnock:          "KNOCK",
	OpMode:           "MODE",
	OpReboot:         "REBOOT",
	OpRebootToUpdate: "REBOOT_TO_UPDATE",
	OpLinkState:      "LINK_STATE",
	OpLED:            "LED",
	OpBattery:        "BATTERY",
	OpMIDI:           "MIDI",
	OpFrequency:      "FREQUENCY",
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OP_%02X", byte(o))
}

// IsNotification indicates a one-way application notification.
func (o Opcode) IsNotification() bool {
	return o >= 0xa0
}

// Mode is the running mode of a controller.
type Mode byte

// Modes
const (
	ModeBootloader  Mode = 0x01
	ModeApplication Mode = 0x02
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeBootloader:
		return "bootloader"
	case ModeApplication:
		return "application"
	}
	return fmt.Sprintf("mode(%d)", byte(m))
}

// LinkUp is the LINK_STATE reply of a running link.
const LinkUp byte = 0x01

// Command is a decoded frame.
type Command interface {
	Opcode() Opcode
	encodePayload(p []byte)
}

// Return carries the reply of a request.
type Return struct {
	Payload [link.PayloadSize]byte
}

// KnockAck is the reply to KNOCK.
var KnockAck = Return{Payload: [link.PayloadSize]byte{'h', 'i', 0}}

// Mode interprets the reply of a MODE request.
func (c Return) Mode() Mode {
	return Mode(c.Payload[0])
}

// Knock is the liveness probe.
type Knock struct{}

// ModeQuery asks for the running mode.
type ModeQuery struct{}

// Reboot requests a reboot into the application.
type Reboot struct{}

// RebootToUpdate requests a reboot into update mode.
type RebootToUpdate struct{}

// LinkStateQuery asks for the link state.
type LinkStateQuery struct{}

// LEDState switches the LED.
type LEDState struct {
	State byte
}

// BatteryLevel reports the battery life.
type BatteryLevel struct {
	Percent byte
}

// MIDIEvent carries a 4-byte USB-MIDI event packet.
type MIDIEvent struct {
	Packet [4]byte
}

// Frequency carries a frequency value.
type Frequency struct {
	Hz float32
}

// Opcode implements Command.
func (Return) Opcode() Opcode { return OpReturn }

// Opcode implements Command.
func (Knock) Opcode() Opcode { return OpKnock }

// Opcode implements Command.
func (ModeQuery) Opcode() Opcode { return OpMode }

// Opcode implements Command.
func (Reboot) Opcode() Opcode { return OpReboot }

// Opcode implements Command.
func (RebootToUpdate) Opcode() Opcode { return OpRebootToUpdate }

// Opcode implements Command.
func (LinkStateQuery) Opcode() Opcode { return OpLinkState }

// Opcode implements Command.
func (LEDState) Opcode() Opcode { return OpLED }

// Opcode implements Command.
func (BatteryLevel) Opcode() Opcode { return OpBattery }

// Opcode implements Command.
func (MIDIEvent) Opcode() Opcode { return OpMIDI }

// Opcode implements Command.
func (Frequency) Opcode() Opcode { return OpFrequency }

func (c Return) encodePayload(p []byte)       { copy(p, c.Payload[:]) }
func (Knock) encodePayload([]byte)            {}
func (ModeQuery) encodePayload([]byte)        {}
func (Reboot) encodePayload([]byte)           {}
func (RebootToUpdate) encodePayload([]byte)   {}
func (LinkStateQuery) encodePayload([]byte)   {}
func (c LEDState) encodePayload(p []byte)     { p[0] = c.State }
func (c BatteryLevel) encodePayload(p []byte) { p[0] = c.Percent }
func (c MIDIEvent) encodePayload(p []byte)    { copy(p, c.Packet[:]) }
func (c Frequency) encodePayload(p []byte) {
	binary.LittleEndian.PutUint32(p, math.Float32bits(c.Hz))
}

// Encode builds the frame of a command. Unused bytes are zero.
func Encode(cmd Command) (f link.Frame) {
	f[0] = byte(cmd.Opcode())
	cmd.encodePayload(f[1:])
	return
}

// Decode decodes a frame into a typed command.
func Decode(f link.Frame) (Command, error) {
	p := f[1:]
	switch op := Opcode(f[0]); op {
	case OpReturn:
		var c Return
		copy(c.Payload[:], p)
		return c, nil
	case OpKnock:
		return Knock{}, nil
	case OpMode:
		return ModeQuery{}, nil
	case OpReboot:
		return Reboot{}, nil
	case OpRebootToUpdate:
		return RebootToUpdate{}, nil
	case OpLinkState:
		return LinkStateQuery{}, nil
	case OpLED:
		return LEDState{State: p[0]}, nil
	case OpBattery:
		return BatteryLevel{Percent: p[0]}, nil
	case OpMIDI:
		var c MIDIEvent
		copy(c.Packet[:], p)
		return c, nil
	case OpFrequency:
		return Frequency{Hz: math.Float32frombits(binary.LittleEndian.Uint32(p))}, nil
	default:
		return nil, &ErrUnknownOpcode{Opcode: byte(op)}
	}
}
