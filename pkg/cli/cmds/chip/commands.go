package chip

import (
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/chiplink/pkg/cli/sh"
	"github.com/robotalks/chiplink/pkg/protocol"
)

func parseBytes(args []string, n int) ([]byte, error) {
	if len(args) < n {
		return nil, fmt.Errorf("%d bytes required", n)
	}
	p := make([]byte, n)
	for i := range p {
		val, err := strconv.ParseUint(args[i], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q: %v", args[i], err)
		}
		p[i] = byte(val)
	}
	return p, nil
}

func send(c *ishell.Context, cmd protocol.Command) {
	s := sh.ShellFrom(c)
	if err := s.Dispatcher().Send(cmd, s.Config.Timeout); err != nil {
		c.Err(err)
		return
	}
	s.Print(c, "OK", map[string]string{"sent": cmd.Opcode().String()})
}

var (
	// KnockCmd probes the chip.
	KnockCmd = ishell.Cmd{
		Name:    "knock",
		Aliases: []string{"k"},
		Help:    "",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			ctx, cancel := s.Context()
			defer cancel()
			if err := s.Dispatcher().Knock(ctx, s.Config.Timeout); err != nil {
				c.Err(err)
				return
			}
			s.Print(c, "hi", map[string]bool{"alive": true})
		}),
	}

	// ModeCmd queries the running mode of the chip.
	ModeCmd = ishell.Cmd{
		Name:    "mode",
		Aliases: []string{"m"},
		Help:    "",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			ctx, cancel := s.Context()
			defer cancel()
			mode, err := s.Dispatcher().QueryMode(ctx, s.Config.Timeout)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, mode.String(), map[string]interface{}{"mode": mode.String(), "value": byte(mode)})
		}),
	}

	// LinkStateCmd queries the link state of the chip.
	LinkStateCmd = ishell.Cmd{
		Name: "link",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			ctx, cancel := s.Context()
			defer cancel()
			state, err := s.Dispatcher().QueryLinkState(ctx, s.Config.Timeout)
			if err != nil {
				c.Err(err)
				return
			}
			text := fmt.Sprintf("state %02x", state)
			if state == protocol.LinkUp {
				text = "up"
			}
			s.Print(c, text, map[string]interface{}{"state": state, "up": state == protocol.LinkUp})
		}),
	}

	// RebootCmd reboots the chip.
	RebootCmd = ishell.Cmd{
		Name: "reboot",
		Help: "[update]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) > 0 && c.Args[0] == "update" {
				send(c, protocol.RebootToUpdate{})
				return
			}
			send(c, protocol.Reboot{})
		}),
	}

	// LEDCmd switches the LED.
	LEDCmd = ishell.Cmd{
		Name: "led",
		Help: "STATE",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			p, err := parseBytes(c.Args, 1)
			if err != nil {
				c.Err(err)
				return
			}
			send(c, protocol.LEDState{State: p[0]})
		}),
	}

	// BatteryCmd reports the battery level.
	BatteryCmd = ishell.Cmd{
		Name: "battery",
		Help: "PERCENT",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			p, err := parseBytes(c.Args, 1)
			if err != nil {
				c.Err(err)
				return
			}
			if p[0] > 100 {
				c.Err(fmt.Errorf("invalid PERCENT: %d", p[0]))
				return
			}
			send(c, protocol.BatteryLevel{Percent: p[0]})
		}),
	}

	// FrequencyCmd sends a frequency.
	FrequencyCmd = ishell.Cmd{
		Name:    "freq",
		Aliases: []string{"f"},
		Help:    "HZ",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("HZ required"))
				return
			}
			val, err := strconv.ParseFloat(c.Args[0], 32)
			if err != nil {
				c.Err(fmt.Errorf("invalid HZ: %v", err))
				return
			}
			send(c, protocol.Frequency{Hz: float32(val)})
		}),
	}

	// MIDICmd sends a USB-MIDI event packet.
	MIDICmd = ishell.Cmd{
		Name: "midi",
		Help: "CIN STATUS DATA1 DATA2",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			p, err := parseBytes(c.Args, 4)
			if err != nil {
				c.Err(err)
				return
			}
			var cmd protocol.MIDIEvent
			copy(cmd.Packet[:], p)
			send(c, cmd)
		}),
	}
)

func init() {
	sh.AddCmds(
		&KnockCmd,
		&ModeCmd,
		&LinkStateCmd,
		&RebootCmd,
		&LEDCmd,
		&BatteryCmd,
		&FrequencyCmd,
		&MIDICmd,
	)
}
