package env

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/chiplink/pkg/bankswap"
	"github.com/robotalks/chiplink/pkg/flash"
	"github.com/robotalks/chiplink/pkg/framework"
	"github.com/robotalks/chiplink/pkg/link"
	"github.com/robotalks/chiplink/pkg/protocol"
)

// Vectors of the factory image loaded into simulated flash.
const (
	FactorySP = 0x20008000
	FactoryPC = 0x080009c1
)

// FactoryImage returns a minimal image with valid vectors.
func FactoryImage(geo flash.Geometry, sp, pc uint32) *flash.Image {
	data := make([]byte, 64)
	binary.LittleEndian.PutUint32(data, sp)
	binary.LittleEndian.PutUint32(data[4:], pc)
	img, err := flash.NewImage(geo, geo.VectorOffset, data)
	if err != nil {
		panic(err)
	}
	return img
}

// Node is a controller on a simulated platform: its flash, boot loader,
// updater and reboot supervisor.
type Node struct {
	Memory     *flash.Memory
	Driver     *flash.Driver
	Platform   *bankswap.SimPlatform
	Controller *bankswap.Controller
	Supervisor *bankswap.Supervisor
}

// NewSimNode creates a Node with the factory image in bank 0 and boots it.
func NewSimNode(geo flash.Geometry) *Node {
	n := &Node{Memory: flash.NewMemory(geo)}
	img := FactoryImage(geo, FactorySP, FactoryPC)
	n.Memory.Load(flash.Bank0, img.Offset, img.Data)
	n.Driver = flash.NewDriver(n.Memory)
	n.Platform = bankswap.NewSimPlatform(n.Memory)
	n.Controller = bankswap.NewController(n.Driver, n.Platform)
	n.Supervisor = bankswap.NewSupervisor(n.Platform, protocol.ModeApplication)
	n.Boot()
	return n
}

// Boot runs the boot loader and returns the terminal call it ended with,
// ExitNone if the loader stays for an update.
func (n *Node) Boot() bankswap.Exit {
	var err error
	exit, ok := n.Platform.Run(func() {
		err = n.Controller.Boot()
	})
	if !ok {
		glog.Infof("loader stays: %v", err)
	}
	if exit.Kind == bankswap.ExitJump {
		n.Supervisor.SetMode(protocol.ModeApplication)
	} else {
		n.Supervisor.SetMode(protocol.ModeBootloader)
	}
	return exit
}

// Update updates the inactive bank with img and boots into it.
func (n *Node) Update(ctx context.Context, img *flash.Image, opts ...bankswap.Option) (bankswap.Exit, error) {
	u := bankswap.NewUpdater(n.Driver, n.Platform, opts...)
	var err error
	if _, reset := n.Platform.Run(func() {
		err = u.Update(ctx, img)
	}); !reset {
		return bankswap.Exit{}, err
	}
	return n.Boot(), nil
}

// Reboot resets the node and boots again.
func (n *Node) Reboot(toUpdate bool) bankswap.Exit {
	n.Platform.Run(func() {
		n.Supervisor.Reboot(context.Background(), toUpdate)
	})
	return n.Boot()
}

// DefaultBatteryInterval is the interval the simulated chip reports its
// battery level.
const DefaultBatteryInterval = 5 * time.Second

// SimChip simulates the peer controller at the other end of a link.
type SimChip struct {
	*Node
	Dispatcher      *protocol.Dispatcher
	Transport       *link.Transport
	BatteryInterval time.Duration

	battery byte
}

// NewSimChip creates a SimChip on port.
func NewSimChip(port link.Port, depth int) *SimChip {
	c := &SimChip{
		Node:            NewSimNode(flash.DefaultGeometry),
		Dispatcher:      protocol.NewDispatcher(link.NewChannels(depth)),
		BatteryInterval: DefaultBatteryInterval,
		battery:         100,
	}
	c.Dispatcher.Modes = c.Supervisor
	c.Dispatcher.Rebooter = protocol.RebootFunc(c.reboot)
	c.Transport = link.NewTransport(port, c.Dispatcher.Channels)
	c.Transport.Handler = c.Dispatcher
	return c
}

// Name implements framework.Named.
func (c *SimChip) Name() string {
	return "sim-chip"
}

// Run implements framework.Runnable.
func (c *SimChip) Run(ctx context.Context) error {
	return framework.NewRunnerWith(ctx).
		Go(framework.NamedRun("sim-chip-transport", c.Transport)).
		Go(framework.NamedRun("sim-chip-notify", framework.RunFunc(c.notify))).
		Go(framework.NamedRun("sim-chip-receive", framework.RunFunc(c.receive))).
		Wait()
}

func (c *SimChip) reboot(ctx context.Context, toUpdate bool) {
	exit := c.Node.Reboot(toUpdate)
	glog.Infof("sim-chip: rebooted (%s), mode %s", exit.Kind, c.Supervisor.Mode())
}

func (c *SimChip) notify(ctx context.Context) error {
	ticker := time.NewTicker(c.BatteryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if c.battery > 0 {
				c.battery--
			}
			if err := c.Dispatcher.SendBattery(c.battery, 0); err != nil {
				glog.V(1).Infof("sim-chip: battery: %v", err)
			}
		}
	}
}

func (c *SimChip) receive(ctx context.Context) error {
	for {
		cmd, err := c.Dispatcher.Receive(ctx, link.Forever)
		if err != nil {
			return err
		}
		glog.Infof("sim-chip: received %s", cmd.Opcode())
	}
}
