package bankswap

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/chiplink/pkg/flash"
)

// Controller is the boot state machine running at loader entry.
type Controller struct {
	Driver   *flash.Driver
	Platform Platform
	Notifier StateNotifier

	state State
	lock  sync.Mutex
}

// NewController creates a Controller.
func NewController(driver *flash.Driver, platform Platform) *Controller {
	return &Controller{Driver: driver, Platform: platform}
}

// State returns the current state.
func (c *Controller) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.lock.Lock()
	c.state = s
	c.lock.Unlock()
	glog.Infof("boot state %s", s)
	if n := c.Notifier; n != nil {
		n.StateChanged(s)
	}
}

// Boot verifies the remap state, maps the bank named by the boot selector
// if it holds an image and jumps into it. If an update was requested
// before reset, it consumes the request and returns ErrUpdateRequested
// with the loader still in charge. Otherwise it doesn't return unless the
// platform returns from a terminal call.
func (c *Controller) Boot() error {
	c.setState(StateVerifyRemap)
	remap := c.Driver.Device().Remap()
	if remap != flash.RemapNone {
		glog.Errorf("%v: %s at loader entry", ErrInvalidRemapState, remap)
		return c.halt()
	}
	if c.Platform.UpdateRequested() {
		c.Platform.SetUpdateRequest(false)
		c.setState(StateUpdateWait)
		return ErrUpdateRequested
	}

	c.Platform.DisableIRQ()
	active := flash.Bank0
	if selected := c.Driver.BootSelector(); selected == flash.Bank1 {
		if c.Driver.HasImage(selected) {
			c.remap(flash.RemapFor(selected))
			active = selected
		} else {
			glog.Warningf("boot selector names %s without image, stay on %s", selected, active)
		}
	}
	if !c.Driver.HasImage(active) {
		glog.Errorf("%s: %v", active, ErrNoImage)
		return c.halt()
	}
	sp, pc, err := c.Driver.Vectors(active)
	if err != nil {
		glog.Errorf("read vectors of %s: %v", active, err)
		return c.halt()
	}

	geo := c.Driver.Geometry()
	c.Platform.SetVectorTable(geo.Base + geo.VectorOffset)
	c.Platform.EnableIRQ()
	c.setState(StateSwapped)
	glog.Infof("jump into %s: sp=%08x pc=%08x", active, sp, pc)
	glog.Flush()
	c.Platform.Jump(sp, pc)
	return ErrNotTerminated
}

// remap switches the mapping with caches off, the remap toggle is fenced
// by barriers on both sides.
func (c *Controller) remap(state flash.RemapState) {
	p := c.Platform
	p.DisableCaches()
	p.ResetCaches()
	p.DataBarrier()
	p.SetRemap(state)
	p.InstructionBarrier()
	p.EnableCaches()
}

func (c *Controller) halt() error {
	c.setState(StateRollbackHalt)
	glog.Flush()
	c.Platform.Halt()
	return ErrNotTerminated
}
