package bankswap

import (
	"context"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/chiplink/pkg/protocol"
)

// Supervisor answers the running mode and carries out reboot requests
// from the peer.
type Supervisor struct {
	Platform Platform

	mode int32
}

// NewSupervisor creates a Supervisor running in mode.
func NewSupervisor(platform Platform, mode protocol.Mode) *Supervisor {
	return &Supervisor{Platform: platform, mode: int32(mode)}
}

// Mode implements protocol.ModeSource.
func (s *Supervisor) Mode() protocol.Mode {
	return protocol.Mode(atomic.LoadInt32(&s.mode))
}

// SetMode changes the reported mode.
func (s *Supervisor) SetMode(mode protocol.Mode) {
	atomic.StoreInt32(&s.mode, int32(mode))
}

// Reboot implements protocol.RebootHandler. The update request is left
// to the platform, the loader picks it up after reset.
func (s *Supervisor) Reboot(ctx context.Context, toUpdate bool) {
	if toUpdate {
		glog.Info("reboot into update mode")
	} else {
		glog.Info("reboot")
	}
	glog.Flush()
	s.Platform.DisableIRQ()
	s.Platform.SetUpdateRequest(toUpdate)
	s.Platform.SystemReset()
}
