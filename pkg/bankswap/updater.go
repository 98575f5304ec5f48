package bankswap

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/chiplink/pkg/flash"
)

// Updater writes a new image into the inactive bank and switches the boot
// selector to it.
type Updater struct {
	Driver   *flash.Driver
	Platform Platform

	config Config
	busy   int32
}

// NewUpdater creates an Updater.
func NewUpdater(driver *flash.Driver, platform Platform, opts ...Option) *Updater {
	u := &Updater{Driver: driver, Platform: platform, config: defaultConfig()}
	for _, opt := range opts {
		opt(&u.config)
	}
	unit := driver.Geometry().ProgramUnit
	if u.config.ChunkSize -= u.config.ChunkSize % unit; u.config.ChunkSize == 0 {
		u.config.ChunkSize = unit
	}
	return u
}

// Config returns the effective configuration.
func (u *Updater) Config() Config {
	return u.config
}

// Update stages img into the inactive bank, flips the boot selector and
// resets. It returns only on failure, in which case the selector is
// untouched and the device keeps running from the current bank.
func (u *Updater) Update(ctx context.Context, img *flash.Image) error {
	if !atomic.CompareAndSwapInt32(&u.busy, 0, 1) {
		return ErrUpdateInProgress
	}
	defer atomic.StoreInt32(&u.busy, 0)
	start := time.Now()
	target, err := u.stage(ctx, img, start)
	if err != nil {
		return err
	}
	return u.swapAndReset(target, img, start)
}

// Stage writes img into the inactive bank and verifies it without
// touching the boot selector. It returns the staged bank.
func (u *Updater) Stage(ctx context.Context, img *flash.Image) (flash.Bank, error) {
	if !atomic.CompareAndSwapInt32(&u.busy, 0, 1) {
		return 0, ErrUpdateInProgress
	}
	defer atomic.StoreInt32(&u.busy, 0)
	return u.stage(ctx, img, time.Now())
}

func (u *Updater) stage(ctx context.Context, img *flash.Image, start time.Time) (flash.Bank, error) {
	active, err := u.Driver.ActiveBank()
	if err != nil {
		glog.Errorf("update refused: %v", err)
		return active, err
	}
	target := active.Other()
	total := img.Size()
	report := func(phase string, written uint32) {
		if cb := u.config.Progress; cb != nil {
			p := Progress{Phase: phase, Bank: target, Written: written, Total: total, Elapsed: time.Since(start)}
			if total > 0 {
				p.Percentage = float64(written) * 100 / float64(total)
			}
			cb(p)
		}
	}

	glog.Infof("update %s: %d bytes at %#x", target, total, img.Offset)
	report(PhaseErasing, 0)
	if err := u.Driver.Erase(target); err != nil {
		glog.Errorf("update %s aborted: %v", target, err)
		return target, err
	}
	for written := uint32(0); written < total; {
		if err := ctx.Err(); err != nil {
			glog.Warningf("update %s canceled at %d/%d", target, written, total)
			return target, err
		}
		n := total - written
		if n > u.config.ChunkSize {
			n = u.config.ChunkSize
		}
		if err := u.Driver.Write(target, img.Offset+written, img.Data[written:written+n]); err != nil {
			glog.Errorf("update %s aborted: %v", target, err)
			return target, err
		}
		written += n
		report(PhaseProgramming, written)
	}
	if u.config.Verify {
		report(PhaseVerifying, total)
		if err := u.Driver.Validate(target, img.Offset, total, img.Checksum()); err != nil {
			glog.Errorf("update %s aborted: %v", target, err)
			return target, err
		}
	}
	if !u.Driver.HasImage(target) {
		glog.Errorf("update %s aborted: %v", target, ErrNoImage)
		return target, ErrNoImage
	}
	report(PhaseStaged, total)
	return target, nil
}

// swapAndReset flips the selector and resets with interrupts disabled.
func (u *Updater) swapAndReset(target flash.Bank, img *flash.Image, start time.Time) error {
	u.Platform.DisableIRQ()
	if err := u.Driver.SetBootSelector(target); err != nil {
		u.Platform.EnableIRQ()
		glog.Errorf("switch to %s: %v", target, err)
		return err
	}
	if cb := u.config.Progress; cb != nil {
		cb(Progress{
			Phase:      PhaseSwitching,
			Bank:       target,
			Written:    img.Size(),
			Total:      img.Size(),
			Percentage: 100,
			Elapsed:    time.Since(start),
		})
	}
	glog.Infof("reset into %s", target)
	glog.Flush()
	u.Platform.SystemReset()
	return ErrNotTerminated
}
