package bankswap

import (
	"errors"

	"github.com/robotalks/chiplink/pkg/flash"
)

var (
	// ErrInvalidRemapState indicates the live remap state at loader entry
	// doesn't name a valid bank mapping.
	ErrInvalidRemapState = flash.ErrInvalidRemap
	// ErrNoImage indicates a bank doesn't hold a bootable image.
	ErrNoImage = errors.New("no image")
	// ErrUpdateInProgress indicates another update owns the flash.
	ErrUpdateInProgress = errors.New("update in progress")
	// ErrUpdateRequested is returned by Boot when the loader stays running
	// for an update instead of jumping into the application.
	ErrUpdateRequested = errors.New("update requested")
	// ErrNotTerminated is returned when a terminal platform call returned.
	ErrNotTerminated = errors.New("terminal call returned")
)
