package bankswap

import (
	"time"

	"github.com/robotalks/chiplink/pkg/flash"
)

// Update phases
const (
	PhaseErasing     = "erasing"
	PhaseProgramming = "programming"
	PhaseVerifying   = "verifying"
	PhaseStaged      = "staged"
	PhaseSwitching   = "switching"
)

// Progress reports the progress of an update.
type Progress struct {
	// Phase is one of the Phase constants.
	Phase string
	// Bank is the bank being updated.
	Bank flash.Bank
	// Written is the number of bytes programmed so far.
	Written uint32
	// Total is the size of the image.
	Total uint32
	// Percentage is the completion percentage of programming (0 to 100).
	Percentage float64
	// Elapsed is the time since the update started.
	Elapsed time.Duration
}

// ProgressCallback is called during an update. It's called from the
// updating goroutine and should return quickly.
type ProgressCallback func(Progress)

// DefaultChunkSize is the default size programmed between cancellation
// checks and progress reports.
const DefaultChunkSize = 2048

// Config is the Updater configuration.
type Config struct {
	// ChunkSize is rounded down to the program unit.
	ChunkSize uint32
	Progress  ProgressCallback
	// Verify compares the CRC-32 of the programmed bank with the image.
	Verify bool
}

func defaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		Verify:    true,
	}
}

// Option configures the Updater.
type Option func(*Config)

// WithChunkSize sets the chunk size.
func WithChunkSize(size uint32) Option {
	return func(c *Config) {
		c.ChunkSize = size
	}
}

// WithProgress sets the progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(c *Config) {
		c.Progress = cb
	}
}

// WithVerify enables or disables read-back verification.
func WithVerify(verify bool) Option {
	return func(c *Config) {
		c.Verify = verify
	}
}
