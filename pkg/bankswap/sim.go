package bankswap

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/chiplink/pkg/flash"
)

// ExitKind identifies a terminal platform call.
type ExitKind int

// Exit kinds
const (
	// ExitNone means no terminal call was made, e.g. the loader stays
	// for an update.
	ExitNone ExitKind = iota
	ExitJump
	ExitHalt
	ExitReset
)

// String implements fmt.Stringer.
func (k ExitKind) String() string {
	switch k {
	case ExitNone:
		return "none"
	case ExitJump:
		return "jump"
	case ExitHalt:
		return "halt"
	case ExitReset:
		return "reset"
	}
	return fmt.Sprintf("exit(%d)", int(k))
}

// Exit is published by SimPlatform when a terminal call is made.
type Exit struct {
	Kind ExitKind
	SP   uint32
	PC   uint32
}

// SimPlatform simulates the processor core on top of flash.Memory.
// Terminal calls publish an Exit and end the calling goroutine with
// runtime.Goexit.
type SimPlatform struct {
	Memory *flash.Memory
	Exits  chan Exit

	irqOff    bool
	cachesOff bool
	vtor      uint32
	updateReq bool
	trace     []string
	lock      sync.Mutex
}

// NewSimPlatform creates a SimPlatform.
func NewSimPlatform(mem *flash.Memory) *SimPlatform {
	return &SimPlatform{Memory: mem, Exits: make(chan Exit, 8)}
}

func (p *SimPlatform) record(format string, args ...interface{}) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.trace = append(p.trace, fmt.Sprintf(format, args...))
}

// Trace returns the recorded calls and clears the record.
func (p *SimPlatform) Trace() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	t := p.trace
	p.trace = nil
	return t
}

// IRQDisabled reports whether interrupts are disabled.
func (p *SimPlatform) IRQDisabled() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.irqOff
}

// CachesDisabled reports whether caches are disabled.
func (p *SimPlatform) CachesDisabled() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.cachesOff
}

// VectorTable returns the vector table address.
func (p *SimPlatform) VectorTable() uint32 {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.vtor
}

// DisableIRQ implements Platform.
func (p *SimPlatform) DisableIRQ() {
	p.record("irq-off")
	p.lock.Lock()
	p.irqOff = true
	p.lock.Unlock()
}

// EnableIRQ implements Platform.
func (p *SimPlatform) EnableIRQ() {
	p.record("irq-on")
	p.lock.Lock()
	p.irqOff = false
	p.lock.Unlock()
}

// DisableCaches implements Platform.
func (p *SimPlatform) DisableCaches() {
	p.record("caches-off")
	p.lock.Lock()
	p.cachesOff = true
	p.lock.Unlock()
}

// ResetCaches implements Platform.
func (p *SimPlatform) ResetCaches() {
	p.record("caches-reset")
}

// EnableCaches implements Platform.
func (p *SimPlatform) EnableCaches() {
	p.record("caches-on")
	p.lock.Lock()
	p.cachesOff = false
	p.lock.Unlock()
}

// DataBarrier implements Platform.
func (p *SimPlatform) DataBarrier() {
	p.record("dsb")
}

// InstructionBarrier implements Platform.
func (p *SimPlatform) InstructionBarrier() {
	p.record("isb")
}

// SetRemap implements Platform.
func (p *SimPlatform) SetRemap(state flash.RemapState) {
	p.record("remap %s", state)
	p.Memory.SetRemap(state)
}

// SetVectorTable implements Platform.
func (p *SimPlatform) SetVectorTable(addr uint32) {
	p.record("vtor %08x", addr)
	p.lock.Lock()
	p.vtor = addr
	p.lock.Unlock()
}

// SetUpdateRequest implements Platform.
func (p *SimPlatform) SetUpdateRequest(en bool) {
	p.record("update-request %t", en)
	p.lock.Lock()
	p.updateReq = en
	p.lock.Unlock()
}

// UpdateRequested implements Platform.
func (p *SimPlatform) UpdateRequested() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.updateReq
}

// Jump implements Platform.
func (p *SimPlatform) Jump(sp, pc uint32) {
	p.record("jump %08x %08x", sp, pc)
	p.exit(Exit{Kind: ExitJump, SP: sp, PC: pc})
}

// Halt implements Platform.
func (p *SimPlatform) Halt() {
	p.record("halt")
	p.exit(Exit{Kind: ExitHalt})
}

// SystemReset implements Platform.
func (p *SimPlatform) SystemReset() {
	p.record("reset")
	p.Memory.Reset()
	p.lock.Lock()
	p.irqOff, p.cachesOff, p.vtor = false, false, 0
	p.lock.Unlock()
	p.exit(Exit{Kind: ExitReset})
}

func (p *SimPlatform) exit(e Exit) {
	select {
	case p.Exits <- e:
	default:
		glog.Warningf("sim: exit %s dropped", e.Kind)
	}
	runtime.Goexit()
}

// Run calls fn in a new goroutine and waits for it to return or to end
// in a terminal call. ok is false if fn returned normally.
func (p *SimPlatform) Run(fn func()) (exit Exit, ok bool) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	<-done
	select {
	case exit = <-p.Exits:
		return exit, true
	default:
		return Exit{}, false
	}
}
