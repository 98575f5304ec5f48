package bankswap

import "fmt"

// State is the state of the boot state machine.
type State int

// States
const (
	StateIdle State = iota
	// StateVerifyRemap runs at loader entry before any application code.
	StateVerifyRemap
	// StateSwapped means the selected bank is mapped and control has been
	// transferred to it.
	StateSwapped
	// StateRollbackHalt is the terminal fault state.
	StateRollbackHalt
	// StateUpdateWait means the loader stays running for an update
	// requested before reset.
	StateUpdateWait
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVerifyRemap:
		return "verify-remap"
	case StateSwapped:
		return "swapped"
	case StateRollbackHalt:
		return "rollback-halt"
	case StateUpdateWait:
		return "update-wait"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StateNotifier receives state transitions.
type StateNotifier interface {
	StateChanged(State)
}

// StateNotifyFunc is func type of StateNotifier.
type StateNotifyFunc func(State)

// StateChanged implements StateNotifier.
func (f StateNotifyFunc) StateChanged(s State) {
	f(s)
}
