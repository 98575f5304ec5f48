package bankswap

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/chiplink/pkg/flash"
)

var testGeometry = flash.Geometry{
	Base:         0x08000000,
	BankSize:     0x1000,
	ProgramUnit:  8,
	VectorOffset: 0x100,
}

func vectors(sp, pc uint32) []byte {
	p := make([]byte, 8)
	binary.LittleEndian.PutUint32(p, sp)
	binary.LittleEndian.PutUint32(p[4:], pc)
	return p
}

type bootTestEnv struct {
	t     *testing.T
	mem   *flash.Memory
	drv   *flash.Driver
	plat  *SimPlatform
	ctl   *Controller
	state []State
}

func newBootTestEnv(t *testing.T) *bootTestEnv {
	env := &bootTestEnv{t: t, mem: flash.NewMemory(testGeometry)}
	env.drv = flash.NewDriver(env.mem)
	env.plat = NewSimPlatform(env.mem)
	env.ctl = NewController(env.drv, env.plat)
	env.ctl.Notifier = StateNotifyFunc(func(s State) {
		env.state = append(env.state, s)
	})
	return env
}

func (e *bootTestEnv) load(bank flash.Bank, sp, pc uint32) {
	e.mem.Load(bank, testGeometry.VectorOffset, vectors(sp, pc))
}

func (e *bootTestEnv) selectBank(bank flash.Bank) {
	require.NoError(e.t, e.drv.SetBootSelector(bank))
	e.mem.Reset()
	e.mem.Trace()
}

func (e *bootTestEnv) boot() Exit {
	var err error
	exit, ok := e.plat.Run(func() {
		err = e.ctl.Boot()
	})
	require.True(e.t, ok, "Boot returned: %v", err)
	return exit
}

func TestBootBank0(t *testing.T) {
	env := newBootTestEnv(t)
	env.load(flash.Bank0, 0x20008000, 0x08000901)
	exit := env.boot()
	require.Equal(t, Exit{Kind: ExitJump, SP: 0x20008000, PC: 0x08000901}, exit)
	require.Equal(t, []string{
		"irq-off",
		"vtor 08000100",
		"irq-on",
		"jump 20008000 08000901",
	}, env.plat.Trace())
	require.Equal(t, []State{StateVerifyRemap, StateSwapped}, env.state)
	require.Equal(t, StateSwapped, env.ctl.State())
	require.Equal(t, flash.Bank0, env.drv.CurrentBank())
}

func TestBootSwapped(t *testing.T) {
	env := newBootTestEnv(t)
	env.load(flash.Bank0, 0x20008000, 0x08000901)
	env.load(flash.Bank1, 0x20007000, 0x08000a01)
	env.selectBank(flash.Bank1)
	exit := env.boot()
	require.Equal(t, Exit{Kind: ExitJump, SP: 0x20007000, PC: 0x08000a01}, exit)
	require.Equal(t, []string{
		"irq-off",
		"caches-off",
		"caches-reset",
		"dsb",
		"remap swapped",
		"isb",
		"caches-on",
		"vtor 08000100",
		"irq-on",
		"jump 20007000 08000a01",
	}, env.plat.Trace())
	require.Equal(t, flash.RemapSwapped, env.mem.Remap())
	require.Equal(t, flash.Bank1, env.drv.CurrentBank())
	require.False(t, env.plat.IRQDisabled())
	require.False(t, env.plat.CachesDisabled())
}

func TestBootSelectorWithoutImage(t *testing.T) {
	env := newBootTestEnv(t)
	env.load(flash.Bank0, 0x20008000, 0x08000901)
	env.selectBank(flash.Bank1)
	exit := env.boot()
	require.Equal(t, Exit{Kind: ExitJump, SP: 0x20008000, PC: 0x08000901}, exit)
	require.Equal(t, flash.RemapNone, env.mem.Remap())
	require.NotContains(t, env.plat.Trace(), "remap swapped")
}

func TestBootHalt(t *testing.T) {
	testCases := []struct {
		name  string
		remap flash.RemapState
		image bool
	}{
		{"invalid remap", flash.RemapInvalid, true},
		{"remapped at entry", flash.RemapSwapped, true},
		{"no image", flash.RemapNone, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newBootTestEnv(t)
			if tc.image {
				env.load(flash.Bank0, 0x20008000, 0x08000901)
				env.load(flash.Bank1, 0x20008000, 0x08000901)
			}
			env.mem.SetRemap(tc.remap)
			exit := env.boot()
			require.Equal(t, ExitHalt, exit.Kind)
			require.Equal(t, StateRollbackHalt, env.ctl.State())
			require.Equal(t, []State{StateVerifyRemap, StateRollbackHalt}, env.state)
			for _, call := range env.plat.Trace() {
				require.NotRegexp(t, "^(jump|vtor|remap)", call)
			}
		})
	}
}
