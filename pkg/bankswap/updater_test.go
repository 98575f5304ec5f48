package bankswap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/chiplink/pkg/flash"
)

func testImage(t *testing.T, sp, pc uint32, size int) *flash.Image {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 13)
	}
	copy(data, vectors(sp, pc))
	img, err := flash.NewImage(testGeometry, testGeometry.VectorOffset, data)
	require.NoError(t, err)
	return img
}

type updateTestEnv struct {
	*bootTestEnv
	progress []Progress
}

func newUpdateTestEnv(t *testing.T) *updateTestEnv {
	env := &updateTestEnv{bootTestEnv: newBootTestEnv(t)}
	env.load(flash.Bank0, 0x20008000, 0x08000901)
	return env
}

func (e *updateTestEnv) updater(opts ...Option) *Updater {
	opts = append([]Option{WithProgress(func(p Progress) {
		e.progress = append(e.progress, p)
	})}, opts...)
	return NewUpdater(e.drv, e.plat, opts...)
}

func (e *updateTestEnv) update(u *Updater, ctx context.Context, img *flash.Image) (Exit, bool, error) {
	var err error
	exit, ok := e.plat.Run(func() {
		err = u.Update(ctx, img)
	})
	return exit, ok, err
}

func TestUpdate(t *testing.T) {
	env := newUpdateTestEnv(t)
	img := testImage(t, 0x20007000, 0x08000a01, 0x300)
	u := NewUpdater(env.drv, env.plat, WithChunkSize(0x100), WithProgress(func(p Progress) {
		env.progress = append(env.progress, p)
		if p.Phase == PhaseSwitching {
			return
		}
		// nothing observable changes before the switch.
		require.Equal(t, flash.Bank0, env.drv.CurrentBank())
		require.Equal(t, flash.Bank0, env.drv.BootSelector())
	}))
	env.mem.Trace()

	exit, ok, err := env.update(u, context.Background(), img)
	require.True(t, ok, "Update returned: %v", err)
	require.Equal(t, ExitReset, exit.Kind)

	trace := env.mem.Trace()
	require.Equal(t, "erase bank1", trace[1])
	require.Equal(t, []string{
		"unlock",
		"unlock-options",
		"selector bank1",
		"lock-options",
		"lock",
		"launch-options",
		"reset",
	}, trace[len(trace)-7:])
	platTrace := env.plat.Trace()
	require.Equal(t, []string{"irq-off", "reset"}, platTrace[len(platTrace)-2:])

	var phases []string
	for _, p := range env.progress {
		phases = append(phases, p.Phase)
		require.Equal(t, flash.Bank1, p.Bank)
	}
	require.Equal(t, []string{
		PhaseErasing,
		PhaseProgramming,
		PhaseProgramming,
		PhaseProgramming,
		PhaseVerifying,
		PhaseStaged,
		PhaseSwitching,
	}, phases)
	require.Equal(t, uint32(0x100), env.progress[1].Written)
	require.Equal(t, float64(100), env.progress[3].Percentage)

	// the loader boots into the new image after reset.
	require.Equal(t, flash.Bank1, env.mem.BootedSelector())
	exit = env.boot()
	require.Equal(t, Exit{Kind: ExitJump, SP: 0x20007000, PC: 0x08000a01}, exit)
	require.Equal(t, flash.Bank1, env.drv.CurrentBank())
	readBack := make([]byte, img.Size())
	require.NoError(t, env.drv.Read(flash.Bank1, img.Offset, readBack))
	require.Equal(t, img.Data, readBack)
}

func TestUpdateFromSwapped(t *testing.T) {
	env := newUpdateTestEnv(t)
	env.load(flash.Bank1, 0x20007000, 0x08000a01)
	env.selectBank(flash.Bank1)
	env.boot()
	require.Equal(t, flash.Bank1, env.drv.CurrentBank())

	img := testImage(t, 0x20006000, 0x08000b01, 0x80)
	exit, ok, err := env.update(env.updater(), context.Background(), img)
	require.True(t, ok, "Update returned: %v", err)
	require.Equal(t, ExitReset, exit.Kind)
	require.Equal(t, flash.Bank0, env.mem.BootedSelector())

	exit = env.boot()
	require.Equal(t, Exit{Kind: ExitJump, SP: 0x20006000, PC: 0x08000b01}, exit)
	require.Equal(t, flash.RemapNone, env.mem.Remap())
}

func TestUpdateAborted(t *testing.T) {
	testCases := []struct {
		name   string
		inject func(*flash.Memory)
	}{
		{"erase failure", func(m *flash.Memory) {
			m.FailErase = map[flash.Bank]bool{flash.Bank1: true}
		}},
		{"program failure", func(m *flash.Memory) {
			m.FailProgramAt = map[uint32]bool{testGeometry.VectorOffset + 0x48: true}
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newUpdateTestEnv(t)
			tc.inject(env.mem)
			_, ok, err := env.update(env.updater(), context.Background(), testImage(t, 0x20007000, 0x08000a01, 0x100))
			require.False(t, ok)
			var flashErr *flash.FlashError
			require.True(t, errors.As(err, &flashErr), "got %v", err)
			require.Equal(t, flash.Bank1, flashErr.Bank)
			require.Equal(t, flash.Bank0, env.drv.BootSelector())
			require.Equal(t, flash.Bank0, env.drv.CurrentBank())
			require.False(t, env.plat.IRQDisabled())
			require.NotContains(t, env.mem.Trace(), "selector bank1")
			main, options := env.mem.Locked()
			require.True(t, main)
			require.True(t, options)
		})
	}
}

func TestUpdateInvalidRemap(t *testing.T) {
	env := newUpdateTestEnv(t)
	env.mem.SetRemap(flash.RemapInvalid)
	env.mem.Trace()
	_, ok, err := env.update(env.updater(), context.Background(), testImage(t, 0x20007000, 0x08000a01, 0x100))
	require.False(t, ok)
	require.True(t, errors.Is(err, ErrInvalidRemapState), "got %v", err)
	require.Empty(t, env.mem.Trace())
	require.Empty(t, env.progress)
	require.Equal(t, flash.Bank0, env.drv.BootSelector())
}

func TestUpdateCanceled(t *testing.T) {
	env := newUpdateTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	u := NewUpdater(env.drv, env.plat, WithChunkSize(0x40), WithProgress(func(p Progress) {
		if p.Phase == PhaseProgramming {
			cancel()
		}
	}))
	_, ok, err := env.update(u, ctx, testImage(t, 0x20007000, 0x08000a01, 0x100))
	require.False(t, ok)
	require.Equal(t, context.Canceled, err)
	require.Equal(t, flash.Bank0, env.drv.BootSelector())
	// only the first chunk is programmed.
	p := make([]byte, 8)
	require.NoError(t, env.drv.Read(flash.Bank1, testGeometry.VectorOffset+0x40, p))
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, p)
}

func TestStage(t *testing.T) {
	env := newUpdateTestEnv(t)
	u := env.updater()
	bank, err := u.Stage(context.Background(), testImage(t, 0x20007000, 0x08000a01, 0x100))
	require.NoError(t, err)
	require.Equal(t, flash.Bank1, bank)
	require.True(t, env.drv.HasImage(flash.Bank1))
	require.Equal(t, flash.Bank0, env.drv.BootSelector())
	require.NotContains(t, env.mem.Trace(), "selector bank1")
	require.Empty(t, env.plat.Trace())
}

func TestStageNoImage(t *testing.T) {
	testCases := []struct {
		name string
		sp   uint32
	}{
		{"blank stack pointer", 0},
		{"erased stack pointer", 0xffffffff},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newUpdateTestEnv(t)
			_, err := env.updater().Stage(context.Background(), testImage(t, tc.sp, 0x08000a01, 0x40))
			require.Equal(t, ErrNoImage, err)
		})
	}
}

func TestStageVerify(t *testing.T) {
	env := newUpdateTestEnv(t)
	img := testImage(t, 0x20007000, 0x08000a01, 0x40)
	_, err := env.updater(WithVerify(true)).Stage(context.Background(), img)
	require.NoError(t, err)
	var phases []string
	for _, p := range env.progress {
		phases = append(phases, p.Phase)
	}
	require.Equal(t, []string{PhaseErasing, PhaseProgramming, PhaseVerifying, PhaseStaged}, phases)

	env.progress = nil
	_, err = env.updater(WithVerify(false)).Stage(context.Background(), img)
	require.NoError(t, err)
	for _, p := range env.progress {
		require.NotEqual(t, PhaseVerifying, p.Phase)
	}
}

func TestUpdateInProgress(t *testing.T) {
	env := newUpdateTestEnv(t)
	img := testImage(t, 0x20007000, 0x08000a01, 0x40)
	var u *Updater
	var nested error
	u = NewUpdater(env.drv, env.plat, WithProgress(func(p Progress) {
		if p.Phase == PhaseErasing {
			_, nested = u.Stage(context.Background(), img)
		}
	}))
	_, err := u.Stage(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, ErrUpdateInProgress, nested)
}

func TestChunkSizeRounded(t *testing.T) {
	env := newUpdateTestEnv(t)
	require.Equal(t, uint32(0x40), NewUpdater(env.drv, env.plat, WithChunkSize(0x45)).Config().ChunkSize)
	require.Equal(t, uint32(8), NewUpdater(env.drv, env.plat, WithChunkSize(3)).Config().ChunkSize)
	require.Equal(t, uint32(DefaultChunkSize), NewUpdater(env.drv, env.plat).Config().ChunkSize)
}
