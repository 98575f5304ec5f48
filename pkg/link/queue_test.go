package link

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue("test", 4)
	for i := byte(0); i < 4; i++ {
		require.NoError(t, q.Put(MakeFrame(i, i+1), 0))
	}
	require.Equal(t, 4, q.Len())
	for i := byte(0); i < 4; i++ {
		f, err := q.Get(0)
		require.NoError(t, err)
		require.Equal(t, MakeFrame(i, i+1), f)
	}
	require.Zero(t, q.Len())
}

func TestQueueTimeouts(t *testing.T) {
	q := NewQueue("test", 1)

	start := time.Now()
	_, err := q.Get(50 * time.Millisecond)
	require.Equal(t, ErrQueueTimeout, err)
	require.True(t, time.Since(start) >= 50*time.Millisecond)

	require.NoError(t, q.Put(MakeFrame(1), 0))
	require.Equal(t, ErrQueueFull, q.Put(MakeFrame(2), 0))
	start = time.Now()
	require.Equal(t, ErrQueueFull, q.Put(MakeFrame(2), 50*time.Millisecond))
	require.True(t, time.Since(start) >= 50*time.Millisecond)
}

func TestQueueBlockingPut(t *testing.T) {
	q := NewQueue("test", 1)
	require.NoError(t, q.Put(MakeFrame(1), 0))
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Get(0)
	}()
	require.NoError(t, q.Put(MakeFrame(2), time.Second))
	f, err := q.Get(0)
	require.NoError(t, err)
	require.Equal(t, MakeFrame(2), f)
}

func TestQueueForever(t *testing.T) {
	q := NewQueue("test", 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Put(MakeFrame(3), 0)
	}()
	f, err := q.Get(Forever)
	require.NoError(t, err)
	require.Equal(t, byte(3), f.Opcode())
}

func TestQueueContext(t *testing.T) {
	q := NewQueue("test", 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := q.GetContext(ctx, Forever)
	require.Equal(t, context.Canceled, err)
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue("test", 3)
	q.Put(MakeFrame(1), 0)
	q.Put(MakeFrame(2), 0)
	require.Equal(t, 2, q.Drain())
	require.Zero(t, q.Drain())
}

func TestFrame(t *testing.T) {
	f := MakeFrame(0xaa, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	require.Equal(t, Frame{0xaa, 1, 2, 3, 4, 5, 6, 7}, f)
	require.Equal(t, byte(0xaa), f.Opcode())
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7}, f.Payload())
	require.False(t, f.IsIdle())
	require.True(t, Frame{}.IsIdle())
	require.Equal(t, "[aa 01 02 03 04 05 06 07]", f.String())
}
