package link

import (
	"context"
	"time"
)

// Forever makes queue operations block without timeout.
const Forever time.Duration = -1

// Queue is a bounded FIFO of frames.
// A timeout of 0 tries once without blocking, Forever blocks until
// the operation completes.
type Queue struct {
	Name string

	ch chan Frame
}

// NewQueue creates a Queue which holds up to depth frames.
func NewQueue(name string, depth int) *Queue {
	return &Queue{Name: name, ch: make(chan Frame, depth)}
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Put enqueues a frame, waiting up to timeout for space.
func (q *Queue) Put(f Frame, timeout time.Duration) error {
	return q.PutContext(context.Background(), f, timeout)
}

// PutContext is Put which can also be canceled by ctx.
func (q *Queue) PutContext(ctx context.Context, f Frame, timeout time.Duration) error {
	select {
	case q.ch <- f:
		return nil
	default:
	}
	if timeout == 0 {
		return ErrQueueFull
	}
	timer, stop := after(timeout)
	defer stop()
	select {
	case q.ch <- f:
		return nil
	case <-timer:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get dequeues a frame, waiting up to timeout for one.
func (q *Queue) Get(timeout time.Duration) (Frame, error) {
	return q.GetContext(context.Background(), timeout)
}

// GetContext is Get which can also be canceled by ctx.
func (q *Queue) GetContext(ctx context.Context, timeout time.Duration) (Frame, error) {
	select {
	case f := <-q.ch:
		return f, nil
	default:
	}
	if timeout == 0 {
		return Frame{}, ErrQueueTimeout
	}
	timer, stop := after(timeout)
	defer stop()
	select {
	case f := <-q.ch:
		return f, nil
	case <-timer:
		return Frame{}, ErrQueueTimeout
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Drain discards all queued frames and returns the number discarded.
func (q *Queue) Drain() (n int) {
	for {
		select {
		case <-q.ch:
			n++
		default:
			return
		}
	}
}

func after(timeout time.Duration) (<-chan time.Time, func()) {
	if timeout < 0 {
		return nil, func() {}
	}
	t := time.NewTimer(timeout)
	return t.C, func() { t.Stop() }
}
