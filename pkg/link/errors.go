package link

import "errors"

var (
	// ErrQueueFull indicates the frame can't be enqueued before timeout.
	ErrQueueFull = errors.New("queue full")
	// ErrQueueTimeout indicates no frame is available before timeout.
	ErrQueueTimeout = errors.New("queue timeout")
	// ErrShortTransfer indicates a transfer moved less than a frame.
	ErrShortTransfer = errors.New("short transfer")
)
