package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

// QueueOption configures a FrameQueue.
type QueueOption func(q *FrameQueue)

// WithDropFunc installs a hook invoked with every frame discarded to make
// room for a newer one. The hook runs on the goroutine calling Put, while
// the queue lock is held, so it must not call back into the queue.
func WithDropFunc(fn func(*spectrum.Frame)) QueueOption {
	return func(q *FrameQueue) {
		q.onDrop = fn
	}
}

// FrameQueue implements a bounded, thread-safe frame queue that favours
// freshness: when the queue is full, Put discards the oldest frame to make
// room for the incoming one. Frames are delivered in arrival order.
type FrameQueue struct {
	mu      sync.Mutex
	ring    []*spectrum.Frame
	head    int
	size    int
	dropped uint64
	onDrop  func(*spectrum.Frame)

	wake chan struct{}
}

// NewFrameQueue creates a frame queue holding up to capacity frames.
// Returns an error if capacity is not positive.
func NewFrameQueue(capacity int, options ...QueueOption) (*FrameQueue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid queue capacity: %d", capacity)
	}

	q := FrameQueue{
		ring: make([]*spectrum.Frame, capacity),
		wake: make(chan struct{}, 1),
	}

	for _, option := range options {
		option(&q)
	}

	return &q, nil
}

// Put appends a frame to the queue. When the queue is full the oldest frame
// is discarded first. Returns an error if the frame is nil.
func (q *FrameQueue) Put(frame *spectrum.Frame) error {
	if frame == nil {
		return fmt.Errorf("cannot enqueue nil frame")
	}

	q.mu.Lock()
	if q.size == len(q.ring) {
		oldest := q.ring[q.head]
		q.ring[q.head] = nil
		q.head = (q.head + 1) % len(q.ring)
		q.size--
		q.dropped++

		if q.onDrop != nil {
			q.onDrop(oldest)
		}
	}

	q.ring[(q.head+q.size)%len(q.ring)] = frame
	q.size++
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return nil
}

// Next removes and returns the oldest frame, blocking until one is
// available or the context is cancelled.
func (q *FrameQueue) Next(ctx context.Context) (*spectrum.Frame, error) {
	for {
		q.mu.Lock()
		if q.size > 0 {
			frame := q.ring[q.head]
			q.ring[q.head] = nil
			q.head = (q.head + 1) % len(q.ring)
			q.size--
			q.mu.Unlock()
			return frame, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		}
	}
}

// Size returns the current number of queued frames.
func (q *FrameQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped returns the total number of frames discarded since creation.
func (q *FrameQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Clear removes all queued frames.
func (q *FrameQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.ring {
		q.ring[i] = nil
	}
	q.head = 0
	q.size = 0
}
