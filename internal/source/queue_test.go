package source

import (
	"context"
	"testing"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

func queueFrame(marker float64) *spectrum.Frame {
	return &spectrum.Frame{
		Freqs:     []float64{100e6, 100.1e6},
		Power:     []float64{marker, marker},
		Waterfall: []float64{marker, marker},
	}
}

func TestFrameQueue_Order(t *testing.T) {
	q, err := NewFrameQueue(4)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := q.Put(queueFrame(float64(i))); err != nil {
			t.Fatalf("Failed to enqueue frame %d: %v", i, err)
		}
	}

	if q.Size() != 3 {
		t.Errorf("Expected size 3, got %d", q.Size())
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		frame, err := q.Next(ctx)
		if err != nil {
			t.Fatalf("Failed to dequeue frame %d: %v", i, err)
		}
		if frame.Power[0] != float64(i) {
			t.Errorf("Expected frame %d, got marker %f", i, frame.Power[0])
		}
	}

	if q.Size() != 0 {
		t.Errorf("Expected empty queue, got size %d", q.Size())
	}
}

func TestFrameQueue_DropOldest(t *testing.T) {
	var dropped []*spectrum.Frame
	q, err := NewFrameQueue(2, WithDropFunc(func(frame *spectrum.Frame) {
		dropped = append(dropped, frame)
	}))
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := q.Put(queueFrame(float64(i))); err != nil {
			t.Fatalf("Failed to enqueue frame %d: %v", i, err)
		}
	}

	// The oldest frame makes room for the newest
	if len(dropped) != 1 || dropped[0].Power[0] != 0 {
		t.Fatalf("Expected the first frame to be dropped, got %v", dropped)
	}
	if q.Dropped() != 1 {
		t.Errorf("Expected 1 dropped frame, got %d", q.Dropped())
	}

	ctx := context.Background()
	for want := 1; want <= 2; want++ {
		frame, err := q.Next(ctx)
		if err != nil {
			t.Fatalf("Failed to dequeue: %v", err)
		}
		if frame.Power[0] != float64(want) {
			t.Errorf("Expected frame %d, got marker %f", want, frame.Power[0])
		}
	}
}

func TestFrameQueue_WrapAround(t *testing.T) {
	q, err := NewFrameQueue(2)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	ctx := context.Background()

	// Cycle the ring past its physical end
	q.Put(queueFrame(1))
	q.Put(queueFrame(2))

	frame, _ := q.Next(ctx)
	if frame.Power[0] != 1 {
		t.Errorf("Expected frame 1, got marker %f", frame.Power[0])
	}

	q.Put(queueFrame(3))

	for want := 2; want <= 3; want++ {
		frame, err := q.Next(ctx)
		if err != nil {
			t.Fatalf("Failed to dequeue: %v", err)
		}
		if frame.Power[0] != float64(want) {
			t.Errorf("Expected frame %d, got marker %f", want, frame.Power[0])
		}
	}
}

func TestFrameQueue_NextBlocksUntilPut(t *testing.T) {
	q, err := NewFrameQueue(2)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	type result struct {
		frame *spectrum.Frame
		err   error
	}
	results := make(chan result, 1)

	go func() {
		frame, err := q.Next(context.Background())
		results <- result{frame, err}
	}()

	select {
	case r := <-results:
		t.Fatalf("Expected Next to block on an empty queue, got %v, %v", r.frame, r.err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := q.Put(queueFrame(7)); err != nil {
		t.Fatalf("Failed to enqueue frame: %v", err)
	}

	select {
	case r := <-results:
		if r.err != nil {
			t.Fatalf("Failed to dequeue: %v", r.err)
		}
		if r.frame.Power[0] != 7 {
			t.Errorf("Expected frame 7, got marker %f", r.frame.Power[0])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return after Put")
	}
}

func TestFrameQueue_NextCancelled(t *testing.T) {
	q, err := NewFrameQueue(2)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Next(ctx); err == nil {
		t.Error("Expected an error from Next on a cancelled context")
	}
}

func TestFrameQueue_Clear(t *testing.T) {
	q, err := NewFrameQueue(4)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	q.Put(queueFrame(1))
	q.Put(queueFrame(2))
	q.Clear()

	if q.Size() != 0 {
		t.Errorf("Expected empty queue after Clear, got size %d", q.Size())
	}
}

func TestFrameQueue_InvalidParameters(t *testing.T) {
	if _, err := NewFrameQueue(0); err == nil {
		t.Error("Expected an error for zero capacity")
	}
	if _, err := NewFrameQueue(-1); err == nil {
		t.Error("Expected an error for negative capacity")
	}

	q, err := NewFrameQueue(1)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	if err := q.Put(nil); err == nil {
		t.Error("Expected an error for a nil frame")
	}
}
