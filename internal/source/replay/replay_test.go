package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

func captureFrames(n int, step time.Duration) []*spectrum.Frame {
	base := time.Now().Add(-time.Hour)

	frames := make([]*spectrum.Frame, n)
	for i := range frames {
		frames[i] = &spectrum.Frame{
			Freqs:     []float64{100e6, 100.1e6},
			Power:     []float64{float64(i), float64(i)},
			Waterfall: []float64{1, 2},
			Time:      base.Add(time.Duration(i) * step),
		}
	}
	return frames
}

// readerFor replays canned frames the way a capture reader would, handing
// out a fresh copy per pass.
func readerFor(recorded []*spectrum.Frame) ReadFunc {
	return func(ctx context.Context, fn func(*spectrum.Frame) error) error {
		for _, frame := range recorded {
			copied := *frame
			if err := fn(&copied); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestSource_PlaysCaptureInOrder(t *testing.T) {
	recorded := captureFrames(3, 10*time.Millisecond)

	src, err := New(Config{Read: readerFor(recorded), Speed: 100})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	frames := make(chan *spectrum.Frame, 8)
	done, err := src.Begin(context.Background(), source.Tuning{}, frames)
	if err != nil {
		t.Fatalf("Failed to begin playback: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Expected a clean termination, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not finish before deadline")
	}

	if len(frames) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(frames))
	}
	start := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		frame := <-frames
		if frame.Power[0] != float64(i) {
			t.Errorf("Expected frame %d, got marker %f", i, frame.Power[0])
		}
		// Playback restamps frames to arrival time
		if frame.Time.Before(start) {
			t.Errorf("Expected frame %d to be restamped, got %s", i, frame.Time)
		}
	}
}

func TestSource_LoopRestarts(t *testing.T) {
	recorded := captureFrames(2, time.Millisecond)

	src, err := New(Config{Read: readerFor(recorded), Speed: 100, Loop: true})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	frames := make(chan *spectrum.Frame, 16)
	done, err := src.Begin(context.Background(), source.Tuning{}, frames)
	if err != nil {
		t.Fatalf("Failed to begin playback: %v", err)
	}

	// More frames than one pass holds
	received := 0
	for received < 5 {
		select {
		case <-frames:
			received++
		case <-time.After(5 * time.Second):
			t.Fatalf("Expected 5 frames before deadline, got %d", received)
		}
	}

	src.Stop()
	<-done
}

func TestSource_PropagatesReadError(t *testing.T) {
	readErr := errors.New("capture unreadable")
	read := func(ctx context.Context, fn func(*spectrum.Frame) error) error {
		if err := fn(&spectrum.Frame{
			Freqs:     []float64{1, 2},
			Waterfall: []float64{1, 2},
			Time:      time.Now(),
		}); err != nil {
			return err
		}
		return readErr
	}

	src, err := New(Config{Read: read})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	frames := make(chan *spectrum.Frame, 2)
	done, err := src.Begin(context.Background(), source.Tuning{}, frames)
	if err != nil {
		t.Fatalf("Failed to begin playback: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, readErr) {
			t.Errorf("Expected the read error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not report the error before deadline")
	}
}

func TestSource_StopInterruptsPacing(t *testing.T) {
	// Recording gaps are capped at a second, and Stop cuts even that short
	recorded := captureFrames(3, time.Hour)

	src, err := New(Config{Read: readerFor(recorded)})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	frames := make(chan *spectrum.Frame, 2)
	done, err := src.Begin(context.Background(), source.Tuning{}, frames)
	if err != nil {
		t.Fatalf("Failed to begin playback: %v", err)
	}

	select {
	case <-frames:
	case <-time.After(5 * time.Second):
		t.Fatal("no frame produced before deadline")
	}

	started := time.Now()
	src.Stop()
	<-done

	if elapsed := time.Since(started); elapsed > 900*time.Millisecond {
		t.Errorf("Expected Stop to interrupt the pacing pause, took %s", elapsed)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("Expected an error for a missing frame supplier")
	}
}
