package app

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func captureFrame(seq int) *spectrum.Frame {
	seed := float64(seq + 1)
	return &spectrum.Frame{
		Freqs:      []float64{1090e6 - seed, 1090e6, 1090e6 + seed},
		Power:      []float64{-80.5 + seed, -75.25, -90.125},
		Waterfall:  []float64{0.001 * seed, 0.25, 1e-9},
		CenterFreq: 1090e6,
		SampleRate: 2.4e6,
		Time:       time.Date(2026, 3, 14, 10, 0, seq, 0, time.UTC),
	}
}

func runningState(name string, centerFreq float64) source.State {
	return source.State{
		Running: true,
		Source:  name,
		Tuning: source.Tuning{
			CenterFreq: centerFreq,
			SampleRate: 2.4e6,
			Gain:       source.GainAuto,
			FFTSize:    1024,
		},
	}
}

func readFrames(t *testing.T, reader *storage.CaptureReader, sessionID int64) []*spectrum.Frame {
	t.Helper()

	it, err := reader.Frames(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Failed to read frames of session %d: %v", sessionID, err)
	}
	defer it.Close()

	var frames []*spectrum.Frame
	for it.Next() {
		frames = append(frames, it.Current())
	}
	if err := it.Error(); err != nil {
		t.Fatalf("Frame iteration failed: %v", err)
	}
	return frames
}

func TestRecorder_BatchesAndRotatesSessions(t *testing.T) {
	ctx := context.Background()

	recorder, err := NewRecorder(CaptureConfig{DataDirectory: t.TempDir(), MaxBatchSize: 2}, discardLogger())
	if err != nil {
		t.Fatalf("Failed to create recorder: %v", err)
	}

	// Three frames at the first tuning: one full batch flushed, one frame
	// left pending.
	stateA := runningState("sim0", 100e6)
	for i := 0; i < 3; i++ {
		if err := recorder.Record(ctx, stateA, captureFrame(i)); err != nil {
			t.Fatalf("Failed to record frame %d: %v", i, err)
		}
	}

	// A retune flushes the pending frame into the old session and opens a
	// new one.
	stateB := runningState("sim0", 200e6)
	if err := recorder.Record(ctx, stateB, captureFrame(3)); err != nil {
		t.Fatalf("Failed to record frame after retune: %v", err)
	}

	if err := recorder.Close(); err != nil {
		t.Fatalf("Failed to close recorder: %v", err)
	}

	reader, err := storage.NewCaptureReader(recorder.Path())
	if err != nil {
		t.Fatalf("Failed to open capture: %v", err)
	}
	defer reader.Close()

	sessions, err := reader.Sessions(ctx)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}

	byFreq := make(map[float64]storage.Session, len(sessions))
	for _, session := range sessions {
		if session.Source != "sim0" {
			t.Errorf("Session source = %q, expected sim0", session.Source)
		}
		byFreq[session.Tuning.CenterFreq] = session
	}

	first, ok := byFreq[100e6]
	if !ok {
		t.Fatal("Expected a session at 100 MHz")
	}
	second, ok := byFreq[200e6]
	if !ok {
		t.Fatal("Expected a session at 200 MHz")
	}

	framesA := readFrames(t, reader, first.ID)
	if len(framesA) != 3 {
		t.Fatalf("Expected 3 frames in the first session, got %d", len(framesA))
	}
	framesB := readFrames(t, reader, second.ID)
	if len(framesB) != 1 {
		t.Fatalf("Expected 1 frame in the second session, got %d", len(framesB))
	}

	// Frames round-trip bit-exact through the batch path
	want := captureFrame(0)
	got := framesA[0]
	for i := range want.Waterfall {
		if math.Float64bits(got.Waterfall[i]) != math.Float64bits(want.Waterfall[i]) {
			t.Errorf("Waterfall[%d] = %v, expected %v", i, got.Waterfall[i], want.Waterfall[i])
		}
	}
}

func TestNewRecorder_RequiresDirectory(t *testing.T) {
	if _, err := NewRecorder(CaptureConfig{DataDirectory: filepath.Join(t.TempDir(), "absent"), MaxBatchSize: 10}, discardLogger()); err == nil {
		t.Error("Expected an error for a missing directory")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if _, err := NewRecorder(CaptureConfig{DataDirectory: file, MaxBatchSize: 10}, discardLogger()); err == nil {
		t.Error("Expected an error for a non-directory path")
	}
}
