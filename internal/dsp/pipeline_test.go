package dsp

import (
	"math"
	"math/cmplx"
	"testing"
)

func TestFFTShift(t *testing.T) {
	testCases := []struct {
		name     string
		input    []complex128
		expected []complex128
	}{
		{
			name:     "even length",
			input:    []complex128{0, 1, 2, 3},
			expected: []complex128{2, 3, 0, 1},
		},
		{
			name:     "odd length",
			input:    []complex128{0, 1, 2, 3, 4},
			expected: []complex128{3, 4, 0, 1, 2},
		},
		{
			name:     "single bin",
			input:    []complex128{7},
			expected: []complex128{7},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FFTShift(tc.input)
			if len(got) != len(tc.expected) {
				t.Fatalf("Expected %d bins, got %d", len(tc.expected), len(got))
			}
			for i, want := range tc.expected {
				if got[i] != want {
					t.Errorf("Bin %d: expected %v, got %v", i, want, got[i])
				}
			}
		})
	}
}

func TestDecimate(t *testing.T) {
	data := make([]float64, 100)
	for i := range data {
		data[i] = float64(i)
	}

	testCases := []struct {
		name      string
		maxPoints int
		expectLen int
	}{
		{"under the cap", 200, 100},
		{"exactly at the cap", 100, 100},
		{"halved", 50, 50},
		{"uneven stride", 30, 25},
		{"unbounded", 0, 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decimate(data, tc.maxPoints)
			if len(got) != tc.expectLen {
				t.Fatalf("Expected %d points, got %d", tc.expectLen, len(got))
			}
			if tc.maxPoints > 0 && len(got) > tc.maxPoints {
				t.Errorf("Expected at most %d points, got %d", tc.maxPoints, len(got))
			}
			if got[0] != 0 {
				t.Errorf("Expected first point preserved, got %v", got[0])
			}
		})
	}
}

func TestPipeline_DCSignal(t *testing.T) {
	p, err := NewPipeline(Config{FFTSize: 64})
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	// A constant signal concentrates all energy in the zero-frequency
	// bin, which lands at the center after the shift.
	iq := make([]complex128, 64)
	for i := range iq {
		iq[i] = 1
	}

	frame, err := p.Process(iq, 1090e6, 2.4e6)
	if err != nil {
		t.Fatalf("Failed to process block: %v", err)
	}
	if err := frame.Validate(); err != nil {
		t.Fatalf("Expected a valid frame, got %v", err)
	}

	if len(frame.Waterfall) != 64 {
		t.Fatalf("Expected 64 bins, got %d", len(frame.Waterfall))
	}

	peak := 0
	for i, v := range frame.Waterfall {
		if v > frame.Waterfall[peak] {
			peak = i
		}
	}
	if peak != 32 {
		t.Errorf("Expected energy at center bin 32, got bin %d", peak)
	}

	// Unnormalized FFT of 64 ones has magnitude 64 at DC.
	if got := frame.Waterfall[32]; math.Abs(got-64*64) > 1e-6 {
		t.Errorf("Expected squared magnitude %v at DC, got %v", 64*64, got)
	}
	if got := frame.Freqs[32]; got != 1090e6 {
		t.Errorf("Expected center bin at 1090 MHz, got %.3f MHz", got/1e6)
	}
}

func TestPipeline_ToneAtOffset(t *testing.T) {
	const (
		n   = 128
		bin = 10
	)

	p, err := NewPipeline(Config{FFTSize: n})
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	iq := make([]complex128, n)
	for i := range iq {
		iq[i] = cmplx.Exp(complex(0, 2*math.Pi*bin*float64(i)/n))
	}

	frame, err := p.Process(iq, 100e6, 1e6)
	if err != nil {
		t.Fatalf("Failed to process block: %v", err)
	}

	peak := 0
	for i, v := range frame.Waterfall {
		if v > frame.Waterfall[peak] {
			peak = i
		}
	}
	if expected := n/2 + bin; peak != expected {
		t.Errorf("Expected tone at bin %d, got %d", expected, peak)
	}

	// Bin frequencies ascend by sampleRate/n from the left edge.
	binWidth := 1e6 / n
	if got := frame.Freqs[1] - frame.Freqs[0]; math.Abs(got-binWidth) > 1e-6 {
		t.Errorf("Expected bin width %v Hz, got %v Hz", binWidth, got)
	}
}

func TestPipeline_DecimatesWideBlocks(t *testing.T) {
	p, err := NewPipeline(Config{FFTSize: 512, MaxPoints: 100})
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	iq := make([]complex128, 512)
	for i := range iq {
		iq[i] = complex(float64(i%17)/17, 0)
	}

	frame, err := p.Process(iq, 1090e6, 2.4e6)
	if err != nil {
		t.Fatalf("Failed to process block: %v", err)
	}

	if len(frame.Freqs) > 100 || len(frame.Power) > 100 || len(frame.Waterfall) > 100 {
		t.Errorf("Expected at most 100 points per series, got %d/%d/%d",
			len(frame.Freqs), len(frame.Power), len(frame.Waterfall))
	}
	if len(frame.Freqs) != len(frame.Power) {
		t.Errorf("Expected matching series lengths, got %d and %d", len(frame.Freqs), len(frame.Power))
	}
}

func TestPipeline_ShortBlock(t *testing.T) {
	p, err := NewPipeline(Config{FFTSize: 1024})
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	if _, err := p.Process(make([]complex128, 100), 1090e6, 2.4e6); err == nil {
		t.Error("Expected error for a short IQ block")
	}
}

func TestPipeline_SilentInputStaysFinite(t *testing.T) {
	p, err := NewPipeline(Config{FFTSize: 64})
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}

	frame, err := p.Process(make([]complex128, 64), 1090e6, 2.4e6)
	if err != nil {
		t.Fatalf("Failed to process block: %v", err)
	}

	for i, v := range frame.Power {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("Bin %d: expected finite power for silence, got %v", i, v)
		}
	}
}
