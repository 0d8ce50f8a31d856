package dsp

import (
	"math"
	"testing"
)

func TestNewSavGol_InvalidParameters(t *testing.T) {
	testCases := []struct {
		name   string
		window int
		order  int
	}{
		{"even window", 8, 2},
		{"window too small", 1, 2},
		{"zero order", 9, 0},
		{"order not below window", 5, 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSavGol(tc.window, tc.order); err == nil {
				t.Error("Expected error for invalid parameters")
			}
		})
	}
}

func TestSavGol_ClassicCoefficients(t *testing.T) {
	// Quadratic fit over a 9-point window has the well-known weights
	// (-21, 14, 39, 54, 59, 54, 39, 14, -21) / 231.
	f, err := NewSavGol(9, 2)
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}

	expected := []float64{-21, 14, 39, 54, 59, 54, 39, 14, -21}
	for i, num := range expected {
		want := num / 231
		if math.Abs(f.coeffs[i]-want) > 1e-9 {
			t.Errorf("Coefficient %d: expected %v, got %v", i, want, f.coeffs[i])
		}
	}
}

func TestSavGol_PreservesFlatSignal(t *testing.T) {
	f, err := NewSavGol(9, 2)
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}

	data := make([]float64, 32)
	for i := range data {
		data[i] = -55.5
	}

	out := f.Apply(data)
	if len(out) != len(data) {
		t.Fatalf("Expected length %d, got %d", len(data), len(out))
	}
	for i, v := range out {
		if math.Abs(v-(-55.5)) > 1e-9 {
			t.Errorf("Sample %d: expected -55.5, got %v", i, v)
		}
	}
}

func TestSavGol_PreservesQuadratic(t *testing.T) {
	// A quadratic fit reproduces quadratic data exactly away from the
	// mirrored edges.
	f, err := NewSavGol(9, 2)
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}

	data := make([]float64, 40)
	for i := range data {
		x := float64(i)
		data[i] = 0.5*x*x - 3*x + 7
	}

	out := f.Apply(data)
	for i := 4; i < len(data)-4; i++ {
		if math.Abs(out[i]-data[i]) > 1e-6 {
			t.Errorf("Sample %d: expected %v preserved, got %v", i, data[i], out[i])
		}
	}
}

func TestSavGol_SmoothsNoise(t *testing.T) {
	f, err := NewSavGol(9, 2)
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}

	// Alternating spikes around a flat baseline.
	data := make([]float64, 64)
	for i := range data {
		if i%2 == 0 {
			data[i] = 1
		} else {
			data[i] = -1
		}
	}

	out := f.Apply(data)

	variance := func(xs []float64) float64 {
		var sum float64
		for _, v := range xs[8 : len(xs)-8] {
			sum += v * v
		}
		return sum
	}

	if variance(out) >= variance(data) {
		t.Error("Expected smoothing to reduce signal variance")
	}
}

func TestSavGol_ShortInputUnchanged(t *testing.T) {
	f, err := NewSavGol(9, 2)
	if err != nil {
		t.Fatalf("Failed to create filter: %v", err)
	}

	data := []float64{3, 1, 4, 1, 5}
	out := f.Apply(data)

	if len(out) != len(data) {
		t.Fatalf("Expected length %d, got %d", len(data), len(out))
	}
	for i, v := range out {
		if v != data[i] {
			t.Errorf("Sample %d: expected %v, got %v", i, data[i], v)
		}
	}

	// The copy must not alias the input.
	out[0] = 99
	if data[0] != 3 {
		t.Error("Expected Apply to return an independent slice")
	}
}
