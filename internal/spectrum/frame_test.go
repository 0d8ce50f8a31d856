package spectrum

import (
	"errors"
	"testing"
)

func TestFrame_Validate(t *testing.T) {
	testCases := []struct {
		name  string
		frame Frame
		field string // empty means valid
	}{
		{
			name: "valid frame",
			frame: Frame{
				Freqs:     []float64{1, 2, 3},
				Power:     []float64{-40, -35, -42},
				Waterfall: []float64{0.1, 0.5, 0.2},
			},
		},
		{
			name: "valid without power",
			frame: Frame{
				Freqs:     []float64{1, 2},
				Waterfall: []float64{0.1, 0.5},
			},
		},
		{
			name: "waterfall length may differ from freqs",
			frame: Frame{
				Freqs:     []float64{1, 2, 3, 4},
				Power:     []float64{-40, -35, -42, -41},
				Waterfall: []float64{0.1, 0.5},
			},
		},
		{
			name:  "missing freqs",
			frame: Frame{Waterfall: []float64{0.1, 0.5}},
			field: "freqs",
		},
		{
			name:  "missing waterfall",
			frame: Frame{Freqs: []float64{1, 2}, Power: []float64{-40, -35}},
			field: "waterfall",
		},
		{
			name: "single sample row",
			frame: Frame{
				Freqs:     []float64{1},
				Waterfall: []float64{0.5},
			},
			field: "waterfall",
		},
		{
			name: "power length mismatch",
			frame: Frame{
				Freqs:     []float64{1, 2, 3},
				Power:     []float64{-40},
				Waterfall: []float64{0.1, 0.5, 0.2},
			},
			field: "power",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.frame.Validate()
			if tc.field == "" {
				if err != nil {
					t.Errorf("Expected valid frame, got %v", err)
				}
				return
			}

			var malformed *MalformedFrameError
			if !errors.As(err, &malformed) {
				t.Fatalf("Expected MalformedFrameError, got %v", err)
			}
			if malformed.Field != tc.field {
				t.Errorf("Expected offending field %q, got %q", tc.field, malformed.Field)
			}
		})
	}
}

func TestFrame_FreqsMHz(t *testing.T) {
	frame := Frame{Freqs: []float64{1_089_000_000, 1_090_000_000, 1_091_000_000}}

	expected := []float64{1089, 1090, 1091}
	mhz := frame.FreqsMHz()
	if len(mhz) != len(expected) {
		t.Fatalf("Expected %d bins, got %d", len(expected), len(mhz))
	}
	for i, want := range expected {
		if mhz[i] != want {
			t.Errorf("Bin %d: expected %.3f MHz, got %.3f MHz", i, want, mhz[i])
		}
	}
}
