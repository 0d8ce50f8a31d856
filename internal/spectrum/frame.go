package spectrum

import "time"

// Frame represents a single spectrum measurement delivered by a source.
// It carries the frequency bins, the smoothed power trace used for the
// 2D chart, and the linear magnitudes used for waterfall rendering.
// A Frame is immutable once constructed.
type Frame struct {
	Freqs      []float64 `json:"freqs"`         // Bin center frequencies in Hz, ascending
	Power      []float64 `json:"power"`         // Power per bin in dB
	Waterfall  []float64 `json:"waterfall"`     // Linear magnitudes, one per rendered sample
	CenterFreq float64   `json:"center_freq"`   // Tuner center frequency in Hz
	SampleRate float64   `json:"sampling_rate"` // Sample rate in Hz
	Time       time.Time `json:"-"`             // When the frame was captured or received
}

// NumSamples returns the number of waterfall samples, which defines the
// sample count of the rendered row.
func (f *Frame) NumSamples() int {
	return len(f.Waterfall)
}

// Validate checks the frame against the ingestion schema contract. Every
// path into the rendering engine must pass through this check exactly once.
func (f *Frame) Validate() error {
	switch {
	case len(f.Freqs) == 0:
		return &MalformedFrameError{Field: "freqs", Reason: "missing"}
	case len(f.Waterfall) == 0:
		return &MalformedFrameError{Field: "waterfall", Reason: "missing"}
	case len(f.Waterfall) < 2:
		return &MalformedFrameError{Field: "waterfall", Reason: "fewer than two samples"}
	case len(f.Power) != 0 && len(f.Power) != len(f.Freqs):
		return &MalformedFrameError{Field: "power", Reason: "length does not match freqs"}
	}
	return nil
}

// FreqsMHz returns the frequency bins scaled to MHz for chart axes.
func (f *Frame) FreqsMHz() []float64 {
	mhz := make([]float64, len(f.Freqs))
	for i, hz := range f.Freqs {
		mhz[i] = hz / 1e6
	}
	return mhz
}
