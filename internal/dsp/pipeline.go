// Package dsp converts raw IQ sample blocks into spectrum frames: FFT,
// shift to a centered spectrum, power in dB with Savitzky-Golay
// smoothing, squared magnitudes for the waterfall and stride decimation
// down to a renderable point count.
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

const (
	DefaultFFTSize         = 1024
	DefaultSmoothingWindow = 9
	DefaultSmoothingOrder  = 2
	DefaultMaxPoints       = 8192

	// minMagnitude floors FFT magnitudes before the log so silent bins
	// produce a finite dB value that survives JSON encoding.
	minMagnitude = 1e-12
)

// Config controls the processing pipeline. Zero values fall back to the
// package defaults.
type Config struct {
	FFTSize         int `yaml:"fft_size" json:"fft_size"`
	SmoothingWindow int `yaml:"smoothing_window" json:"smoothing_window"`
	SmoothingOrder  int `yaml:"smoothing_order" json:"smoothing_order"`
	MaxPoints       int `yaml:"max_points" json:"max_points"`
}

// WithDefaults returns a copy with defaults applied to zero values.
func (c Config) WithDefaults() Config {
	if c.FFTSize == 0 {
		c.FFTSize = DefaultFFTSize
	}
	if c.SmoothingWindow == 0 {
		c.SmoothingWindow = DefaultSmoothingWindow
	}
	if c.SmoothingOrder == 0 {
		c.SmoothingOrder = DefaultSmoothingOrder
	}
	if c.MaxPoints == 0 {
		c.MaxPoints = DefaultMaxPoints
	}
	return c
}

// Pipeline is a reusable IQ-to-frame processor. It is stateless between
// blocks and safe for concurrent use.
type Pipeline struct {
	cfg    Config
	filter *SavGol
}

// NewPipeline creates a pipeline, precomputing the smoothing filter.
func NewPipeline(cfg Config) (*Pipeline, error) {
	cfg = cfg.WithDefaults()
	if cfg.FFTSize < 2 {
		return nil, fmt.Errorf("fft size must be at least 2, got %d", cfg.FFTSize)
	}
	if cfg.MaxPoints < 2 {
		return nil, fmt.Errorf("max points must be at least 2, got %d", cfg.MaxPoints)
	}

	filter, err := NewSavGol(cfg.SmoothingWindow, cfg.SmoothingOrder)
	if err != nil {
		return nil, fmt.Errorf("smoothing filter: %w", err)
	}

	return &Pipeline{cfg: cfg, filter: filter}, nil
}

// FFTSize returns the number of IQ samples consumed per frame.
func (p *Pipeline) FFTSize() int {
	return p.cfg.FFTSize
}

// Process transforms one block of IQ samples into a spectrum frame. The
// block must hold at least FFTSize samples; extra samples are ignored.
func (p *Pipeline) Process(iq []complex128, centerFreq, sampleRate float64) (*spectrum.Frame, error) {
	n := p.cfg.FFTSize
	if len(iq) < n {
		return nil, fmt.Errorf("short IQ block: need %d samples, got %d", n, len(iq))
	}

	bins := FFTShift(fft.FFT(iq[:n]))

	freqs := make([]float64, n)
	power := make([]float64, n)
	waterfall := make([]float64, n)

	binWidth := sampleRate / float64(n)
	for i, c := range bins {
		mag := cmplx.Abs(c)
		power[i] = 10 * math.Log10(math.Max(mag, minMagnitude))
		waterfall[i] = mag * mag
		freqs[i] = centerFreq + (float64(i)-float64(n/2))*binWidth
	}

	power = p.filter.Apply(power)

	return &spectrum.Frame{
		Freqs:      Decimate(freqs, p.cfg.MaxPoints),
		Power:      Decimate(power, p.cfg.MaxPoints),
		Waterfall:  Decimate(waterfall, p.cfg.MaxPoints),
		CenterFreq: centerFreq,
		SampleRate: sampleRate,
		Time:       time.Now(),
	}, nil
}

// FFTShift reorders FFT output so the zero-frequency bin sits at the
// center, giving an ascending frequency axis.
func FFTShift(x []complex128) []complex128 {
	n := len(x)
	if n < 2 {
		return x
	}
	split := (n + 1) / 2
	out := make([]complex128, 0, n)
	out = append(out, x[split:]...)
	return append(out, x[:split]...)
}

// Decimate reduces data to at most maxPoints by stride sampling.
// Input at or under the cap is returned as-is.
func Decimate(data []float64, maxPoints int) []float64 {
	if maxPoints <= 0 || len(data) <= maxPoints {
		return data
	}
	stride := (len(data) + maxPoints - 1) / maxPoints
	out := make([]float64, 0, (len(data)+stride-1)/stride)
	for i := 0; i < len(data); i += stride {
		out = append(out, data[i])
	}
	return out
}
