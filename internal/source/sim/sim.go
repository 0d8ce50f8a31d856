// Package sim generates a synthetic spectrum without any SDR hardware. A
// set of fixed carriers rides on a gaussian noise floor, which makes the
// waterfall and the chart show stable, recognisable structure.
package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/dsp"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

const (
	// Driver is the producer kind reported in descriptors.
	Driver = "sim"

	// DefaultInterval is the frame cadence.
	DefaultInterval = 100 * time.Millisecond

	// DefaultNoise is the gaussian noise amplitude under the carriers.
	DefaultNoise = 0.02
)

// Tone is one synthetic carrier.
type Tone struct {
	OffsetHz  float64 `yaml:"offsetHz" json:"offsetHz"`   // offset from the center frequency
	Amplitude float64 `yaml:"amplitude" json:"amplitude"` // linear amplitude
}

// DefaultTones returns the default carrier set: a strong carrier above
// center, a weaker one below and a faint one near the band edge.
func DefaultTones() []Tone {
	return []Tone{
		{OffsetHz: 250_000, Amplitude: 1.0},
		{OffsetHz: -400_000, Amplitude: 0.4},
		{OffsetHz: 750_000, Amplitude: 0.15},
	}
}

// Config holds the generator settings.
type Config struct {
	Interval source.TimeDuration `yaml:"interval" json:"interval"` // frame cadence (default: 100ms)
	Noise    float64             `yaml:"noise" json:"noise"`       // gaussian noise amplitude, zero for clean carriers
	Tones    []Tone              `yaml:"tones" json:"tones"`       // nil selects DefaultTones
	Seed     int64               `yaml:"seed" json:"seed"`         // noise seed, zero seeds from the clock
}

// WithDefaults returns a copy of the config with the interval and carriers
// defaulted. A zero noise amplitude is kept as configured.
func (c Config) WithDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = source.NewTimeDuration(DefaultInterval)
	}
	if c.Tones == nil {
		c.Tones = DefaultTones()
	}
	return c
}

// Validate checks the generator settings.
func (c *Config) Validate() error {
	if c.Noise < 0 {
		return fmt.Errorf("sim.Config: noise amplitude must not be negative: %f", c.Noise)
	}
	for i, tone := range c.Tones {
		if tone.Amplitude < 0 {
			return fmt.Errorf("sim.Config: tone %d amplitude must not be negative: %f", i, tone.Amplitude)
		}
	}
	return nil
}

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("source", Driver))
	}
}

// Source produces synthetic spectrum frames at a fixed cadence.
type Source struct {
	cfg Config

	isStreaming atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	logger *slog.Logger
}

// New creates a synthetic source with a discard logger
func New(cfg Config, options ...func(s *Source)) (*Source, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Source{
		cfg:    cfg,
		logger: logger,
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// Describe returns static metadata about the generator.
func (s *Source) Describe() source.Descriptor {
	return source.Descriptor{
		Driver:      Driver,
		Description: fmt.Sprintf("synthetic generator, %d carriers", len(s.cfg.Tones)),
	}
}

// Begin starts frame generation at the configured cadence.
func (s *Source) Begin(ctx context.Context, tuning source.Tuning, frames chan<- *spectrum.Frame) (<-chan error, error) {
	if s.isStreaming.Load() {
		return nil, source.ErrAlreadyStreaming
	}

	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	for i, tone := range s.cfg.Tones {
		if math.Abs(tone.OffsetHz) >= tuning.SampleRate/2 {
			return nil, fmt.Errorf("tone %d offset beyond Nyquist: %0.0f Hz at %0.0f S/s", i, tone.OffsetHz, tuning.SampleRate)
		}
	}

	pipe, err := dsp.NewPipeline(dsp.Config{FFTSize: tuning.FFTSize})
	if err != nil {
		return nil, fmt.Errorf("error creating pipeline: %w", err)
	}

	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// Per carrier phase accumulators keep the signal continuous across
	// block boundaries.
	increments := make([]float64, len(s.cfg.Tones))
	phases := make([]float64, len(s.cfg.Tones))
	for i, tone := range s.cfg.Tones {
		increments[i] = 2 * math.Pi * tone.OffsetHz / tuning.SampleRate
	}

	s.isStreaming.Store(true)
	ctx, s.cancel = context.WithCancel(ctx)

	streamStopped := make(chan error)

	s.wg.Add(1)
	go func() {
		defer close(streamStopped)

		s.logger.Info("starting synthetic generation...",
			slog.Float64("centerFreq", tuning.CenterFreq),
			slog.Float64("sampleRate", tuning.SampleRate))

		ticker := time.NewTicker(s.cfg.Interval.Duration())
		defer ticker.Stop()

		iq := make([]complex128, tuning.FFTSize)

		var failure error
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
			}

			for i := range iq {
				var re, im float64
				for t, tone := range s.cfg.Tones {
					phases[t] = math.Mod(phases[t]+increments[t], 2*math.Pi)
					re += tone.Amplitude * math.Cos(phases[t])
					im += tone.Amplitude * math.Sin(phases[t])
				}
				if s.cfg.Noise > 0 {
					re += rng.NormFloat64() * s.cfg.Noise
					im += rng.NormFloat64() * s.cfg.Noise
				}
				iq[i] = complex(re, im)
			}

			frame, err := pipe.Process(iq, tuning.CenterFreq, tuning.SampleRate)
			if err != nil {
				failure = fmt.Errorf("error transforming IQ block: %w", err)
				break loop
			}

			select {
			case frames <- frame:
			case <-ctx.Done():
				break loop
			}
		}

		s.logger.Info("synthetic generation stopped")

		s.isStreaming.Store(false)
		s.wg.Done()

		if failure != nil {
			streamStopped <- failure
		}
	}()

	return streamStopped, nil
}

// Stop halts generation and waits for the generator goroutine to exit.
func (s *Source) Stop() {
	if !s.isStreaming.Load() {
		return // already stopped
	}

	s.cancel()
	s.wg.Wait()
	s.isStreaming.Store(false)
}
