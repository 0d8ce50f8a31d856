// Package replay streams frames out of a recorded capture, preserving the
// recorded pacing. It drives the same ingestion path as live sources, so a
// capture can be inspected in the waterfall without any hardware attached.
package replay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

const (
	// Driver is the producer kind reported in descriptors.
	Driver = "replay"

	// DefaultSpeed is the playback speed multiplier.
	DefaultSpeed = 1.0

	// maxGap caps the pause between consecutive frames, so captures with
	// long recording gaps do not stall playback.
	maxGap = time.Second
)

// ReadFunc streams recorded frames in capture order, invoking fn for each
// one. A capture reader bound to a session satisfies it.
type ReadFunc func(ctx context.Context, fn func(frame *spectrum.Frame) error) error

// Config holds the playback settings.
type Config struct {
	Read  ReadFunc // frame supplier, required
	Speed float64  // playback speed multiplier (default: 1)
	Loop  bool     // restart from the first frame after the last
}

// WithDefaults returns a copy of the config with the speed defaulted.
func (c Config) WithDefaults() Config {
	if c.Speed <= 0 {
		c.Speed = DefaultSpeed
	}
	return c
}

// Validate checks the playback settings.
func (c *Config) Validate() error {
	if c.Read == nil {
		return fmt.Errorf("replay.Config: frame supplier must not be nil")
	}
	return nil
}

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("source", Driver))
	}
}

// Source plays a recorded capture back through the ingestion path.
type Source struct {
	cfg Config

	isStreaming atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	logger *slog.Logger
}

// New creates a replay source with a discard logger
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

// Describe returns static metadata about the playback source.
func (s *Source) Describe() source.Descriptor {
	return source.Descriptor{
		Driver:      Driver,
		Description: fmt.Sprintf("recorded capture playback at %gx", s.cfg.Speed),
	}
}

// Begin starts playback. The tuning is ignored: frames carry the recorded
// acquisition parameters.
func (s *Source) Begin(ctx context.Context, _ source.Tuning, frames chan<- *spectrum.Frame) (<-chan error, error) {
	if s.isStreaming.Load() {
		return nil, source.ErrAlreadyStreaming
	}

	s.isStreaming.Store(true)
	ctx, s.cancel = context.WithCancel(ctx)

	streamStopped := make(chan error)

	s.wg.Add(1)
	go func() {
		defer close(streamStopped)

		s.logger.Info("starting playback...", slog.Float64("speed", s.cfg.Speed))

		var failure error
		for {
			emitted, err := s.playOnce(ctx, frames)
			if err != nil {
				if ctx.Err() == nil {
					failure = err
				}
				break
			}
			// An empty capture cannot loop.
			if !s.cfg.Loop || emitted == 0 || ctx.Err() != nil {
				break
			}
		}

		s.logger.Info("playback stopped")

		s.isStreaming.Store(false)
		s.wg.Done()

		if failure != nil {
			streamStopped <- failure
		}
	}()

	return streamStopped, nil
}

// Stop halts playback and waits for the player goroutine to exit.
func (s *Source) Stop() {
	if !s.isStreaming.Load() {
		return // already stopped
	}

	s.cancel()
	s.wg.Wait()
	s.isStreaming.Store(false)
}

// playOnce streams the capture from the first frame to the last, pacing
// emission by the recorded timestamps scaled with the speed multiplier.
// It returns the number of frames emitted.
func (s *Source) playOnce(ctx context.Context, frames chan<- *spectrum.Frame) (int, error) {
	var prev time.Time
	var emitted int

	err := s.cfg.Read(ctx, func(frame *spectrum.Frame) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !prev.IsZero() && frame.Time.After(prev) {
			gap := time.Duration(float64(frame.Time.Sub(prev)) / s.cfg.Speed)
			if gap > maxGap {
				gap = maxGap
			}

			timer := time.NewTimer(gap)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		prev = frame.Time

		frame.Time = time.Now() // restamp to arrival time

		select {
		case frames <- frame:
			emitted++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	return emitted, err
}
