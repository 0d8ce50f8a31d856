// Package rtl drives an RTL-SDR dongle through the rtl_sdr command line
// tool, reading interleaved unsigned 8 bit IQ samples from its stdout and
// transforming them into spectrum frames.
package rtl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/dsp"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
var ErrBrokenPipe = errors.New("broken pipe")

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("source", Device))
	}
}

// Source streams spectrum frames from an RTL-SDR dongle. It owns the
// rtl_sdr subprocess and the goroutines draining its pipes.
type Source struct {
	cfg Config

	isStreaming atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	logger *slog.Logger
}

// New creates an RTL-SDR source with a discard logger
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

// Describe returns static metadata about the dongle configuration.
func (s *Source) Describe() source.Descriptor {
	return source.Descriptor{
		Driver:      Runtime,
		Description: fmt.Sprintf("%s dongle #%d via %s", Device, s.cfg.DeviceIndex, s.cfg.Binary),
	}
}

// Begin starts the rtl_sdr subprocess and transforms its IQ stream into
// frames, sending them to the frames channel.
func (s *Source) Begin(ctx context.Context, tuning source.Tuning, frames chan<- *spectrum.Frame) (<-chan error, error) {
	if s.isStreaming.Load() {
		return nil, source.ErrAlreadyStreaming
	}

	binPath, err := findBinary(s.cfg.Binary)
	if err != nil {
		return nil, err
	}

	args, err := s.cfg.Args(tuning)
	if err != nil {
		return nil, err
	}

	pipe, err := dsp.NewPipeline(dsp.Config{FFTSize: tuning.FFTSize})
	if err != nil {
		return nil, fmt.Errorf("error creating pipeline: %w", err)
	}

	s.isStreaming.Store(true)

	ctx, s.cancel = context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.isStreaming.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.isStreaming.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		s.isStreaming.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error starting %s: %w", Runtime, err)
	}

	streamStopped := make(chan error)

	s.wg.Add(1)
	go func() {
		defer close(streamStopped)

		s.logger.Info("starting sample acquisition...",
			slog.Float64("centerFreq", tuning.CenterFreq),
			slog.Float64("sampleRate", tuning.SampleRate),
			slog.String("gain", tuning.Gain.String()))

		done := make(chan error, 3) // expects three results from three goroutines

		go s.handleIQ(ctx, stdout, tuning, pipe, frames, done)
		go s.handleStderr(stderr, done)
		go s.handleCmdWait(ctx, cmd, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				s.cancel() // cancel context on error
				s.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		close(done)

		s.logger.Info("sample acquisition stopped")

		s.isStreaming.Store(false)
		s.wg.Done()

		if len(errs) > 0 {
			streamStopped <- errors.Join(errs...)
		}
	}()

	return streamStopped, nil
}

// Stop halts the subprocess and waits for the pipe drains to exit.
func (s *Source) Stop() {
	if !s.isStreaming.Load() {
		return // already stopped
	}

	s.cancel()
	s.wg.Wait()
	s.isStreaming.Store(false)
}

// handleIQ reads fixed size IQ blocks from stdout at the emit cadence and
// sends the transformed frames to the frames channel. The pipe buffers the
// samples produced between ticks, so each block lags the antenna by at most
// the kernel pipe capacity.
func (s *Source) handleIQ(ctx context.Context, stdout io.Reader, tuning source.Tuning, pipe *dsp.Pipeline, frames chan<- *spectrum.Frame, done chan<- error) {
	block := make([]byte, pipe.FFTSize()*2) // interleaved I/Q bytes
	iq := make([]complex128, pipe.FFTSize())
	reader := bufio.NewReaderSize(stdout, len(block))

	ticker := time.NewTicker(s.cfg.EmitInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			done <- nil
			return
		case <-ticker.C:
		}

		if _, err := io.ReadFull(reader, block); err != nil {
			// The command wait handler reports the exit status, so a
			// closed pipe is not an error here.
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, fs.ErrClosed) {
				done <- nil
			} else {
				done <- fmt.Errorf("%w: error reading IQ stream: %w", ErrBrokenPipe, err)
			}
			return
		}

		// rtl_sdr encodes samples as offset binary around 127.5
		for i := range iq {
			iq[i] = complex(
				(float64(block[2*i])-127.5)/127.5,
				(float64(block[2*i+1])-127.5)/127.5)
		}

		frame, err := pipe.Process(iq, tuning.CenterFreq, tuning.SampleRate)
		if err != nil {
			done <- fmt.Errorf("error transforming IQ block: %w", err)
			return
		}

		select {
		case frames <- frame:
		case <-ctx.Done():
			done <- nil
			return
		}
	}
}

// handleStderr reads from stderr and logs errors.
func (s *Source) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		s.logger.Warn(fmt.Sprintf("%s >> %s", Runtime, line)) // simple logging here
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleCmdWait waits for the command to exit and sends the error to the
// error channel. A cancelled context kills the process, so its exit status
// is only reported while the context is still live.
func (s *Source) handleCmdWait(ctx context.Context, cmd *exec.Cmd, done chan<- error) {
	if err := cmd.Wait(); err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		done <- fmt.Errorf("command exited with error: %w", err)
		return
	}

	done <- nil
}
