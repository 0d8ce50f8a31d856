package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/telemetry"
)

const (
	// DefaultRetryCount is the number of restarts attempted after a source
	// failure before the manager gives up.
	DefaultRetryCount = 3

	// DefaultRetryBackoff is the fixed delay between restart attempts.
	DefaultRetryBackoff = 2 * time.Second

	// DefaultPendingFrames is the capacity of the queue between the active
	// source and the sink.
	DefaultPendingFrames = 16
)

// Sink consumes frames produced by the active source, typically the
// rendering engine's ingestion entry point.
type Sink func(ctx context.Context, frame *spectrum.Frame) error

// ManagerConfig holds the supervision policy for the active source.
type ManagerConfig struct {
	RetryCount    int          `yaml:"retryCount" json:"retryCount"`       // restarts after failure, < 0 disables restarts
	RetryBackoff  TimeDuration `yaml:"retryBackoff" json:"retryBackoff"`   // fixed delay between restarts
	PendingFrames int          `yaml:"pendingFrames" json:"pendingFrames"` // queue capacity between source and sink
}

// WithDefaults returns a copy of the config with zero fields replaced by
// their defaults.
func (c ManagerConfig) WithDefaults() ManagerConfig {
	if c.RetryCount == 0 {
		c.RetryCount = DefaultRetryCount
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = NewTimeDuration(DefaultRetryBackoff)
	}
	if c.PendingFrames <= 0 {
		c.PendingFrames = DefaultPendingFrames
	}
	return c
}

// State describes the streaming state served by the status API.
type State struct {
	Running bool   `json:"running"`
	Source  string `json:"source,omitempty"`
	Tuning  Tuning `json:"tuning"`
}

// WithLogger sets the logger for the manager.
func WithLogger(logger *slog.Logger) func(m *Manager) {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics sink for queue drop accounting.
func WithMetrics(metrics *telemetry.Metrics) func(m *Manager) {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// Manager owns the registered sources and supervises the active one. A
// failed source is restarted with a fixed backoff until the retry budget is
// exhausted; frames flow through a drop-oldest queue so a slow sink sheds
// stale frames instead of stalling the producer.
type Manager struct {
	cfg     ManagerConfig
	sink    Sink
	logger  *slog.Logger
	metrics *telemetry.Metrics
	queue   *FrameQueue

	mu         sync.Mutex
	sources    map[string]Source
	names      []string // registration order, first is the default
	running    bool
	activeName string
	tuning     Tuning
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewManager creates a source manager delivering frames to sink.
func NewManager(cfg ManagerConfig, sink Sink, options ...func(m *Manager)) (*Manager, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink must not be nil")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	m := Manager{
		cfg:     cfg.WithDefaults(),
		sink:    sink,
		logger:  logger,
		metrics: telemetry.New(),
		sources: make(map[string]Source),
	}

	for _, option := range options {
		option(&m)
	}

	queue, err := NewFrameQueue(m.cfg.PendingFrames, WithDropFunc(func(*spectrum.Frame) {
		m.metrics.FrameDropped()
	}))
	if err != nil {
		return nil, err
	}
	m.queue = queue

	return &m, nil
}

// Register adds a source under the given name. The first registered source
// is the default for start requests that do not name one.
func (m *Manager) Register(name string, src Source) error {
	if name == "" {
		return fmt.Errorf("source name must not be empty")
	}
	if src == nil {
		return fmt.Errorf("source must not be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sources[name]; ok {
		return fmt.Errorf("source already registered: %s", name)
	}

	m.sources[name] = src
	m.names = append(m.names, name)
	return nil
}

// Descriptors returns the descriptors of all registered sources in
// registration order.
func (m *Manager) Descriptors() []Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()

	descriptors := make([]Descriptor, 0, len(m.names))
	for _, name := range m.names {
		d := m.sources[name].Describe()
		d.Name = name
		descriptors = append(descriptors, d)
	}
	return descriptors
}

// State returns the current streaming state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		Running: m.running,
		Source:  m.activeName,
		Tuning:  m.tuning,
	}
}

// Start begins streaming from the named source, or from the first
// registered source when name is empty. Streaming continues until Stop is
// called, the source completes, or the retry budget is exhausted.
func (m *Manager) Start(name string, tuning Tuning) error {
	tuning = tuning.WithDefaults()
	if err := tuning.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyStreaming
	}
	if len(m.names) == 0 {
		return ErrNoSources
	}

	if name == "" {
		name = m.names[0]
	}
	src, ok := m.sources[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m.running = true
	m.activeName = name
	m.tuning = tuning
	m.cancel = cancel

	frames := make(chan *spectrum.Frame, 1)

	m.wg.Add(3)
	go m.supervise(ctx, cancel, src, tuning, frames)
	go m.enqueue(ctx, frames)
	go m.deliver(ctx, cancel)

	m.logger.Info("streaming started",
		slog.String("source", name),
		slog.Float64("centerFreq", tuning.CenterFreq),
		slog.Float64("sampleRate", tuning.SampleRate),
		slog.String("gain", tuning.Gain.String()),
		slog.Int("fftSize", tuning.FFTSize))

	return nil
}

// Stop halts streaming and waits for the supervision goroutines to exit.
// Stopping an idle manager is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.queue.Clear()

	m.logger.Info("streaming stopped")
}

// supervise runs the active source, restarting it after failures until the
// retry budget is exhausted or the context is cancelled.
func (m *Manager) supervise(ctx context.Context, cancel context.CancelFunc, src Source, tuning Tuning, frames chan *spectrum.Frame) {
	defer m.wg.Done()
	defer cancel()

	var attempt int
	for {
		err := m.runOnce(ctx, src, tuning, frames)
		if ctx.Err() != nil {
			return // stopped
		}

		if err == nil {
			m.settle(ctx, frames)
			m.logger.Info("source completed", slog.String("source", src.Describe().Driver))
			m.finish()
			return
		}

		attempt++
		if attempt > m.cfg.RetryCount {
			m.settle(ctx, frames)
			m.logger.Error("source failed, retry budget exhausted",
				slog.String("error", err.Error()),
				slog.Int("attempts", attempt))
			m.finish()
			return
		}

		m.logger.Warn("source failed, restarting",
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", m.cfg.RetryBackoff.Duration()))

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.RetryBackoff.Duration()):
		}
	}
}

// runOnce drives one source session from Begin to termination.
func (m *Manager) runOnce(ctx context.Context, src Source, tuning Tuning, frames chan<- *spectrum.Frame) error {
	done, err := src.Begin(ctx, tuning, frames)
	if err != nil {
		return err
	}

	select {
	case err = <-done:
		src.Stop()
		return err
	case <-ctx.Done():
		src.Stop()
		<-done // drain the terminal error so the source reporter can exit
		return ctx.Err()
	}
}

// enqueue moves frames from the source channel into the pending queue,
// discarding the oldest entries when the sink falls behind.
func (m *Manager) enqueue(ctx context.Context, frames <-chan *spectrum.Frame) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames:
			if frame == nil {
				continue
			}
			if err := m.queue.Put(frame); err != nil {
				m.logger.Warn("failed to enqueue frame", slog.String("error", err.Error()))
			}
		}
	}
}

// deliver drains the pending queue into the sink. Next hands out queued
// frames even after cancellation, so the queue is fully drained before the
// goroutine exits.
func (m *Manager) deliver(ctx context.Context, cancel context.CancelFunc) {
	defer m.wg.Done()

	for {
		frame, err := m.queue.Next(ctx)
		if err != nil {
			return // cancelled and drained
		}

		// A frame taken off the queue is always offered to the sink,
		// even while the stream is shutting down.
		if err := m.sink(context.Background(), frame); err != nil {
			m.logger.Error("sink rejected frame, stopping stream", slog.String("error", err.Error()))
			m.finish()
			cancel()
			return
		}
	}
}

// settle lets in-flight frames reach the sink before the stream goroutines
// are torn down.
func (m *Manager) settle(ctx context.Context, frames chan *spectrum.Frame) {
	deadline := time.After(time.Second)
	for len(frames) > 0 || m.queue.Size() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-time.After(time.Millisecond):
		}
	}
}

// finish marks the manager idle after the stream ended on its own.
func (m *Manager) finish() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}
