package waterfall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/telemetry"
)

var (
	// ErrEngineStopped is returned when an entry point is used after the
	// run loop has exited.
	ErrEngineStopped = errors.New("engine stopped")

	// ErrAlreadyRunning is returned by Run when the loop is already
	// active or has already run once.
	ErrAlreadyRunning = errors.New("engine already running")
)

const (
	engineStateNew = iota
	engineStateRunning
	engineStateStopped
)

// Renderer consumes read-only scene snapshots at the render cadence.
// Renderers run on the engine goroutine and must hand off slow work; an
// error return is logged and the renderer stays attached.
type Renderer interface {
	RenderScene(Scene) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(Scene) error

func (f RendererFunc) RenderScene(s Scene) error { return f(s) }

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) func(e *Engine) {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the telemetry counters the engine reports into
func WithMetrics(m *telemetry.Metrics) func(e *Engine) {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithReleaseFunc registers a hook invoked synchronously for every row
// the history evicts, before the row's geometry is dropped. Hosts that
// mirror rows into external resources release them here.
func WithReleaseFunc(fn func(r *Row)) func(e *Engine) {
	return func(e *Engine) {
		e.release = fn
	}
}

type renderTarget struct {
	id       uint64
	renderer Renderer
}

type resizeEvent struct {
	width, height int
}

// Engine turns the incoming frame stream into the scrolling waterfall
// scene. A single goroutine started by Run owns all mutable state: frame
// ingestion, viewport resizes and render ticks are serialized onto it, so
// the history needs no locks and every published scene is a consistent
// snapshot. The ingestion path drives the scroll; the render loop only
// ever reads.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	release func(*Row)

	history  *History
	viewport ViewportState
	latest   *spectrum.Frame

	frames   chan *spectrum.Frame
	resizes  chan resizeEvent
	attachCh chan renderTarget
	detachCh chan uint64

	scene      atomic.Pointer[Scene]
	generation uint64
	targets    map[uint64]Renderer
	targetSeq  atomic.Uint64

	state atomic.Int32
	done  chan struct{}
}

// NewEngine creates an engine for the given configuration with a discard
// logger. Zero config values fall back to defaults.
func NewEngine(cfg Config, options ...func(e *Engine)) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	e := Engine{
		cfg:      cfg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		metrics:  telemetry.New(),
		viewport: ViewportState{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		frames:   make(chan *spectrum.Frame, cfg.QueueSize),
		resizes:  make(chan resizeEvent),
		attachCh: make(chan renderTarget),
		detachCh: make(chan uint64),
		targets:  make(map[uint64]Renderer),
		done:     make(chan struct{}),
	}

	for _, option := range options {
		option(&e)
	}

	gradient, err := NewGradient(cfg.ColorStops, cfg.SaturationBoost)
	if err != nil {
		return nil, fmt.Errorf("engine gradient: %w", err)
	}

	// Every eviction, overflow or depth, flows through this hook so the
	// release is synchronous with the removal.
	hook := func(row *Row) {
		e.metrics.RowsEvicted(1)
		if e.release != nil {
			e.release(row)
		}
	}

	e.history, err = NewHistory(cfg.MaxRows, cfg.MaxVisibleDepth, cfg.HeightScale, gradient, WithEvictFunc(hook))
	if err != nil {
		return nil, fmt.Errorf("engine history: %w", err)
	}

	e.publish() // initial empty scene, so Snapshot is valid before Run
	return &e, nil
}

// Run services the engine loop until ctx is cancelled. The render ticker
// is armed while at least one renderer is attached and idle otherwise.
// An engine runs at most once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.state.CompareAndSwap(engineStateNew, engineStateRunning) {
		if e.state.Load() == engineStateStopped {
			return ErrEngineStopped
		}
		return ErrAlreadyRunning
	}
	defer e.state.Store(engineStateStopped)
	defer close(e.done)

	interval := time.Second / time.Duration(e.cfg.TargetFPS)
	ticker := time.NewTicker(interval)
	ticker.Stop() // armed on first attach
	defer ticker.Stop()

	e.logger.Info("engine started",
		slog.Int("maxRows", e.cfg.MaxRows),
		slog.Int("targetFPS", e.cfg.TargetFPS),
		slog.Int("width", e.viewport.Width),
		slog.Int("height", e.viewport.Height))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped")
			return nil

		case frame := <-e.frames:
			e.ingest(frame)

		case ev := <-e.resizes:
			e.viewport = e.viewport.Resize(ev.width, ev.height)
			e.publish()

		case t := <-e.attachCh:
			e.targets[t.id] = t.renderer
			if len(e.targets) == 1 {
				ticker.Reset(interval)
			}

		case id := <-e.detachCh:
			delete(e.targets, id)
			if len(e.targets) == 0 {
				ticker.Stop()
			}

		case <-ticker.C:
			e.render()
		}
	}
}

// Ingest decodes, validates and queues one spectrum_data payload, which
// may be a serialized JSON document, a structured object or an already
// decoded frame. Malformed payloads are dropped, logged and counted here;
// they never reach the render path and no failure escapes to the caller.
// Valid frames are delivered to the run loop in arrival order; Ingest
// blocks while the pending queue is full so ordering is preserved. The
// returned error is only ever about cancellation or a stopped engine.
func (e *Engine) Ingest(ctx context.Context, payload any) error {
	frame, err := spectrum.DecodeFrame(payload)
	if err != nil {
		e.metrics.FrameMalformed()
		e.logger.Warn("drop frame", "error", err)
		return nil
	}

	// The pending queue keeps capacity after the loop exits; without this
	// check a stopped engine could still win the select below.
	select {
	case <-e.done:
		return ErrEngineStopped
	default:
	}

	select {
	case e.frames <- frame:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resize notifies the engine of a container size change. The projection
// follows the new size; rows already in history keep the x-span they
// were built with.
func (e *Engine) Resize(width, height int) {
	select {
	case e.resizes <- resizeEvent{width, height}:
	case <-e.done:
	}
}

// Attach registers a renderer and starts the render loop if it was idle.
// The returned function detaches the renderer; once the last renderer
// detaches, the loop stops ticking.
func (e *Engine) Attach(r Renderer) (detach func(), err error) {
	if r == nil {
		return nil, errors.New("renderer is required")
	}

	t := renderTarget{id: e.targetSeq.Add(1), renderer: r}
	select {
	case e.attachCh <- t:
	case <-e.done:
		return nil, ErrEngineStopped
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			select {
			case e.detachCh <- t.id:
			case <-e.done:
			}
		})
	}, nil
}

// Snapshot returns the most recently published scene. It is safe from
// any goroutine and valid before the first frame arrives.
func (e *Engine) Snapshot() Scene {
	return *e.scene.Load()
}

// LatestFrame returns the most recent valid frame, or nil before one
// arrives. The companion spectrum chart draws from it.
func (e *Engine) LatestFrame() *spectrum.Frame {
	return e.scene.Load().Latest
}

// Metrics exposes the engine's telemetry counters.
func (e *Engine) Metrics() *telemetry.Metrics {
	return e.metrics
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ingest runs on the engine goroutine. Existing rows scroll away from
// the baseline before the new row is inserted, so the newest row always
// sits at offset zero.
func (e *Engine) ingest(frame *spectrum.Frame) {
	// Boundary validation guarantees two or more samples, but the check
	// must hold here too: history may not move for a rejected frame.
	if frame.NumSamples() < 2 {
		e.metrics.FrameMalformed()
		e.logger.Warn("drop frame", "error", ErrRowTooShort)
		return
	}

	e.history.Advance(e.cfg.RowSpacing)
	if _, err := e.history.Insert(frame.Waterfall, e.viewport.Width); err != nil {
		e.metrics.FrameMalformed()
		e.logger.Warn("drop frame", "error", err)
		return
	}

	e.latest = frame
	e.metrics.FrameIngested()
	e.publish()
}

// render runs on the engine goroutine and hands the current scene to
// every attached renderer. When no frame arrived since the previous
// tick, the same scene is drawn again unchanged.
func (e *Engine) render() {
	scene := *e.scene.Load()
	for id, renderer := range e.targets {
		if err := renderer.RenderScene(scene); err != nil {
			e.logger.Warn("render scene", "renderer", id, "error", err)
		}
	}
	e.metrics.RenderCompleted()
}

// publish rebuilds the immutable scene snapshot after a state mutation.
func (e *Engine) publish() {
	e.generation++
	scene := Scene{
		Rows:       e.history.Snapshot(),
		Viewport:   e.viewport,
		Projection: e.viewport.Projection(),
		Latest:     e.latest,
		Generation: e.generation,
	}
	e.scene.Store(&scene)
}
