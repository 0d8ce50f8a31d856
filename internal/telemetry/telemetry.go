package telemetry

import (
	"sync/atomic"
	"time"
)

// Metrics aggregates runtime counters across the ingestion, render and
// transport paths. All methods are safe for concurrent use; counters only
// ever increase (except the client gauge).
type Metrics struct {
	startedAt time.Time

	ingested  atomic.Uint64 // frames accepted into history
	dropped   atomic.Uint64 // frames dropped by queue overflow
	malformed atomic.Uint64 // frames rejected at the ingestion boundary
	evicted   atomic.Uint64 // rows evicted by overflow or depth
	renders   atomic.Uint64 // render loop ticks completed
	clients   atomic.Int64  // connected websocket clients
}

// New creates a metrics set with the uptime clock started now.
func New() *Metrics {
	return NewStartedAt(time.Now())
}

// NewStartedAt creates a metrics set with an explicit start time, so tests
// can pin the uptime clock.
func NewStartedAt(t time.Time) *Metrics {
	return &Metrics{startedAt: t}
}

// FrameIngested records a frame accepted into the waterfall history.
func (m *Metrics) FrameIngested() {
	m.ingested.Add(1)
}

// FrameDropped records a frame dropped before ingestion because the
// pending queue was full.
func (m *Metrics) FrameDropped() {
	m.dropped.Add(1)
}

// FrameMalformed records a frame rejected by schema validation or
// deserialization.
func (m *Metrics) FrameMalformed() {
	m.malformed.Add(1)
}

// RowsEvicted records rows removed from history in an eviction pass.
func (m *Metrics) RowsEvicted(n int) {
	if n > 0 {
		m.evicted.Add(uint64(n))
	}
}

// RenderCompleted records one render loop tick.
func (m *Metrics) RenderCompleted() {
	m.renders.Add(1)
}

// ClientConnected bumps the client gauge and returns the new count.
func (m *Metrics) ClientConnected() int64 {
	return m.clients.Add(1)
}

// ClientDisconnected drops the client gauge and returns the new count.
func (m *Metrics) ClientDisconnected() int64 {
	return m.clients.Add(-1)
}

// Clients returns the current client gauge.
func (m *Metrics) Clients() int64 {
	return m.clients.Load()
}

// Stats captures a consistent-enough snapshot of all counters.
func (m *Metrics) Stats() Stats {
	return Stats{
		StartedAt:       m.startedAt,
		Uptime:          time.Since(m.startedAt),
		FramesIngested:  m.ingested.Load(),
		FramesDropped:   m.dropped.Load(),
		FramesMalformed: m.malformed.Load(),
		RowsEvicted:     m.evicted.Load(),
		Renders:         m.renders.Load(),
		Clients:         m.clients.Load(),
	}
}
