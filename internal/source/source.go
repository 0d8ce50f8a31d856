// Package source defines spectrum producers and the manager that supervises
// them. A producer delivers decoded frames over a channel; the manager owns
// the active producer, applies the retry policy and pumps frames into the
// rendering engine through a drop-oldest queue.
package source

import (
	"context"
	"errors"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

var (
	// ErrAlreadyStreaming is returned when Begin is called on a source that
	// is already producing frames.
	ErrAlreadyStreaming = errors.New("source is already streaming")

	// ErrUnknownSource is returned when a start request names a source that
	// has not been registered.
	ErrUnknownSource = errors.New("unknown source")

	// ErrNoSources is returned when a start request arrives before any
	// source has been registered.
	ErrNoSources = errors.New("no sources registered")
)

// Descriptor holds static metadata about a source, served by the devices API.
type Descriptor struct {
	Name        string `json:"name"`        // registry name, e.g. "rtl0"
	Driver      string `json:"driver"`      // producer kind, e.g. "rtl_sdr"
	Description string `json:"description"` // human readable summary
}

// Source is implemented by spectrum producers: SDR subprocesses, the
// synthetic generator, capture replay and remote relays.
type Source interface {
	// Describe returns static metadata about the source.
	Describe() Descriptor

	// Begin starts frame production with the given tuning and sends frames
	// to the frames channel until the context is cancelled, Stop is called
	// or the source fails. The returned channel is closed once production
	// has fully stopped; it carries the terminal error, if any. Sources
	// that replay or relay foreign captures may ignore the tuning.
	Begin(ctx context.Context, tuning Tuning, frames chan<- *spectrum.Frame) (<-chan error, error)

	// Stop halts frame production and waits for internal goroutines to exit.
	Stop()
}
