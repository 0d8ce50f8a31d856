// Package remote relays spectrum frames from another instance over its
// websocket feed. A stalled or failed connection surfaces as a source
// failure, so the manager's retry policy doubles as the reconnect policy.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

const (
	// Driver is the producer kind reported in descriptors.
	Driver = "remote"

	// DefaultDialTimeout bounds the websocket handshake.
	DefaultDialTimeout = 10 * time.Second

	// DefaultReadTimeout is the idle deadline: a feed that stays silent
	// for this long is treated as dead.
	DefaultReadTimeout = 30 * time.Second

	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5
)

// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
var ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

// Config holds the relay settings.
type Config struct {
	URL                  string              `yaml:"url" json:"url"`                                   // ws:// or wss:// feed endpoint
	DialTimeout          source.TimeDuration `yaml:"dialTimeout" json:"dialTimeout"`                   // handshake timeout (default: 10s)
	ReadTimeout          source.TimeDuration `yaml:"readTimeout" json:"readTimeout"`                   // idle deadline (default: 30s), negative disables
	ParseErrorsThreshold uint8               `yaml:"parseErrorsThreshold" json:"parseErrorsThreshold"` // consecutive parse errors allowed
}

// WithDefaults returns a copy of the config with zero fields replaced by
// their defaults.
func (c Config) WithDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = source.NewTimeDuration(DefaultDialTimeout)
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = source.NewTimeDuration(DefaultReadTimeout)
	}
	if c.ParseErrorsThreshold == 0 {
		c.ParseErrorsThreshold = ParseErrorsThreshold
	}
	return c
}

// Validate checks the relay settings.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("remote.Config: feed URL must not be empty")
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("remote.Config: invalid feed URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("remote.Config: feed URL scheme must be ws or wss: %s", u.Scheme)
	}

	return nil
}

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("source", Driver))
	}
}

// Source relays frames from a peer websocket feed.
type Source struct {
	cfg Config

	isStreaming atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	logger *slog.Logger
}

// New creates a relay source with a discard logger
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

// Describe returns static metadata about the relay.
func (s *Source) Describe() source.Descriptor {
	return source.Descriptor{
		Driver:      Driver,
		Description: fmt.Sprintf("relay of %s", s.cfg.URL),
	}
}

// Begin dials the peer feed and relays its frames. The tuning is ignored:
// frames carry the peer's acquisition parameters.
func (s *Source) Begin(ctx context.Context, _ source.Tuning, frames chan<- *spectrum.Frame) (<-chan error, error) {
	if s.isStreaming.Load() {
		return nil, source.ErrAlreadyStreaming
	}

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.DialTimeout.Duration()}

	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("error dialing %s: %w", s.cfg.URL, err)
	}

	s.isStreaming.Store(true)
	ctx, s.cancel = context.WithCancel(ctx)

	streamStopped := make(chan error)

	s.wg.Add(1)
	go func() {
		defer close(streamStopped)

		s.logger.Info("relaying feed...", slog.String("url", s.cfg.URL))

		// Unblock ReadMessage when the context goes away.
		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		failure := s.readLoop(ctx, conn, frames)
		conn.Close()

		if failure != nil {
			s.logger.Error(failure.Error())
		}

		s.logger.Info("relay stopped")

		s.isStreaming.Store(false)
		s.wg.Done()

		if failure != nil {
			streamStopped <- failure
		}
	}()

	return streamStopped, nil
}

// Stop halts the relay and waits for the reader goroutine to exit.
func (s *Source) Stop() {
	if !s.isStreaming.Load() {
		return // already stopped
	}

	s.cancel()
	s.wg.Wait()
	s.isStreaming.Store(false)
}

// readLoop consumes feed messages until the connection closes. Gorilla
// answers pings from the peer on its own; the idle deadline catches feeds
// that stop sending without closing.
func (s *Source) readLoop(ctx context.Context, conn *websocket.Conn, frames chan<- *spectrum.Frame) error {
	var parseErrors uint8

	for {
		if s.cfg.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout.Duration())); err != nil {
				return fmt.Errorf("error setting read deadline: %w", err)
			}
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil // peer finished or we are shutting down
			}
			return fmt.Errorf("error reading feed: %w", err)
		}

		var envelope spectrum.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			parseErrors++
			s.logger.Warn(fmt.Sprintf("error parsing feed message: %s", err.Error()))

			if parseErrors >= s.cfg.ParseErrorsThreshold {
				return ErrTooManyParseErrors
			}

			continue
		}

		if envelope.Type != spectrum.MessageTypeSpectrum {
			continue // status messages are not relayed
		}

		frame, err := spectrum.DecodeFrame([]byte(envelope.Data))
		if err != nil {
			parseErrors++
			s.logger.Warn(fmt.Sprintf("error decoding frame: %s", err.Error()))

			if parseErrors >= s.cfg.ParseErrorsThreshold {
				return ErrTooManyParseErrors
			}

			continue
		}

		parseErrors = 0 // reset counter

		select {
		case frames <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}
