package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/server"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source/remote"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source/replay"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source/rtl"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source/sim"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/storage"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/telemetry"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/waterfall"
)

// Run wires the engine, the source manager and the HTTP surface together
// and serves until ctx is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	config.WithDefaults()

	metrics := telemetry.New()

	engine, err := waterfall.NewEngine(config.Engine,
		waterfall.WithLogger(logger),
		waterfall.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	var recorder *Recorder
	if config.Capture.Enabled {
		if recorder, err = NewRecorder(config.Capture, logger); err != nil {
			return fmt.Errorf("creating capture recorder: %w", err)
		}
		logger.Info("capturing frames", slog.String("path", recorder.Path()))
	}

	// The frame path: every delivered frame feeds the engine, then the
	// websocket feed, then the capture. The server does not exist yet when
	// the sink is built; the closure resolves it at delivery time.
	var srv *server.Server
	var manager *source.Manager
	sink := func(ctx context.Context, frame *spectrum.Frame) error {
		if err := engine.Ingest(ctx, frame); err != nil {
			return err
		}
		srv.Hub().BroadcastFrame(frame)

		if recorder != nil {
			// Capture is best-effort, a failed write never stops the stream
			if err := recorder.Record(ctx, manager.State(), frame); err != nil {
				logger.Warn("capture write failed", "error", err)
			}
		}
		return nil
	}

	manager, err = source.NewManager(config.Manager, sink,
		source.WithLogger(logger),
		source.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("creating source manager: %w", err)
	}

	closeSources, err := registerSources(ctx, config, manager, logger)
	if err != nil {
		return fmt.Errorf("registering sources: %w", err)
	}
	defer closeSources()

	srv, err = server.New(config.Server, engine, manager,
		server.WithLogger(logger),
		server.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	engineErr := make(chan error, 1)
	go func() {
		engineErr <- engine.Run(runCtx)
	}()

	statusDone := make(chan struct{})
	go logStatus(runCtx, config.Settings.StatusInterval.Duration(), metrics, logger, statusDone)

	if config.AutoStart != nil {
		if err := manager.Start(config.AutoStart.Source, config.AutoStart.Tuning); err != nil {
			cancel()
			<-engineErr
			<-statusDone
			return fmt.Errorf("auto-starting source: %w", err)
		}
	}

	serveErr := srv.Run(runCtx)

	// Stop the stream before tearing down the engine, so in-flight frames
	// drain through a live sink.
	manager.Stop()
	cancel()
	runErr := <-engineErr
	<-statusDone

	var closeErr error
	if recorder != nil {
		closeErr = recorder.Close()
	}

	return errors.Join(serveErr, runErr, closeErr)
}

// registerSources builds and registers every enabled source, in the fixed
// order rtl, sim, replay, remote; the first registered is the default for
// unnamed start requests. The returned cleanup closes the capture reader
// backing the replay source, if one was opened.
func registerSources(ctx context.Context, config *Config, manager *source.Manager, logger *slog.Logger) (func(), error) {
	cleanup := func() {}

	if cfg := config.Sources.RTL; cfg != nil {
		src, err := rtl.New(*cfg, rtl.WithLogger(logger))
		if err != nil {
			return cleanup, fmt.Errorf("creating rtl source: %w", err)
		}
		if err := manager.Register("rtl0", src); err != nil {
			return cleanup, err
		}
	}

	if cfg := config.Sources.Sim; cfg != nil {
		src, err := sim.New(*cfg, sim.WithLogger(logger))
		if err != nil {
			return cleanup, fmt.Errorf("creating sim source: %w", err)
		}
		if err := manager.Register("sim0", src); err != nil {
			return cleanup, err
		}
	}

	if cfg := config.Sources.Replay; cfg != nil {
		reader, err := storage.NewCaptureReader(cfg.DBPath)
		if err != nil {
			return cleanup, fmt.Errorf("opening capture database: %w", err)
		}
		cleanup = func() { reader.Close() }

		sessionID := cfg.SessionID
		if sessionID == 0 {
			if sessionID, err = latestSession(ctx, reader); err != nil {
				return cleanup, err
			}
		}

		src, err := replay.New(replay.Config{
			Read:  reader.Replay(sessionID),
			Speed: cfg.Speed,
			Loop:  cfg.Loop,
		}, replay.WithLogger(logger))
		if err != nil {
			return cleanup, fmt.Errorf("creating replay source: %w", err)
		}
		if err := manager.Register("replay0", src); err != nil {
			return cleanup, err
		}

		logger.Info("replay source ready",
			slog.String("path", cfg.DBPath),
			slog.Int64("session", sessionID))
	}

	if cfg := config.Sources.Remote; cfg != nil {
		src, err := remote.New(*cfg, remote.WithLogger(logger))
		if err != nil {
			return cleanup, fmt.Errorf("creating remote source: %w", err)
		}
		if err := manager.Register("remote0", src); err != nil {
			return cleanup, err
		}
	}

	if len(manager.Descriptors()) == 0 {
		return cleanup, errors.New("no sources enabled in configuration")
	}
	return cleanup, nil
}

// latestSession resolves the most recently started session in a capture.
func latestSession(ctx context.Context, reader *storage.CaptureReader) (int64, error) {
	sessions, err := reader.Sessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing capture sessions: %w", err)
	}
	if len(sessions) == 0 {
		return 0, errors.New("capture database has no sessions")
	}
	return sessions[len(sessions)-1].ID, nil
}

// logStatus emits the telemetry status line at the configured cadence.
func logStatus(ctx context.Context, interval time.Duration, metrics *telemetry.Metrics, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info(metrics.Stats().String())
		}
	}
}
