package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/render"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/storage"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/waterfall"
)

// Run renders a recorded capture session into a waterfall image, and
// optionally a spectrum chart of its last frame.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file %q does not exist: %w", config.DBPath, err)
	}

	reader, err := storage.NewCaptureReader(config.DBPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	if config.List {
		return listSessions(ctx, reader, logger)
	}
	return renderSession(ctx, reader, config, logger)
}

func listSessions(ctx context.Context, reader *storage.CaptureReader, logger *slog.Logger) error {
	sessions, err := reader.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		logger.Info("capture has no sessions")
		return nil
	}

	for _, session := range sessions {
		logger.Info("session",
			slog.Int64("id", session.ID),
			slog.String("started", session.StartedAt.Local().Format(time.DateTime)),
			slog.String("source", session.Source),
			slog.String("centerFreq", fmt.Sprintf("%0.3fMHz", session.Tuning.CenterFreq/1e6)),
			slog.String("sampleRate", fmt.Sprintf("%0.3fMS/s", session.Tuning.SampleRate/1e6)),
			slog.Int("fftSize", session.Tuning.FFTSize),
			slog.String("gain", session.Tuning.Gain.String()))
	}
	return nil
}

func renderSession(ctx context.Context, reader *storage.CaptureReader, config *Config, logger *slog.Logger) error {
	sessionID := config.SessionID
	if sessionID == 0 {
		sessions, err := reader.Sessions(ctx)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(sessions) == 0 {
			return fmt.Errorf("capture database has no sessions")
		}
		sessionID = sessions[len(sessions)-1].ID
	}

	session, err := reader.Session(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session %d: %w", sessionID, err)
	}

	logger.Info("reading session",
		slog.Int64("id", session.ID),
		slog.String("source", session.Source),
		slog.String("centerFreq", fmt.Sprintf("%0.3fMHz", session.Tuning.CenterFreq/1e6)))

	scene, stats, err := buildScene(ctx, reader, sessionID, config)
	if err != nil {
		return err
	}
	if scene.Empty() {
		return fmt.Errorf("session %d has no renderable frames", sessionID)
	}

	logger.Info("finished reading frames",
		slog.Group("stats",
			slog.String("frames", humanize.Comma(stats.frames)),
			slog.String("skipped", humanize.Comma(stats.skipped)),
			slog.Int("rows", len(scene.Rows)),
			slog.String("first", stats.first.Local().Format(time.DateTime)),
			slog.String("last", stats.last.Local().Format(time.DateTime))))

	rasterizer := render.NewRasterizer(render.Config{Width: config.Width, Height: config.Height})
	img, err := rasterizer.Render(scene)
	if err != nil {
		return fmt.Errorf("rendering waterfall: %w", err)
	}

	logger.Info("writing waterfall image",
		slog.String("destination", config.OutputFile),
		slog.String("format", string(config.Format)))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: 98})
	}
	if err != nil {
		return fmt.Errorf("encoding waterfall image: %w", err)
	}

	if config.ChartFile != "" {
		if err := writeChart(config.ChartFile, scene.Latest); err != nil {
			return err
		}
		logger.Info("writing spectrum chart", slog.String("destination", config.ChartFile))
	}
	return nil
}

type sceneStats struct {
	frames  int64
	skipped int64
	first   time.Time
	last    time.Time
}

// buildScene replays the session's frames through a history the same way
// the live engine ingests them, newest row at the baseline, then snapshots
// the result. The history is bounded by the row budget, so only the
// capture's tail is retained for tall sessions.
func buildScene(ctx context.Context, reader *storage.CaptureReader, sessionID int64, config *Config) (waterfall.Scene, sceneStats, error) {
	var stats sceneStats

	cfg := waterfall.Config{
		MaxRows:        config.MaxRows,
		ViewportWidth:  config.Width,
		ViewportHeight: config.Height,
	}.WithDefaults()

	gradient, err := waterfall.NewGradient(cfg.ColorStops, cfg.SaturationBoost)
	if err != nil {
		return waterfall.Scene{}, stats, fmt.Errorf("creating gradient: %w", err)
	}
	history, err := waterfall.NewHistory(cfg.MaxRows, cfg.MaxVisibleDepth, cfg.HeightScale, gradient)
	if err != nil {
		return waterfall.Scene{}, stats, fmt.Errorf("creating history: %w", err)
	}

	it, err := reader.Frames(ctx, sessionID)
	if err != nil {
		return waterfall.Scene{}, stats, fmt.Errorf("reading frames: %w", err)
	}
	defer it.Close()

	var latest *spectrum.Frame
	for it.Next() {
		frame := it.Current()
		if err := frame.Validate(); err != nil {
			stats.skipped++
			continue
		}

		history.Advance(cfg.RowSpacing)
		if _, err := history.Insert(frame.Waterfall, cfg.ViewportWidth); err != nil {
			stats.skipped++
			continue
		}

		if stats.frames == 0 {
			stats.first = frame.Time
		}
		stats.last = frame.Time
		stats.frames++
		latest = frame
	}
	if err := it.Error(); err != nil {
		return waterfall.Scene{}, stats, fmt.Errorf("reading frames: %w", err)
	}

	viewport := waterfall.ViewportState{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight}
	scene := waterfall.Scene{
		Rows:       history.Snapshot(),
		Viewport:   viewport,
		Projection: viewport.Projection(),
		Latest:     latest,
		Generation: uint64(stats.frames),
	}
	return scene, stats, nil
}

func writeChart(path string, latest *spectrum.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := render.WriteSpectrumChart(f, latest); err != nil {
		return fmt.Errorf("rendering spectrum chart: %w", err)
	}
	return nil
}
