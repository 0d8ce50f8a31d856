package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/storage"
)

// Recorder copies the ingested stream into a capture database, one session
// per source/tuning combination, writing frames in batches. Recording is
// best-effort: the caller decides whether a write failure stops anything.
type Recorder struct {
	store     *storage.CaptureStore
	logger    *slog.Logger
	dbPath    string
	batchSize int

	mu         sync.Mutex
	sessionID  int64
	sessionKey string
	batch      []*spectrum.Frame
}

// NewRecorder creates a recorder writing into a timestamped database file
// under the capture directory, which must exist.
func NewRecorder(cfg CaptureConfig, logger *slog.Logger) (*Recorder, error) {
	dir := cfg.DataDirectory
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("capture directory %q does not exist", dir)
		}
		return nil, fmt.Errorf("checking capture directory: %w", err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("capture path %q is not a directory", dir)
	}

	dbPath := filepath.Join(dir, fmt.Sprintf("capture_%s.sqlite", time.Now().UTC().Format("20060102_150405")))

	return &Recorder{
		store:     storage.NewCaptureStore(dbPath),
		logger:    logger,
		dbPath:    dbPath,
		batchSize: cfg.MaxBatchSize,
		batch:     make([]*spectrum.Frame, 0, cfg.MaxBatchSize),
	}, nil
}

// Path returns the capture database file path.
func (r *Recorder) Path() string {
	return r.dbPath
}

// Record appends the frame to the current batch, flushing when the batch
// is full. A change of source or tuning closes the batch and opens a new
// capture session.
func (r *Recorder) Record(ctx context.Context, state source.State, frame *spectrum.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(state)
	if r.sessionID == 0 || key != r.sessionKey {
		if err := r.flushLocked(ctx); err != nil {
			return err
		}

		id, err := r.store.CreateSession(ctx, state.Source, state.Tuning)
		if err != nil {
			return fmt.Errorf("creating capture session: %w", err)
		}
		r.sessionID, r.sessionKey = id, key

		r.logger.Info("capture session started",
			slog.Int64("session", id),
			slog.String("source", state.Source),
			slog.Float64("centerFreq", state.Tuning.CenterFreq))
	}

	r.batch = append(r.batch, frame)
	if len(r.batch) >= r.batchSize {
		return r.flushLocked(ctx)
	}
	return nil
}

// Close flushes the open batch and closes the store, logging the final
// capture size.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	flushErr := r.flushLocked(context.Background())
	closeErr := r.store.Close()

	if info, err := os.Stat(r.dbPath); err == nil {
		r.logger.Info("capture closed",
			slog.String("path", r.dbPath),
			slog.String("size", humanize.Bytes(uint64(info.Size()))))
	}

	return errors.Join(flushErr, closeErr)
}

func (r *Recorder) flushLocked(ctx context.Context) error {
	if len(r.batch) == 0 {
		return nil
	}
	if err := r.store.WriteFrames(ctx, r.sessionID, r.batch); err != nil {
		return fmt.Errorf("writing capture batch: %w", err)
	}
	r.batch = r.batch[:0]
	return nil
}

// sessionKey fingerprints the acquisition parameters a session records.
func sessionKey(state source.State) string {
	t := state.Tuning
	return fmt.Sprintf("%s|%g|%g|%s|%d", state.Source, t.CenterFreq, t.SampleRate, t.Gain, t.FFTSize)
}
