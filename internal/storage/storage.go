// Package storage records the raw input frame stream into a sqlite
// capture database, one session per acquisition run, and reads captures
// back for replay and offline rendering. Float arrays are stored as
// little-endian blobs, so a capture round-trips bit-exact.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

//go:embed schema.sql
var schemaSQL string

const (
	insertSessionSQL = `
INSERT INTO sessions (started_at, source, center_freq, sample_rate, fft_size, gain)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?, ?, ?)`

	insertFrameSQL = `
INSERT INTO frames (session_id, captured_at, center_freq, sample_rate, freqs, power, waterfall)
VALUES (?, ?, ?, ?, ?, ?, ?)`
)

// CaptureStore is the write side of a capture database. Connections open
// lazily on first use; a store that is created but never written to never
// touches the filesystem.
type CaptureStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewCaptureStore creates a store backed by the sqlite database at dbPath.
// The database file and schema are created on the first write.
func NewCaptureStore(dbPath string) *CaptureStore {
	return &CaptureStore{dbPath: dbPath}
}

func (s *CaptureStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if _, err = db.Exec(schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

// CreateSession records the start of an acquisition run and returns the
// session ID that subsequent frame writes attach to.
func (s *CaptureStore) CreateSession(ctx context.Context, sourceName string, tuning source.Tuning) (sessionID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, sourceName, tuning.CenterFreq, tuning.SampleRate, tuning.FFTSize, tuning.Gain.String())
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

// WriteFrame appends one frame to a session.
func (s *CaptureStore) WriteFrame(ctx context.Context, sessionID int64, frame *spectrum.Frame) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertFrameSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, frameArgs(sessionID, frame)...); err != nil {
		return fmt.Errorf("inserting frame: %w", err)
	}
	return
}

// WriteFrames appends a batch of frames to a session in a single
// transaction. An empty batch is a no-op.
func (s *CaptureStore) WriteFrames(ctx context.Context, sessionID int64, frames []*spectrum.Frame) (err error) {
	if len(frames) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, insertFrameSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, frame := range frames {
		if _, err = stmt.ExecContext(ctx, frameArgs(sessionID, frame)...); err != nil {
			return fmt.Errorf("inserting frame: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return
}

// Close releases the database connection. It is safe to call Close more
// than once; the store cannot be reused afterwards.
func (s *CaptureStore) Close() error {
	s.closeOnce.Do(func() {
		if s.writeDB != nil {
			s.closeErr = s.writeDB.Close()
			s.writeDB = nil
		}
	})
	return s.closeErr
}

func frameArgs(sessionID int64, frame *spectrum.Frame) []any {
	return []any{
		sessionID,
		frame.Time.UTC(),
		frame.CenterFreq,
		frame.SampleRate,
		encodeFloats(frame.Freqs),
		encodeFloats(frame.Power),
		encodeFloats(frame.Waterfall),
	}
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = fmt.Errorf("closing: %w", cErr)
	}
}

// rollbackWithError discards the transaction unless it was committed.
// A rollback after commit reports sql.ErrTxDone, which is not an error.
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = fmt.Errorf("rolling back transaction: %w", cErr)
	}
}
