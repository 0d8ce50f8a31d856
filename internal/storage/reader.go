package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/spectrum"
)

const (
	selectSessionSQL = `
SELECT id, started_at, source, center_freq, sample_rate, fft_size, gain
FROM sessions
WHERE id = ?`

	selectSessionsSQL = `
SELECT id, started_at, source, center_freq, sample_rate, fft_size, gain
FROM sessions
ORDER BY started_at, id`

	selectFramesSQL = `
SELECT captured_at, center_freq, sample_rate, freqs, power, waterfall
FROM frames
WHERE session_id = ?`
)

// ReaderOption configures a FrameIterator with filtering criteria.
type ReaderOption func(*FrameIterator)

// WithStartTime excludes frames captured before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(it *FrameIterator) {
		it.startTime = &t
	}
}

// WithEndTime excludes frames captured after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(it *FrameIterator) {
		it.endTime = &t
	}
}

// WithTimeRange bounds iteration to frames captured between startTime and
// endTime inclusive.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(it *FrameIterator) {
		it.startTime = &startTime
		it.endTime = &endTime
	}
}

// WithLimit caps the number of frames the iterator yields.
func WithLimit(n int) ReaderOption {
	return func(it *FrameIterator) {
		it.limit = n
	}
}

// CaptureReader is the read side of a capture database. It opens the
// database read-only, so a capture can be inspected while another process
// is still recording into it.
type CaptureReader struct {
	db *sql.DB
}

// NewCaptureReader opens the capture database at dbPath for reading.
func NewCaptureReader(dbPath string) (*CaptureReader, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", dbPath, "mode=ro&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("opening read connection: %w", err)
	}
	return &CaptureReader{db: db}, nil
}

// Session returns a recorded session by its ID.
func (r *CaptureReader) Session(ctx context.Context, id int64) (session *Session, err error) {
	stmt, err := r.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	session, err = scanSession(stmt.QueryRowContext(ctx, id))
	if err != nil {
		return nil, fmt.Errorf("scanning session %d: %w", id, err)
	}
	return session, nil
}

// Sessions returns all recorded sessions ordered by start time.
func (r *CaptureReader) Sessions(ctx context.Context) (sessions []Session, err error) {
	rows, err := r.db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// Frames returns an iterator over a session's frames in capture order.
// The iterator must be closed after use.
func (r *CaptureReader) Frames(ctx context.Context, sessionID int64, opts ...ReaderOption) (*FrameIterator, error) {
	it := &FrameIterator{}
	for _, opt := range opts {
		opt(it)
	}

	var sb strings.Builder
	sb.WriteString(selectFramesSQL)
	args := []any{sessionID}

	if it.startTime != nil {
		sb.WriteString(" AND captured_at >= ?")
		args = append(args, it.startTime.UTC())
	}
	if it.endTime != nil {
		sb.WriteString(" AND captured_at <= ?")
		args = append(args, it.endTime.UTC())
	}
	sb.WriteString(" ORDER BY captured_at, id")
	if it.limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, it.limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying frames: %w", err)
	}

	it.rows = rows
	return it, nil
}

// Replay adapts a session to the frame supplier shape the replay source
// consumes: a function streaming every frame of the session in capture
// order through the given callback.
func (r *CaptureReader) Replay(sessionID int64, opts ...ReaderOption) func(ctx context.Context, fn func(*spectrum.Frame) error) error {
	return func(ctx context.Context, fn func(*spectrum.Frame) error) error {
		it, err := r.Frames(ctx, sessionID, opts...)
		if err != nil {
			return err
		}
		defer it.Close()

		for it.Next() {
			if err := fn(it.Current()); err != nil {
				return err
			}
		}
		return it.Error()
	}
}

// Close releases the database connection.
func (r *CaptureReader) Close() error {
	return r.db.Close()
}

// FrameIterator walks a session's recorded frames in capture order.
type FrameIterator struct {
	rows    *sql.Rows
	current *spectrum.Frame
	err     error

	startTime *time.Time
	endTime   *time.Time
	limit     int
}

// Next advances to the next frame. It returns false at the end of the
// capture or on error; check Error to tell the two apart.
func (it *FrameIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}

	var frame spectrum.Frame
	var freqs, power, waterfall []byte
	if err := it.rows.Scan(&frame.Time, &frame.CenterFreq, &frame.SampleRate, &freqs, &power, &waterfall); err != nil {
		it.err = fmt.Errorf("scanning frame: %w", err)
		return false
	}

	for _, blob := range []struct {
		name string
		data []byte
		into *[]float64
	}{
		{"freqs", freqs, &frame.Freqs},
		{"power", power, &frame.Power},
		{"waterfall", waterfall, &frame.Waterfall},
	} {
		values, err := decodeFloats(blob.data)
		if err != nil {
			it.err = fmt.Errorf("decoding %s: %w", blob.name, err)
			return false
		}
		*blob.into = values
	}

	it.current = &frame
	return true
}

// Current returns the frame most recently yielded by Next.
func (it *FrameIterator) Current() *spectrum.Frame {
	return it.current
}

// Error returns the error that stopped iteration, if any.
func (it *FrameIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

// Close releases the iterator's database resources.
func (it *FrameIterator) Close() error {
	return it.rows.Close()
}

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var session Session
	var gain string
	if err := row.Scan(
		&session.ID,
		&session.StartedAt,
		&session.Source,
		&session.Tuning.CenterFreq,
		&session.Tuning.SampleRate,
		&session.Tuning.FFTSize,
		&gain,
	); err != nil {
		return nil, err
	}
	session.Tuning.Gain = source.Gain(gain)
	return &session, nil
}
