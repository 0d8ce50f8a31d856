package telemetry

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Stats is a point-in-time view of the runtime counters, shaped for the
// status endpoint and the periodic status log line.
type Stats struct {
	StartedAt       time.Time     `json:"started_at"`
	Uptime          time.Duration `json:"-"`
	FramesIngested  uint64        `json:"frames_ingested"`
	FramesDropped   uint64        `json:"frames_dropped"`
	FramesMalformed uint64        `json:"frames_malformed"`
	RowsEvicted     uint64        `json:"rows_evicted"`
	Renders         uint64        `json:"renders"`
	Clients         int64         `json:"clients"`
}

// String renders a compact status line.
func (s Stats) String() string {
	return fmt.Sprintf("up %s, %s frames, %s dropped, %s malformed, %s rows evicted, %s renders, %d clients",
		s.Uptime.Round(time.Second),
		humanize.Comma(int64(s.FramesIngested)),
		humanize.Comma(int64(s.FramesDropped)),
		humanize.Comma(int64(s.FramesMalformed)),
		humanize.Comma(int64(s.RowsEvicted)),
		humanize.Comma(int64(s.Renders)),
		s.Clients)
}

// UptimeString returns the uptime rounded for display.
func (s Stats) UptimeString() string {
	return s.Uptime.Round(time.Second).String()
}
