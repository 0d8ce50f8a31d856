package storage

import (
	"time"

	"github.com/swan-goose-duck/rtl-sdr-visualization/internal/source"
)

// Session describes one recorded acquisition run: which source produced
// the frames and the tuning it was started with.
type Session struct {
	ID        int64         `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Source    string        `json:"source"`
	Tuning    source.Tuning `json:"tuning"`
}
