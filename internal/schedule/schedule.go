package schedule

import (
	"context"
	"sort"
	"time"

	"github.com/baddbeatz/streamcast/internal/platform"
)

// Stream is one scheduled broadcast. The schedule is sourced read-only
// from an external provider; the core never mutates it.
type Stream struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Genre     string        `json:"genre"`
	Platform  platform.Key  `json:"platform"`
}

// Upcoming reports whether the stream starts after now.
func (s Stream) Upcoming(now time.Time) bool {
	return s.StartTime.After(now)
}

// Provider supplies the schedule.
type Provider interface {
	Streams(ctx context.Context) ([]Stream, error)
}

// StaticProvider serves a fixed schedule, ordered by start time. Used
// until a real schedule backend exists.
type StaticProvider struct {
	streams []Stream
}

func NewStaticProvider(streams []Stream) *StaticProvider {
	sorted := append([]Stream(nil), streams...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})
	return &StaticProvider{streams: sorted}
}

func (p *StaticProvider) Streams(ctx context.Context) ([]Stream, error) {
	out := make([]Stream, len(p.streams))
	copy(out, p.streams)
	return out, nil
}

// Split partitions a schedule into upcoming and past entries relative to
// now, preserving order.
func Split(streams []Stream, now time.Time) (upcoming, past []Stream) {
	for _, s := range streams {
		if s.Upcoming(now) {
			upcoming = append(upcoming, s)
		} else {
			past = append(past, s)
		}
	}
	return upcoming, past
}
