package model

import (
	"errors"
	"time"
)

// ErrInvalidInterval is returned when an interval ends before it starts.
var ErrInvalidInterval = errors.New("reservation start must be before or equal to reservation end")

// Interval is a closed time range [Start, End].  Both bounds are
// inclusive, so two intervals that merely touch still overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an Interval and enforces Start <= End.  Every code path
// that creates or changes reservation dates goes through here.
func NewInterval(start, end time.Time) (Interval, error) {
	if end.Before(start) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps uses the inclusive rule a.Start <= b.End && a.End >= b.Start.
func (a Interval) Overlaps(b Interval) bool {
	return !a.Start.After(b.End) && !a.End.Before(b.Start)
}

// ParseTimestamp parses an ISO-8601 date-time as sent by clients.  Offsets
// are honoured; the result is in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("must be a valid ISO date string")
}
