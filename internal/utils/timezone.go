package utils

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone database for minimal container images
)

// DefaultTimeZone is used when TIME_ZONE is not configured.
const DefaultTimeZone = "America/New_York"

// storeLayout is how reservation instants are written to DATETIME columns.
const storeLayout = "2006-01-02 15:04:05"

// Zone normalizes reservation instants.  Columns always hold UTC wall
// clocks, which never repeat or skip an hour, so stored values compare in
// the same order as the instants they stand for.  The configured zone is
// only used to present instants to people (audit trail, logs).
type Zone struct {
	loc *time.Location
}

// LoadZone resolves an IANA zone name.  An empty name means DefaultTimeZone.
func LoadZone(name string) (*Zone, error) {
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

// Name returns the IANA name of the zone.
func (z *Zone) Name() string { return z.loc.String() }

// ToStore formats t as a UTC wall-clock string.
func (z *Zone) ToStore(t time.Time) string {
	return t.UTC().Format(storeLayout)
}

// FromStore reads the wall clock of a scanned column as UTC, whatever
// location the driver attached to it.
func (z *Zone) FromStore(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// Local renders t in the configured zone with its offset, so both
// occurrences of a repeated hour stay distinguishable.
func (z *Zone) Local(t time.Time) string {
	return t.In(z.loc).Format(time.RFC3339)
}
