// Package localtime converts between the single civil time zone users speak in
// and the UTC instants the store works with.
package localtime

import (
	"fmt"
	"time"
)

// DayLayout is the day-string format exchanged with the model.
const DayLayout = "2006-01-02"

// DisplayLayout is the date format shown to users.
const DisplayLayout = "Jan 2, 2006"

// endOfDayOffset is 23:59:59.999 after midnight; storage keeps millisecond precision.
const endOfDayOffset = 24*time.Hour - time.Millisecond

// Zone is a fixed civil time zone.
type Zone struct {
	loc *time.Location
}

// NewZone loads the IANA zone by name.
func NewZone(name string) (*Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

// FromLocation wraps an already loaded location.
func FromLocation(loc *time.Location) *Zone {
	return &Zone{loc: loc}
}

// Location returns the underlying location.
func (z *Zone) Location() *time.Location {
	return z.loc
}

// Now returns the current instant expressed in the zone.
func (z *Zone) Now() time.Time {
	return time.Now().In(z.loc)
}

// In expresses t in the zone.
func (z *Zone) In(t time.Time) time.Time {
	return t.In(z.loc)
}

// StartOfDay returns local midnight of the day containing t, as a UTC instant.
func (z *Zone) StartOfDay(t time.Time) time.Time {
	l := t.In(z.loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, z.loc).UTC()
}

// EndOfDay returns local 23:59:59.999 of the day containing t, as a UTC instant.
func (z *Zone) EndOfDay(t time.Time) time.Time {
	l := t.In(z.loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, z.loc).Add(endOfDayOffset).UTC()
}

// ParseDay parses a YYYY-MM-DD string as local midnight of that calendar day.
func (z *Zone) ParseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DayLayout, s, z.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return d, nil
}

// DayRange converts two day strings into the inclusive UTC range from local
// midnight of start to local end of day of end.
func (z *Zone) DayRange(start, end string) (time.Time, time.Time, error) {
	s, err := z.ParseDay(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := z.ParseDay(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return z.StartOfDay(s), z.EndOfDay(e), nil
}

// MonthBounds returns the first and last instant of a local calendar month, in UTC.
func (z *Zone) MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, z.loc)
	next := time.Date(year, month+1, 1, 0, 0, 0, 0, z.loc)
	return first.UTC(), next.Add(-time.Millisecond).UTC()
}

// SameDay reports whether a and b fall on the same local calendar day.
func (z *Zone) SameDay(a, b time.Time) bool {
	la, lb := a.In(z.loc), b.In(z.loc)
	return la.Year() == lb.Year() && la.YearDay() == lb.YearDay()
}

// FormatDate renders t as a local date such as "Oct 3, 2026".
func (z *Zone) FormatDate(t time.Time) string {
	return t.In(z.loc).Format(DisplayLayout)
}
