package timeutil

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/dispatch/pkg/logger"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
	// LocalDateTimeLayout is the wire format for naive local datetimes.
	LocalDateTimeLayout = "2006-01-02T15:04:05"

	roundingBucket = 5 * time.Minute
)

// LoadZone resolves an IANA zone name. Unknown zones fall back to UTC,
// which matches the contract of treating unparseable local input as UTC.
func LoadZone(ctx context.Context, name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.FromContext(ctx).Warn("Unknown timezone, falling back to UTC", "timezone", name)
		return time.UTC
	}
	return loc
}

// RoundTo5Min rounds t to the nearest 5-minute increment, half-up: the
// midpoint (2m30s into the bucket) and anything later rounds forward.
// Rollover past :60 carries into the hour and, at midnight, the date.
func RoundTo5Min(t time.Time) time.Time {
	floor := t.Truncate(roundingBucket)
	if t.Sub(floor) >= roundingBucket/2 {
		return floor.Add(roundingBucket)
	}
	return floor
}

// SameDayLocal reports whether a and b fall on the same calendar date
// when rendered in loc.
func SameDayLocal(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate parses a YYYY-MM-DD calendar date. The result carries the
// date at UTC midnight and must not be interpreted as an instant.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return d, nil
}

// ParseLocalDateTime parses a naive ISO datetime in the given zone.
func ParseLocalDateTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(LocalDateTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid local datetime %q: %w", s, err)
	}
	return t, nil
}

// Combine attaches a time-of-day (minutes since local midnight) to a
// calendar date in loc and returns the instant in UTC.
func Combine(date time.Time, clockMin int, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, clockMin/60, clockMin%60, 0, 0, loc).UTC()
}

// LocalDate returns the calendar date of t in loc, at UTC midnight, so
// it compares cleanly against ParseDate results.
func LocalDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MinutesOfDay returns the minutes elapsed since local midnight for t in loc.
func MinutesOfDay(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}
