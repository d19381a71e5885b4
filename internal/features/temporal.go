package features

import (
	"errors"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rotisserie/eris"
)

// ErrTimestamp marks a postTimestamp that could not be parsed.
var ErrTimestamp = errors.New("features: unrecognized timestamp")

// ParseTimestamp parses any date-time layout dateparse recognizes. Strings
// without a zone are read as UTC; strings with one keep their offset.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(ErrTimestamp, "parse %q: %v", s, err)
	}
	return t, nil
}

// HourOfDay returns the hour in [0,23].
func HourOfDay(t time.Time) int {
	return t.Hour()
}

// Weekday returns the day of week in [0,6] with Monday as 0.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
