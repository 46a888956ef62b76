package ir

import (
	"fmt"
	"time"
)

// PeriodLayout is the time layout of a period identifier.
const PeriodLayout = "2006-01-02"

// Clock supplies the current wall-clock time.
// Production code uses SystemClock; tests inject fixed clocks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// PeriodOf returns the period identifier (UTC calendar date) containing t.
func PeriodOf(t time.Time) string {
	return t.UTC().Format(PeriodLayout)
}

// ParsePeriod validates a period identifier and returns the start of the day.
func ParsePeriod(period string) (time.Time, error) {
	t, err := time.Parse(PeriodLayout, period)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period %q: expected YYYY-MM-DD", period)
	}
	return t, nil
}

// PreviousPeriod returns the period immediately before period.
func PreviousPeriod(period string) (string, error) {
	t, err := ParsePeriod(period)
	if err != nil {
		return "", err
	}
	return PeriodOf(t.AddDate(0, 0, -1)), nil
}
