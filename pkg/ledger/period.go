package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Period is a calendar-aligned reporting window size.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod converts a raw string into a Period. Empty input selects month.
func ParsePeriod(raw string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PeriodMonth:
		return PeriodMonth, nil
	case PeriodDay:
		return PeriodDay, nil
	case PeriodWeek:
		return PeriodWeek, nil
	case PeriodYear:
		return PeriodYear, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
}

// String returns the raw value.
func (period Period) String() string {
	return string(period)
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether instant falls inside the window.
func (window Window) Contains(instant time.Time) bool {
	return !instant.Before(window.Start) && instant.Before(window.End)
}

// Windows returns the window containing now and the one immediately before it,
// aligned to calendar boundaries in now's location. Weeks start on Monday.
func (period Period) Windows(now time.Time) (Window, Window, error) {
	year, month, day := now.Date()
	location := now.Location()
	var currentStart, currentEnd, previousStart time.Time
	switch period {
	case PeriodDay:
		currentStart = time.Date(year, month, day, 0, 0, 0, 0, location)
		currentEnd = currentStart.AddDate(0, 0, 1)
		previousStart = currentStart.AddDate(0, 0, -1)
	case PeriodWeek:
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		currentStart = time.Date(year, month, day-daysSinceMonday, 0, 0, 0, 0, location)
		currentEnd = currentStart.AddDate(0, 0, 7)
		previousStart = currentStart.AddDate(0, 0, -7)
	case PeriodMonth:
		currentStart = time.Date(year, month, 1, 0, 0, 0, 0, location)
		currentEnd = currentStart.AddDate(0, 1, 0)
		previousStart = currentStart.AddDate(0, -1, 0)
	case PeriodYear:
		currentStart = time.Date(year, time.January, 1, 0, 0, 0, 0, location)
		currentEnd = currentStart.AddDate(1, 0, 0)
		previousStart = currentStart.AddDate(-1, 0, 0)
	default:
		return Window{}, Window{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	return Window{Start: currentStart, End: currentEnd}, Window{Start: previousStart, End: currentStart}, nil
}
