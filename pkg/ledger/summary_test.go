package ledger

import (
	"testing"
	"time"
)

func TestChangePercent(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		current  string
		previous string
		want     int64
	}{
		{name: "flat at zero", current: "0", previous: "0", want: 0},
		{name: "growth from zero", current: "50", previous: "0", want: 100},
		{name: "loss from zero", current: "-30", previous: "0", want: 0},
		{name: "decline", current: "80", previous: "100", want: -20},
		{name: "growth", current: "150", previous: "100", want: 50},
		{name: "rounds half up", current: "1005", previous: "1000", want: 1},
		{name: "negative half rounds toward positive", current: "975", previous: "1000", want: -2},
		{name: "fractional", current: "1", previous: "3", want: -67},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			got := ChangePercent(mustAmount(test, testCase.current), mustAmount(test, testCase.previous))
			if got != testCase.want {
				test.Fatalf("expected %d, got %d", testCase.want, got)
			}
		})
	}
}

func TestPeriodWindows(test *testing.T) {
	test.Parallel()
	// Wednesday.
	now := time.Date(2025, time.March, 12, 15, 30, 0, 0, time.UTC)
	testCases := []struct {
		period        Period
		currentStart  time.Time
		currentEnd    time.Time
		previousStart time.Time
	}{
		{
			period:        PeriodDay,
			currentStart:  time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
			currentEnd:    time.Date(2025, time.March, 13, 0, 0, 0, 0, time.UTC),
			previousStart: time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			period:        PeriodWeek,
			currentStart:  time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC),
			currentEnd:    time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC),
			previousStart: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			period:        PeriodMonth,
			currentStart:  time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
			currentEnd:    time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
			previousStart: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			period:        PeriodYear,
			currentStart:  time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			currentEnd:    time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			previousStart: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.period.String(), func(test *testing.T) {
			test.Parallel()
			current, previous, err := testCase.period.Windows(now)
			if err != nil {
				test.Fatalf("windows: %v", err)
			}
			if !current.Start.Equal(testCase.currentStart) || !current.End.Equal(testCase.currentEnd) {
				test.Fatalf("unexpected current window %+v", current)
			}
			if !previous.Start.Equal(testCase.previousStart) || !previous.End.Equal(testCase.currentStart) {
				test.Fatalf("unexpected previous window %+v", previous)
			}
			if !current.Contains(now) || previous.Contains(now) {
				test.Fatalf("window containment mismatch for %s", testCase.period)
			}
		})
	}
}

func TestWeekWindowOnSunday(test *testing.T) {
	test.Parallel()
	sunday := time.Date(2025, time.March, 16, 23, 0, 0, 0, time.UTC)
	current, _, err := PeriodWeek.Windows(sunday)
	if err != nil {
		test.Fatalf("windows: %v", err)
	}
	if current.Start.Weekday() != time.Monday || current.Start.Day() != 10 {
		test.Fatalf("expected week starting Monday 10th, got %s", current.Start)
	}
}

func TestParsePeriod(test *testing.T) {
	test.Parallel()
	if period, err := ParsePeriod(""); err != nil || period != PeriodMonth {
		test.Fatalf("expected month default, got %q (%v)", period, err)
	}
	if period, err := ParsePeriod(" Week "); err != nil || period != PeriodWeek {
		test.Fatalf("expected week, got %q (%v)", period, err)
	}
	if _, err := ParsePeriod("decade"); err == nil {
		test.Fatalf("expected error for unknown period")
	}
}
