package booking

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar day with no time-of-day component.
type Date struct {
	value time.Time
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (Date, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Date{}, fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	parsed, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDate, raw)
	}
	return Date{value: parsed}, nil
}

// DateOf returns the calendar day of instant in its own location.
func DateOf(instant time.Time) Date {
	year, month, day := instant.Date()
	return Date{value: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// String renders the date as YYYY-MM-DD.
func (date Date) String() string {
	return date.value.Format(dateLayout)
}

// IsZero reports whether the date is unset.
func (date Date) IsZero() bool {
	return date.value.IsZero()
}

// Before reports whether date is strictly earlier than other.
func (date Date) Before(other Date) bool {
	return date.value.Before(other.value)
}

// At returns the instant hour o'clock on date in location.
func (date Date) At(hour SlotHour, location *time.Location) time.Time {
	year, month, day := date.value.Date()
	return time.Date(year, month, day, int(hour), 0, 0, 0, location)
}

// SlotHour identifies a one-hour slot by its starting hour of day (0-23).
type SlotHour int

// ParseStartTime parses a display token such as "5:00 PM" or "17:00" into a slot hour.
func ParseStartTime(raw string) (SlotHour, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return 0, fmt.Errorf("%w: start time is required", ErrInvalidStartTime)
	}
	parsed, err := time.Parse(startTimeLayout, trimmed)
	if err != nil {
		parsed, err = time.Parse("15:04", trimmed)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStartTime, raw)
	}
	if parsed.Minute() != 0 {
		return 0, fmt.Errorf("%w: %q is not on the hour", ErrInvalidStartTime, raw)
	}
	return SlotHour(parsed.Hour()), nil
}

// StartTime renders the slot as a display token such as "5:00 PM".
func (hour SlotHour) StartTime() string {
	return time.Date(2000, time.January, 1, int(hour), 0, 0, 0, time.UTC).Format(startTimeLayout)
}

// OperatingHours bounds bookable slots to [Open, Close).
type OperatingHours struct {
	Open  int
	Close int
}

// NewOperatingHours validates opening and closing hours. Close may be 24 for midnight.
func NewOperatingHours(open int, close int) (OperatingHours, error) {
	if open < 0 || open > 23 {
		return OperatingHours{}, fmt.Errorf("%w: open hour %d", ErrInvalidOperatingHours, open)
	}
	if close <= open || close > 24 {
		return OperatingHours{}, fmt.Errorf("%w: close hour %d", ErrInvalidOperatingHours, close)
	}
	return OperatingHours{Open: open, Close: close}, nil
}

// Slots lists every bookable slot in order.
func (hours OperatingHours) Slots() []SlotHour {
	slots := make([]SlotHour, 0, hours.Close-hours.Open)
	for hour := hours.Open; hour < hours.Close; hour++ {
		slots = append(slots, SlotHour(hour))
	}
	return slots
}

// Range is a contiguous run of slots [Start, Start+Duration).
type Range struct {
	Start    SlotHour
	Duration int
}

// NewRange validates a run of slots against operating hours.
func NewRange(start SlotHour, duration int, hours OperatingHours) (Range, error) {
	if duration < 1 {
		return Range{}, fmt.Errorf("%w: must be at least one hour", ErrInvalidDuration)
	}
	if int(start) < hours.Open || int(start)+duration > hours.Close {
		return Range{}, fmt.Errorf("%w: %s for %dh outside %02d:00-%02d:00", ErrSlotOutsideHours, start.StartTime(), duration, hours.Open, hours.Close)
	}
	return Range{Start: start, Duration: duration}, nil
}

// End returns the first hour after the range.
func (slotRange Range) End() SlotHour {
	return slotRange.Start + SlotHour(slotRange.Duration)
}

// Hours lists each slot covered by the range.
func (slotRange Range) Hours() []SlotHour {
	hours := make([]SlotHour, 0, slotRange.Duration)
	for hour := slotRange.Start; hour < slotRange.End(); hour++ {
		hours = append(hours, hour)
	}
	return hours
}

// Overlaps reports whether two ranges share at least one slot.
func (slotRange Range) Overlaps(other Range) bool {
	return slotRange.Start < other.End() && other.Start < slotRange.End()
}

// Covers reports whether hour lies inside the range.
func (slotRange Range) Covers(hour SlotHour) bool {
	return hour >= slotRange.Start && hour < slotRange.End()
}
