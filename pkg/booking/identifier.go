package booking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	initialsPattern  = regexp.MustCompile(`^[A-Z]{2}$`)
	bookingIDPattern = regexp.MustCompile(`^[A-Z]{2}\d{4,}$`)
)

// Initials is the two-letter prefix of every booking id.
type Initials struct {
	value string
}

// NewInitials validates booking id initials.
func NewInitials(raw string) (Initials, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if !initialsPattern.MatchString(normalized) {
		return Initials{}, fmt.Errorf("%w: %q must be two letters", ErrInvalidInitials, raw)
	}
	return Initials{value: normalized}, nil
}

// String returns the normalized initials.
func (initials Initials) String() string {
	return initials.value
}

// SequenceName is the counter backing ids with these initials.
func (initials Initials) SequenceName() string {
	return SequencePrefix + initials.value
}

// BookingID is a human-readable booking identifier such as ZT0007.
type BookingID struct {
	value string
}

// NewBookingID validates and normalizes a booking id.
func NewBookingID(raw string) (BookingID, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "" {
		return BookingID{}, fmt.Errorf("%w: empty value", ErrInvalidBookingID)
	}
	if !bookingIDPattern.MatchString(normalized) {
		return BookingID{}, fmt.Errorf("%w: %q", ErrInvalidBookingID, raw)
	}
	return BookingID{value: normalized}, nil
}

// FormatBookingID renders initials and a sequence number, zero-padded to four
// digits. Numbers past 9999 widen instead of wrapping.
func FormatBookingID(initials Initials, sequence int64) BookingID {
	return BookingID{value: fmt.Sprintf("%s%0*d", initials.value, bookingIDDigits, sequence)}
}

// String returns the normalized identifier.
func (id BookingID) String() string {
	return id.value
}

// IsZero reports whether the id is unset.
func (id BookingID) IsZero() bool {
	return id.value == ""
}

// Sequence extracts the numeric suffix of id when it carries initials.
func (id BookingID) Sequence(initials Initials) (int64, error) {
	suffix, found := strings.CutPrefix(id.value, initials.value)
	if !found || suffix == "" {
		return 0, fmt.Errorf("%w: %q does not start with %s", ErrInvalidBookingID, id.value, initials.value)
	}
	sequence, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q has a non-numeric suffix", ErrInvalidBookingID, id.value)
	}
	return sequence, nil
}
