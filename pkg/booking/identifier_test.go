package booking

import (
	"errors"
	"testing"
)

func TestFormatBookingID(test *testing.T) {
	test.Parallel()

	initials, err := NewInitials("zt")
	if err != nil {
		test.Fatalf("initials: %v", err)
	}
	testCases := []struct {
		sequence int64
		expected string
	}{
		{sequence: 1, expected: "ZT0001"},
		{sequence: 42, expected: "ZT0042"},
		{sequence: 9999, expected: "ZT9999"},
		{sequence: 10000, expected: "ZT10000"},
	}
	for _, testCase := range testCases {
		id := FormatBookingID(initials, testCase.sequence)
		if id.String() != testCase.expected {
			test.Fatalf("expected %s, got %s", testCase.expected, id)
		}
		parsed, err := NewBookingID(id.String())
		if err != nil {
			test.Fatalf("parse %s: %v", id, err)
		}
		sequence, err := parsed.Sequence(initials)
		if err != nil || sequence != testCase.sequence {
			test.Fatalf("expected sequence %d, got %d (%v)", testCase.sequence, sequence, err)
		}
	}
}

func TestIdentifierValidation(test *testing.T) {
	test.Parallel()

	for _, raw := range []string{"", "Z", "ZTX", "Z1"} {
		if _, err := NewInitials(raw); !errors.Is(err, ErrInvalidInitials) {
			test.Fatalf("expected ErrInvalidInitials for %q, got %v", raw, err)
		}
	}
	for _, raw := range []string{"", "ZT01", "0001", "ZT-0001"} {
		if _, err := NewBookingID(raw); !errors.Is(err, ErrInvalidBookingID) {
			test.Fatalf("expected ErrInvalidBookingID for %q, got %v", raw, err)
		}
	}
	other, _ := NewInitials("AB")
	id, _ := NewBookingID("ZT0003")
	if _, err := id.Sequence(other); !errors.Is(err, ErrInvalidBookingID) {
		test.Fatalf("expected foreign initials to fail, got %v", err)
	}
}
