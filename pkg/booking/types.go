package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/shopspring/decimal"
)

const maxCustomerFieldLength = 120

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// ParseBookingStatus converts a raw string into a BookingStatus.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch BookingStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case BookingConfirmed:
		return BookingConfirmed, nil
	case BookingCancelled:
		return BookingCancelled, nil
	case BookingCompleted:
		return BookingCompleted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBookingStatus, raw)
	}
}

// CanTransitionTo reports whether an admin may move a booking to next.
// Completed and cancelled bookings are terminal.
func (status BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return status == BookingConfirmed && (next == BookingCompleted || next == BookingCancelled)
}

// String returns the raw value.
func (status BookingStatus) String() string {
	return string(status)
}

// PaymentStatus tracks how much of a booking has been paid.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// ParsePaymentStatus converts a raw string into a PaymentStatus.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch PaymentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case PaymentPending:
		return PaymentPending, nil
	case PaymentCompleted:
		return PaymentCompleted, nil
	case PaymentFailed:
		return PaymentFailed, nil
	case PaymentRefunded:
		return PaymentRefunded, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, raw)
	}
}

// String returns the raw value.
func (status PaymentStatus) String() string {
	return string(status)
}

// Customer is the person a booking is made for.
type Customer struct {
	Name    string
	Contact string
}

// NewCustomer trims and requires a name and a contact.
func NewCustomer(name string, contact string) (Customer, error) {
	customer := Customer{Name: strings.TrimSpace(name), Contact: strings.TrimSpace(contact)}
	if customer.Name == "" {
		return Customer{}, fmt.Errorf("%w: name is required", ErrInvalidCustomer)
	}
	if customer.Contact == "" {
		return Customer{}, fmt.Errorf("%w: contact is required", ErrInvalidCustomer)
	}
	if len(customer.Name) > maxCustomerFieldLength || len(customer.Contact) > maxCustomerFieldLength {
		return Customer{}, fmt.Errorf("%w: fields are limited to %d characters", ErrInvalidCustomer, maxCustomerFieldLength)
	}
	return customer, nil
}

// EntryKind labels a payment recorded against a booking.
type EntryKind string

const (
	EntryAdvance EntryKind = "advance"
	EntryBalance EntryKind = "balance"
)

// AmountEntry is one payment recorded against a booking.
type AmountEntry struct {
	TransactionID string
	Kind          EntryKind
	Amount        decimal.Decimal
	Method        ledger.PaymentMethod
	Reference     string
	Note          string
	RecordedAt    time.Time
}

// AmountDetails is the price of a booking and the payments made against it.
// Total equals Advance plus Remaining; Discount reduces what is collected at the venue.
type AmountDetails struct {
	Total     decimal.Decimal
	Advance   decimal.Decimal
	Remaining decimal.Decimal
	Discount  decimal.Decimal
	Entries   []AmountEntry
}

// Paid sums every recorded payment.
func (details AmountDetails) Paid() decimal.Decimal {
	paid := decimal.Zero
	for _, entry := range details.Entries {
		paid = paid.Add(entry.Amount)
	}
	return paid
}

// Due is what is still to be collected after the discount.
func (details AmountDetails) Due() decimal.Decimal {
	due := details.Total.Sub(details.Discount).Sub(details.Paid())
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// GatewayPayment records the gateway transaction that paid a booking's advance.
type GatewayPayment struct {
	PayFeesFlag bool
	OrderID     string
	PaymentID   string
	Signature   string
	Fee         decimal.Decimal
}

// Booking is a confirmed reservation of consecutive slots on one date.
type Booking struct {
	ID            BookingID
	Date          Date
	Range         Range
	Customer      Customer
	Amount        AmountDetails
	PaymentStatus PaymentStatus
	Status        BookingStatus
	Gateway       *GatewayPayment
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StartTime is the display token of the first slot.
func (booking Booking) StartTime() string {
	return booking.Range.Start.StartTime()
}

// OccupiedRange is a booked run of slots as shown to the public.
type OccupiedRange struct {
	StartTime string
	Duration  int
	Range     Range
}

// SlotAvailability describes one slot of a day.
type SlotAvailability struct {
	ID        SlotHour
	StartTime string
	Available bool
}

// Availability is the advisory view of a date. Commit remains authoritative.
type Availability struct {
	Date   Date
	Booked []OccupiedRange
	Slots  []SlotAvailability
}

// Settings is the versioned configuration of the turf.
type Settings struct {
	TurfName      string
	Initials      Initials
	Fees          FeeSchedule
	Hours         OperatingHours
	GatewayVendor string
	Version       int64
	UpdatedAt     time.Time
}

// Validate checks every field of the settings.
func (settings Settings) Validate() error {
	if strings.TrimSpace(settings.TurfName) == "" {
		return fmt.Errorf("%w: turf name is required", ErrInvalidSettings)
	}
	if _, err := NewInitials(settings.Initials.String()); err != nil {
		return err
	}
	if _, err := NewFeeSchedule(settings.Fees.HourlyRate, settings.Fees.BookingFeePerHour, settings.Fees.GatewayFeeRate, settings.Fees.GSTRate); err != nil {
		return err
	}
	if _, err := NewOperatingHours(settings.Hours.Open, settings.Hours.Close); err != nil {
		return err
	}
	return nil
}

// DateFilter selects bookings relative to today.
type DateFilter string

const (
	DateFilterAll      DateFilter = ""
	DateFilterToday    DateFilter = "today"
	DateFilterUpcoming DateFilter = "upcoming"
	DateFilterPast     DateFilter = "past"
	DateFilterOn       DateFilter = "date"
)

// ParseDateFilter converts a raw string into a DateFilter.
func ParseDateFilter(raw string) (DateFilter, error) {
	switch DateFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case DateFilterAll, "all":
		return DateFilterAll, nil
	case DateFilterToday:
		return DateFilterToday, nil
	case DateFilterUpcoming:
		return DateFilterUpcoming, nil
	case DateFilterPast:
		return DateFilterPast, nil
	case DateFilterOn:
		return DateFilterOn, nil
	default:
		return "", fmt.Errorf("%w: unknown date filter %q", ErrInvalidDate, raw)
	}
}

// BookingQuery is the caller-facing listing request.
type BookingQuery struct {
	Page       ledger.Page
	Search     string
	Status     BookingStatus
	DateFilter DateFilter
	Date       Date
}

// BookingFilter is the resolved listing request handed to the store.
// Zero values match everything; FromDate is inclusive and BeforeDate exclusive.
type BookingFilter struct {
	Page       ledger.Page
	Search     string
	Status     BookingStatus
	OnDate     Date
	FromDate   Date
	BeforeDate Date
}

// BookingStats counts bookings made in a period against the previous one.
type BookingStats struct {
	Period   ledger.Period
	Current  int64
	Previous int64
	Change   int64
	Window   ledger.Window
}

// Store is the persistence contract used by Service.
type Store interface {
	ledger.TransactionWriter
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	EnsureSequenceAtLeast(ctx context.Context, name string, floor int64) error
	LatestBookingID(ctx context.Context, initials Initials) (BookingID, error)
	InsertBooking(ctx context.Context, booking Booking) error
	ClaimSlots(ctx context.Context, id BookingID, date Date, slots Range) error
	ReleaseSlots(ctx context.Context, id BookingID) error
	GetBooking(ctx context.Context, id BookingID) (Booking, error)
	LockBooking(ctx context.Context, id BookingID) (Booking, error)
	FindBookingByPaymentID(ctx context.Context, paymentID string) (Booking, error)
	UpdateBooking(ctx context.Context, booking Booking, expected BookingStatus) error
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, int64, error)
	ListActiveBookingsOn(ctx context.Context, date Date) ([]Booking, error)
	RecentBookings(ctx context.Context, limit int) ([]Booking, error)
	CountBookings(ctx context.Context, from time.Time, to time.Time) (int64, error)
	GetSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, settings Settings, expectedVersion int64) error
	SaveOrder(ctx context.Context, order PaymentOrder) error
	GetOrder(ctx context.Context, orderID string) (PaymentOrder, error)
}

// PaymentClaimer serializes concurrent commits of the same gateway payment.
type PaymentClaimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventType names a booking lifecycle event.
type EventType string

const (
	EventBookingConfirmed    EventType = "booking.confirmed"
	EventBookingCancelled    EventType = "booking.cancelled"
	EventBookingCompleted    EventType = "booking.completed"
	EventBookingCommitFailed EventType = "booking.commit_failed"
)

// Event is a booking lifecycle notification.
type Event struct {
	Type       EventType
	BookingID  string
	OrderID    string
	PaymentID  string
	Date       string
	StartTime  string
	Duration   int
	Amount     decimal.Decimal
	Reason     string
	OccurredAt time.Time
}

// EventPublisher delivers booking events to interested parties.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// OrderRequest asks the gateway to open an order.
type OrderRequest struct {
	AmountPaise int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Order is a gateway order awaiting payment.
type Order struct {
	ID          string
	AmountPaise int64
	Currency    string
	Receipt     string
	Status      string
}

// PaymentOrder records the slots and charge a gateway order was opened for.
// A gateway commit must match it exactly.
type PaymentOrder struct {
	ID          string
	Date        Date
	Range       Range
	PayFees     bool
	AmountPaise int64
	CreatedAt   time.Time
}

// Covers checks that the order was opened for date, slots, payFees and chargePaise.
func (order PaymentOrder) Covers(date Date, slots Range, payFees bool, chargePaise int64) error {
	switch {
	case order.Date.String() != date.String():
		return fmt.Errorf("%w: order %s is for %s, not %s", ErrOrderMismatch, order.ID, order.Date, date)
	case order.Range != slots:
		return fmt.Errorf("%w: order %s is for %s x %dh, not %s x %dh", ErrOrderMismatch, order.ID,
			order.Range.Start.StartTime(), order.Range.Duration, slots.Start.StartTime(), slots.Duration)
	case order.PayFees != payFees:
		return fmt.Errorf("%w: order %s has payFees=%t", ErrOrderMismatch, order.ID, order.PayFees)
	case order.AmountPaise != chargePaise:
		return fmt.Errorf("%w: order %s charged %d paise, booking costs %d", ErrOrderMismatch, order.ID, order.AmountPaise, chargePaise)
	}
	return nil
}

// OrderGateway opens orders with the payment gateway.
type OrderGateway interface {
	CreateOrder(ctx context.Context, request OrderRequest) (Order, error)
}
