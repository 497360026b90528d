package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/shopspring/decimal"
)

// Service contains the booking domain logic over a Store.
type Service struct {
	store     Store
	verifier  *Verifier
	nowFn     func() time.Time
	location  *time.Location
	claimer   PaymentClaimer
	claimTTL  time.Duration
	publisher EventPublisher
	gateway   OrderGateway
	logger    OperationLogger
}

// NewService wires a Service.
func NewService(store Store, verifier *Verifier, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if verifier == nil {
		return nil, fmt.Errorf("%w: payment verifier is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:    store,
		verifier: verifier,
		nowFn:    now,
		location: time.UTC,
		claimTTL: defaultClaimTTL,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// EnsureSettings persists defaults when no settings exist and returns the active settings.
func (service *Service) EnsureSettings(ctx context.Context, defaults Settings) (Settings, error) {
	current, err := service.store.GetSettings(ctx)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, ErrSettingsNotFound) {
		return Settings{}, err
	}
	if err := defaults.Validate(); err != nil {
		return Settings{}, err
	}
	defaults.Version = 1
	defaults.UpdatedAt = service.now()
	if err := service.store.SaveSettings(ctx, defaults, 0); err != nil {
		if errors.Is(err, ErrSettingsVersionConflict) {
			return service.store.GetSettings(ctx)
		}
		return Settings{}, err
	}
	return defaults, nil
}

// Settings returns the active settings.
func (service *Service) Settings(ctx context.Context) (Settings, error) {
	return service.store.GetSettings(ctx)
}

// UpdateSettings replaces the settings when expectedVersion is still current.
func (service *Service) UpdateSettings(ctx context.Context, update Settings, expectedVersion int64) (Settings, error) {
	operationError := update.Validate()
	if operationError == nil {
		update.Version = expectedVersion + 1
		update.UpdatedAt = service.now()
		operationError = service.store.SaveSettings(ctx, update, expectedVersion)
	}
	service.logOperation(ctx, OperationLog{Operation: operationUpdateConfig, Error: operationError})
	if operationError != nil {
		return Settings{}, operationError
	}
	return update, nil
}

// Quote prices durationHours with the active fee schedule.
func (service *Service) Quote(ctx context.Context, durationHours int) (Amounts, error) {
	settings, err := service.store.GetSettings(ctx)
	if err != nil {
		return Amounts{}, err
	}
	return settings.Fees.Calculate(durationHours)
}

// OccupiedSlots lists the booked ranges of non-cancelled bookings on date.
func (service *Service) OccupiedSlots(ctx context.Context, date Date) ([]OccupiedRange, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	bookings, err := service.store.ListActiveBookingsOn(ctx, date)
	if err != nil {
		return nil, err
	}
	occupied := make([]OccupiedRange, 0, len(bookings))
	for _, booking := range bookings {
		occupied = append(occupied, OccupiedRange{
			StartTime: booking.StartTime(),
			Duration:  booking.Range.Duration,
			Range:     booking.Range,
		})
	}
	return occupied, nil
}

// Availability reports every slot of date as available or not. Slots that
// have started or are booked are unavailable. The view is advisory.
func (service *Service) Availability(ctx context.Context, date Date) (Availability, error) {
	occupied, err := service.OccupiedSlots(ctx, date)
	if err != nil {
		return Availability{}, err
	}
	settings, err := service.store.GetSettings(ctx)
	if err != nil {
		return Availability{}, err
	}
	now := service.now()
	slots := make([]SlotAvailability, 0, settings.Hours.Close-settings.Hours.Open)
	for _, hour := range settings.Hours.Slots() {
		available := date.At(hour, service.location).After(now)
		for _, booked := range occupied {
			if booked.Range.Covers(hour) {
				available = false
				break
			}
		}
		slots = append(slots, SlotAvailability{ID: hour, StartTime: hour.StartTime(), Available: available})
	}
	return Availability{Date: date, Booked: occupied, Slots: slots}, nil
}

// OrderInput describes the slots a customer is about to pay for.
type OrderInput struct {
	Date     Date
	Start    SlotHour
	Duration int
	PayFees  bool
}

// CreateOrder prices the requested slots server-side and opens a gateway order
// for the charge amount.
func (service *Service) CreateOrder(ctx context.Context, input OrderInput) (Order, Amounts, error) {
	order, amounts, operationError := service.createOrder(ctx, input)
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateOrder,
		Date:      input.Date,
		Amount:    amounts.ChargeAmount(input.PayFees),
		Error:     operationError,
	})
	return order, amounts, operationError
}

func (service *Service) createOrder(ctx context.Context, input OrderInput) (Order, Amounts, error) {
	if service.gateway == nil {
		return Order{}, Amounts{}, fmt.Errorf("%w: no order gateway configured", ErrGatewayUnavailable)
	}
	settings, err := service.store.GetSettings(ctx)
	if err != nil {
		return Order{}, Amounts{}, err
	}
	slots, err := service.bookableRange(input.Date, input.Start, input.Duration, settings.Hours, false)
	if err != nil {
		return Order{}, Amounts{}, err
	}
	occupied, err := service.OccupiedSlots(ctx, input.Date)
	if err != nil {
		return Order{}, Amounts{}, err
	}
	for _, booked := range occupied {
		if booked.Range.Overlaps(slots) {
			return Order{}, Amounts{}, fmt.Errorf("%w: %s is already booked", ErrSlotUnavailable, booked.StartTime)
		}
	}
	amounts, err := settings.Fees.Calculate(slots.Duration)
	if err != nil {
		return Order{}, Amounts{}, err
	}
	order, err := service.gateway.CreateOrder(ctx, OrderRequest{
		AmountPaise: amounts.ChargePaise(input.PayFees),
		Currency:    "INR",
		Receipt:     "rcpt_" + strings.ReplaceAll(input.Date.String(), "-", "") + "_" + strconv.Itoa(int(slots.Start)) + "_" + strconv.FormatInt(service.now().Unix(), 10),
		Notes: map[string]string{
			"date":      input.Date.String(),
			"startTime": slots.Start.StartTime(),
			"duration":  strconv.Itoa(slots.Duration),
			"payFees":   strconv.FormatBool(input.PayFees),
		},
	})
	if err != nil {
		return Order{}, Amounts{}, err
	}
	err = service.store.SaveOrder(ctx, PaymentOrder{
		ID:          order.ID,
		Date:        input.Date,
		Range:       slots,
		PayFees:     input.PayFees,
		AmountPaise: order.AmountPaise,
		CreatedAt:   service.now(),
	})
	if err != nil {
		return Order{}, Amounts{}, err
	}
	return order, amounts, nil
}

// VerifyPayment checks a gateway payment signature without committing anything.
func (service *Service) VerifyPayment(proof PaymentProof) error {
	if err := service.verifier.Verify(proof); err != nil {
		return ledger.WrapError(errorOperationService, errorSubjectPayment, errorCodeSignature, err)
	}
	return nil
}

// GetBooking returns one booking.
func (service *Service) GetBooking(ctx context.Context, id BookingID) (Booking, error) {
	return service.store.GetBooking(ctx, id)
}

// ListBookings returns a filtered page of bookings, newest first.
func (service *Service) ListBookings(ctx context.Context, query BookingQuery) ([]Booking, ledger.Pagination, error) {
	filter := BookingFilter{Page: query.Page, Search: strings.TrimSpace(query.Search), Status: query.Status}
	today := DateOf(service.now())
	switch query.DateFilter {
	case DateFilterToday:
		filter.OnDate = today
	case DateFilterUpcoming:
		filter.FromDate = today
	case DateFilterPast:
		filter.BeforeDate = today
	case DateFilterOn:
		if query.Date.IsZero() {
			return nil, ledger.Pagination{}, fmt.Errorf("%w: date filter requires a date", ErrInvalidDate)
		}
		filter.OnDate = query.Date
	}
	bookings, total, err := service.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, ledger.Pagination{}, err
	}
	return bookings, ledger.NewPagination(query.Page, total), nil
}

// Schedule lists the non-cancelled bookings of date in slot order.
func (service *Service) Schedule(ctx context.Context, date Date) ([]Booking, error) {
	if date.IsZero() {
		date = DateOf(service.now())
	}
	bookings, err := service.store.ListActiveBookingsOn(ctx, date)
	if err != nil {
		return nil, err
	}
	sort.Slice(bookings, func(left, right int) bool {
		return bookings[left].Range.Start < bookings[right].Range.Start
	})
	return bookings, nil
}

// RecentBookings lists the most recently created bookings.
func (service *Service) RecentBookings(ctx context.Context, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	return service.store.RecentBookings(ctx, limit)
}

// BookingStats counts bookings created in period against the previous period.
func (service *Service) BookingStats(ctx context.Context, period ledger.Period) (BookingStats, error) {
	current, previous, err := period.Windows(service.now())
	if err != nil {
		return BookingStats{}, err
	}
	currentCount, err := service.store.CountBookings(ctx, current.Start, current.End)
	if err != nil {
		return BookingStats{}, err
	}
	previousCount, err := service.store.CountBookings(ctx, previous.Start, previous.End)
	if err != nil {
		return BookingStats{}, err
	}
	return BookingStats{
		Period:   period,
		Current:  currentCount,
		Previous: previousCount,
		Change:   ledger.ChangePercent(decimal.NewFromInt(currentCount), decimal.NewFromInt(previousCount)),
		Window:   current,
	}, nil
}

// bookableRange validates a requested run of slots. Walk-in bookings may take
// the slot that is currently in progress.
func (service *Service) bookableRange(date Date, start SlotHour, duration int, hours OperatingHours, allowCurrentSlot bool) (Range, error) {
	if date.IsZero() {
		return Range{}, fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	slots, err := NewRange(start, duration, hours)
	if err != nil {
		return Range{}, err
	}
	now := service.now()
	startsAt := date.At(slots.Start, service.location)
	if allowCurrentSlot {
		startsAt = startsAt.Add(time.Hour)
	}
	if !startsAt.After(now) {
		return Range{}, fmt.Errorf("%w: %s %s", ErrSlotInPast, date, slots.Start.StartTime())
	}
	return slots, nil
}

func (service *Service) now() time.Time {
	return service.nowFn().In(service.location)
}

func (service *Service) publish(ctx context.Context, event Event) {
	if service.publisher == nil {
		return
	}
	event.OccurredAt = service.now()
	if err := service.publisher.Publish(ctx, event); err != nil {
		service.logOperation(ctx, OperationLog{Operation: "publish_" + string(event.Type), PaymentID: event.PaymentID, Error: err})
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
