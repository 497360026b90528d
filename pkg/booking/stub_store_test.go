package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/shopspring/decimal"
)

type stubState struct {
	sequences    map[string]int64
	transactions map[string]ledger.Transaction
	bookings     map[string]Booking
	claims       map[string]string
	orders       map[string]PaymentOrder
	settings     *Settings
}

func (state stubState) clone() stubState {
	cloned := stubState{
		sequences:    make(map[string]int64, len(state.sequences)),
		transactions: make(map[string]ledger.Transaction, len(state.transactions)),
		bookings:     make(map[string]Booking, len(state.bookings)),
		claims:       make(map[string]string, len(state.claims)),
		orders:       make(map[string]PaymentOrder, len(state.orders)),
	}
	for key, value := range state.sequences {
		cloned.sequences[key] = value
	}
	for key, value := range state.transactions {
		cloned.transactions[key] = value
	}
	for key, value := range state.bookings {
		cloned.bookings[key] = value
	}
	for key, value := range state.claims {
		cloned.claims[key] = value
	}
	for key, value := range state.orders {
		cloned.orders[key] = value
	}
	if state.settings != nil {
		settings := *state.settings
		cloned.settings = &settings
	}
	return cloned
}

// stubStore keeps everything in memory and restores its state when a
// transaction callback fails.
type stubStore struct {
	test *testing.T

	mutex sync.Mutex
	state stubState

	insertBookingError error
	claimSlotsError    error
	findPaymentMisses  int
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		test: test,
		state: stubState{
			sequences:    map[string]int64{},
			transactions: map[string]ledger.Transaction{},
			bookings:     map[string]Booking{},
			claims:       map[string]string{},
			orders:       map[string]PaymentOrder{},
		},
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	snapshot := store.state.clone()
	if err := fn(ctx, store); err != nil {
		store.state = snapshot
		return err
	}
	return nil
}

func (store *stubStore) NextSequence(ctx context.Context, name string, seed ledger.SequenceSeed) (int64, error) {
	current, exists := store.state.sequences[name]
	if !exists && seed != nil {
		seeded, err := seed(ctx)
		if err != nil {
			return 0, err
		}
		current = seeded
	}
	current++
	store.state.sequences[name] = current
	return current, nil
}

func (store *stubStore) EnsureSequenceAtLeast(_ context.Context, name string, floor int64) error {
	if store.state.sequences[name] < floor {
		store.state.sequences[name] = floor
	}
	return nil
}

func (store *stubStore) InsertTransaction(_ context.Context, transaction ledger.Transaction) error {
	if _, exists := store.state.transactions[transaction.ID.String()]; exists {
		return ledger.ErrDuplicateTransactionID
	}
	store.state.transactions[transaction.ID.String()] = transaction
	return nil
}

func (store *stubStore) LatestBookingID(_ context.Context, initials Initials) (BookingID, error) {
	var latest BookingID
	var latestSequence int64 = -1
	for _, booking := range store.state.bookings {
		sequence, err := booking.ID.Sequence(initials)
		if err != nil {
			continue
		}
		if sequence > latestSequence {
			latest = booking.ID
			latestSequence = sequence
		}
	}
	if latest.IsZero() {
		return BookingID{}, ErrBookingNotFound
	}
	return latest, nil
}

func (store *stubStore) InsertBooking(_ context.Context, booking Booking) error {
	if store.insertBookingError != nil {
		return store.insertBookingError
	}
	if _, exists := store.state.bookings[booking.ID.String()]; exists {
		return ErrDuplicateBookingID
	}
	if booking.Gateway != nil {
		for _, existing := range store.state.bookings {
			if existing.Gateway != nil && existing.Gateway.PaymentID == booking.Gateway.PaymentID {
				return ErrDuplicatePayment
			}
		}
	}
	store.state.bookings[booking.ID.String()] = booking
	return nil
}

func claimKey(date Date, hour SlotHour) string {
	return date.String() + "#" + hour.StartTime()
}

func (store *stubStore) ClaimSlots(_ context.Context, id BookingID, date Date, slots Range) error {
	if store.claimSlotsError != nil {
		return store.claimSlotsError
	}
	for _, hour := range slots.Hours() {
		if _, taken := store.state.claims[claimKey(date, hour)]; taken {
			return ErrSlotUnavailable
		}
		store.state.claims[claimKey(date, hour)] = id.String()
	}
	return nil
}

func (store *stubStore) ReleaseSlots(_ context.Context, id BookingID) error {
	for key, owner := range store.state.claims {
		if owner == id.String() {
			delete(store.state.claims, key)
		}
	}
	return nil
}

func (store *stubStore) GetBooking(_ context.Context, id BookingID) (Booking, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.lookup(id)
}

func (store *stubStore) LockBooking(_ context.Context, id BookingID) (Booking, error) {
	return store.lookup(id)
}

func (store *stubStore) lookup(id BookingID) (Booking, error) {
	booking, exists := store.state.bookings[id.String()]
	if !exists {
		return Booking{}, ErrBookingNotFound
	}
	return booking, nil
}

func (store *stubStore) FindBookingByPaymentID(_ context.Context, paymentID string) (Booking, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.findPaymentMisses > 0 {
		store.findPaymentMisses--
		return Booking{}, ErrBookingNotFound
	}
	for _, booking := range store.state.bookings {
		if booking.Gateway != nil && booking.Gateway.PaymentID == paymentID {
			return booking, nil
		}
	}
	return Booking{}, ErrBookingNotFound
}

func (store *stubStore) UpdateBooking(_ context.Context, booking Booking, expected BookingStatus) error {
	current, exists := store.state.bookings[booking.ID.String()]
	if !exists {
		return ErrBookingNotFound
	}
	if current.Status != expected {
		return ErrInvalidStatusTransition
	}
	store.state.bookings[booking.ID.String()] = booking
	return nil
}

func (store *stubStore) ListBookings(_ context.Context, filter BookingFilter) ([]Booking, int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	matched := make([]Booking, 0, len(store.state.bookings))
	for _, booking := range store.state.bookings {
		if filter.Status != "" && booking.Status != filter.Status {
			continue
		}
		if !filter.OnDate.IsZero() && booking.Date != filter.OnDate {
			continue
		}
		if !filter.FromDate.IsZero() && booking.Date.Before(filter.FromDate) {
			continue
		}
		if !filter.BeforeDate.IsZero() && !booking.Date.Before(filter.BeforeDate) {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			haystack := strings.ToLower(booking.ID.String() + " " + booking.Customer.Name + " " + booking.Customer.Contact)
			if !strings.Contains(haystack, needle) {
				continue
			}
		}
		matched = append(matched, booking)
	}
	sortNewestFirst(matched)
	total := int64(len(matched))
	start := filter.Page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (store *stubStore) ListActiveBookingsOn(_ context.Context, date Date) ([]Booking, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	active := make([]Booking, 0)
	for _, booking := range store.state.bookings {
		if booking.Date == date && booking.Status != BookingCancelled {
			active = append(active, booking)
		}
	}
	return active, nil
}

func (store *stubStore) RecentBookings(_ context.Context, limit int) ([]Booking, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	recent := make([]Booking, 0, len(store.state.bookings))
	for _, booking := range store.state.bookings {
		recent = append(recent, booking)
	}
	sortNewestFirst(recent)
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return recent, nil
}

func (store *stubStore) CountBookings(_ context.Context, from time.Time, to time.Time) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var count int64
	for _, booking := range store.state.bookings {
		if booking.Status != BookingCancelled && !booking.CreatedAt.Before(from) && booking.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (store *stubStore) GetSettings(context.Context) (Settings, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.state.settings == nil {
		return Settings{}, ErrSettingsNotFound
	}
	return *store.state.settings, nil
}

func (store *stubStore) SaveSettings(_ context.Context, settings Settings, expectedVersion int64) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	currentVersion := int64(0)
	if store.state.settings != nil {
		currentVersion = store.state.settings.Version
	}
	if currentVersion != expectedVersion {
		return ErrSettingsVersionConflict
	}
	store.state.settings = &settings
	return nil
}

func (store *stubStore) SaveOrder(_ context.Context, order PaymentOrder) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.state.orders[order.ID] = order
	return nil
}

func (store *stubStore) GetOrder(_ context.Context, orderID string) (PaymentOrder, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	order, exists := store.state.orders[orderID]
	if !exists {
		return PaymentOrder{}, ErrOrderNotFound
	}
	return order, nil
}

func (store *stubStore) transactionsOf(bookingID BookingID) []ledger.Transaction {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	related := make([]ledger.Transaction, 0)
	for _, transaction := range store.state.transactions {
		if transaction.RelatedBooking == bookingID.String() {
			related = append(related, transaction)
		}
	}
	sort.Slice(related, func(left, right int) bool {
		return related[left].ID.String() < related[right].ID.String()
	})
	return related
}

func (store *stubStore) transactionCount() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return len(store.state.transactions)
}

func (store *stubStore) claimCount() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return len(store.state.claims)
}

func sortNewestFirst(bookings []Booking) {
	sort.Slice(bookings, func(left, right int) bool {
		if bookings[left].CreatedAt.Equal(bookings[right].CreatedAt) {
			return bookings[left].ID.String() > bookings[right].ID.String()
		}
		return bookings[left].CreatedAt.After(bookings[right].CreatedAt)
	})
}

type recordingPublisher struct {
	mutex  sync.Mutex
	events []Event
	err    error
}

func (publisher *recordingPublisher) Publish(_ context.Context, event Event) error {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	publisher.events = append(publisher.events, event)
	return publisher.err
}

func (publisher *recordingPublisher) types() []EventType {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	types := make([]EventType, 0, len(publisher.events))
	for _, event := range publisher.events {
		types = append(types, event.Type)
	}
	return types
}

type stubClaimer struct {
	mutex    sync.Mutex
	held     map[string]bool
	err      error
	released []string
}

func newStubClaimer() *stubClaimer {
	return &stubClaimer{held: map[string]bool{}}
}

func (claimer *stubClaimer) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	claimer.mutex.Lock()
	defer claimer.mutex.Unlock()
	if claimer.err != nil {
		return false, claimer.err
	}
	if claimer.held[key] {
		return false, nil
	}
	claimer.held[key] = true
	return true, nil
}

func (claimer *stubClaimer) Release(_ context.Context, key string) error {
	claimer.mutex.Lock()
	defer claimer.mutex.Unlock()
	delete(claimer.held, key)
	claimer.released = append(claimer.released, key)
	return nil
}

type stubGateway struct {
	requests []OrderRequest
	err      error
}

func (gateway *stubGateway) CreateOrder(_ context.Context, request OrderRequest) (Order, error) {
	gateway.requests = append(gateway.requests, request)
	if gateway.err != nil {
		return Order{}, gateway.err
	}
	return Order{ID: fmt.Sprintf("order_test_%d", len(gateway.requests)), AmountPaise: request.AmountPaise, Currency: request.Currency, Receipt: request.Receipt, Status: "created"}, nil
}

const testSecret = "test-secret"

var (
	referenceNow   = time.Date(2025, time.March, 12, 15, 30, 0, 0, time.UTC)
	errStoreBroken = errors.New("store broken")
)

func fixedClock(instant time.Time) func() time.Time {
	return func() time.Time { return instant }
}

func mustDecimal(test *testing.T, raw string) decimal.Decimal {
	test.Helper()
	value, err := decimal.NewFromString(raw)
	if err != nil {
		test.Fatalf("decimal %q: %v", raw, err)
	}
	return value
}

func mustDate(test *testing.T, raw string) Date {
	test.Helper()
	date, err := ParseDate(raw)
	if err != nil {
		test.Fatalf("date %q: %v", raw, err)
	}
	return date
}

func mustVerifier(test *testing.T) *Verifier {
	test.Helper()
	verifier, err := NewVerifier(testSecret)
	if err != nil {
		test.Fatalf("verifier: %v", err)
	}
	return verifier
}

func testSettings(test *testing.T) Settings {
	test.Helper()
	initials, err := NewInitials("ZT")
	if err != nil {
		test.Fatalf("initials: %v", err)
	}
	fees, err := NewFeeSchedule(mustDecimal(test, "600"), mustDecimal(test, "100"), mustDecimal(test, "0.02"), mustDecimal(test, "0.18"))
	if err != nil {
		test.Fatalf("fees: %v", err)
	}
	hours, err := NewOperatingHours(6, 23)
	if err != nil {
		test.Fatalf("hours: %v", err)
	}
	return Settings{TurfName: "Zenith Turf", Initials: initials, Fees: fees, Hours: hours, GatewayVendor: "Razorpay"}
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, mustVerifier(test), fixedClock(referenceNow), options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	if _, err := service.EnsureSettings(context.Background(), testSettings(test)); err != nil {
		test.Fatalf("ensure settings: %v", err)
	}
	return service
}

// seedOrder records the order a gateway would have opened for date and slots
// at the default fee schedule.
func seedOrder(test *testing.T, store *stubStore, orderID string, date Date, slots Range, payFees bool) {
	test.Helper()
	amounts, err := testSettings(test).Fees.Calculate(slots.Duration)
	if err != nil {
		test.Fatalf("amounts: %v", err)
	}
	order := PaymentOrder{ID: orderID, Date: date, Range: slots, PayFees: payFees, AmountPaise: amounts.ChargePaise(payFees), CreatedAt: referenceNow}
	if err := store.SaveOrder(context.Background(), order); err != nil {
		test.Fatalf("save order: %v", err)
	}
}

func signedProof(test *testing.T, orderID string, paymentID string) PaymentProof {
	test.Helper()
	return PaymentProof{OrderID: orderID, PaymentID: paymentID, Signature: mustVerifier(test).Sign(orderID, paymentID)}
}
