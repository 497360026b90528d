package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
)

func gatewayRequest(test *testing.T, store *stubStore, date string, start SlotHour, duration int, paymentID string, payFees bool) GatewayBookingRequest {
	test.Helper()
	orderID := "order_" + paymentID
	seedOrder(test, store, orderID, mustDate(test, date), Range{Start: start, Duration: duration}, payFees)
	return GatewayBookingRequest{
		Date:     mustDate(test, date),
		Start:    start,
		Duration: duration,
		Customer: Customer{Name: "Asha", Contact: "9876543210"},
		PayFees:  payFees,
		Proof:    signedProof(test, orderID, paymentID),
	}
}

func TestCommitGatewayBookingPersistsBookingAndLedger(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	publisher := &recordingPublisher{}
	service := mustNewService(test, store, WithEventPublisher(publisher))

	result, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 17, 2, "pay_1", false))
	if err != nil {
		test.Fatalf("commit: %v", err)
	}
	booking := result.Booking
	if result.Replayed {
		test.Fatalf("expected a fresh commit")
	}
	if booking.ID.String() != "ZT0001" {
		test.Fatalf("expected ZT0001, got %s", booking.ID)
	}
	if booking.Status != BookingConfirmed || booking.PaymentStatus != PaymentPending {
		test.Fatalf("expected confirmed/pending, got %s/%s", booking.Status, booking.PaymentStatus)
	}
	if !booking.Amount.Total.Equal(mustDecimal(test, "1200")) || !booking.Amount.Advance.Equal(mustDecimal(test, "200")) {
		test.Fatalf("expected 1200/200, got %s/%s", booking.Amount.Total, booking.Amount.Advance)
	}
	if !booking.Amount.Due().Equal(mustDecimal(test, "1000")) {
		test.Fatalf("expected 1000 due, got %s", booking.Amount.Due())
	}
	if store.claimCount() != 2 {
		test.Fatalf("expected 2 claimed slots, got %d", store.claimCount())
	}

	transactions := store.transactionsOf(booking.ID)
	if len(transactions) != 2 {
		test.Fatalf("expected advance and gateway fee transactions, got %d", len(transactions))
	}
	advance, fee := transactions[0], transactions[1]
	if advance.Type != ledger.TransactionIncome || advance.Category != ledger.CategoryBooking || advance.Status != ledger.StatusPaid {
		test.Fatalf("unexpected advance transaction %+v", advance)
	}
	if advance.GatewayDetails == nil || advance.GatewayDetails.PaymentID != "pay_1" || advance.GatewayDetails.FeePaidBy != ledger.FeePaidByTurf {
		test.Fatalf("expected gateway details on advance, got %+v", advance.GatewayDetails)
	}
	if fee.Type != ledger.TransactionExpense || fee.Category != ledger.CategoryGatewayFee || !fee.Amount.Equal(mustDecimal(test, "4.72")) {
		test.Fatalf("unexpected fee transaction %+v", fee)
	}
	if booking.Amount.Entries[0].TransactionID != advance.ID.String() {
		test.Fatalf("expected advance entry to reference %s, got %s", advance.ID, booking.Amount.Entries[0].TransactionID)
	}
	if types := publisher.types(); len(types) != 1 || types[0] != EventBookingConfirmed {
		test.Fatalf("expected one confirmed event, got %v", types)
	}
}

func TestCommitGatewayBookingCustomerPaysFees(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	service := mustNewService(test, store)
	result, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 8, 1, "pay_fee", true))
	if err != nil {
		test.Fatalf("commit: %v", err)
	}
	transactions := store.transactionsOf(result.Booking.ID)
	if len(transactions) != 1 {
		test.Fatalf("expected only the advance when the customer pays fees, got %d", len(transactions))
	}
	if transactions[0].GatewayDetails.FeePaidBy != ledger.FeePaidByCustomer {
		test.Fatalf("expected fee paid by customer, got %s", transactions[0].GatewayDetails.FeePaidBy)
	}
}

func TestCommitGatewayBookingIDsAreSequential(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	service := mustNewService(test, store)
	for index := 1; index <= 3; index++ {
		result, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-14", SlotHour(6+index), 1, fmt.Sprintf("pay_%d", index), false))
		if err != nil {
			test.Fatalf("commit %d: %v", index, err)
		}
		expected := fmt.Sprintf("ZT%04d", index)
		if result.Booking.ID.String() != expected {
			test.Fatalf("expected %s, got %s", expected, result.Booking.ID)
		}
	}
}

func TestCommitGatewayBookingReplaysKnownPayment(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	publisher := &recordingPublisher{}
	service := mustNewService(test, store, WithEventPublisher(publisher))
	request := gatewayRequest(test, store, "2025-03-13", 10, 1, "pay_replay", false)

	first, err := service.CommitGatewayBooking(context.Background(), request)
	if err != nil {
		test.Fatalf("first commit: %v", err)
	}
	transactionsBefore := store.transactionCount()
	second, err := service.CommitGatewayBooking(context.Background(), request)
	if err != nil {
		test.Fatalf("replayed commit: %v", err)
	}
	if !second.Replayed || second.Booking.ID != first.Booking.ID {
		test.Fatalf("expected replay of %s, got %+v", first.Booking.ID, second)
	}
	if store.transactionCount() != transactionsBefore {
		test.Fatalf("expected replay to write nothing")
	}
	if len(publisher.types()) != 1 {
		test.Fatalf("expected replay to publish nothing, got %v", publisher.types())
	}
}

func TestCommitGatewayBookingReplaysOnDuplicatePaymentRace(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	service := mustNewService(test, store)
	request := gatewayRequest(test, store, "2025-03-13", 10, 1, "pay_race", false)
	first, err := service.CommitGatewayBooking(context.Background(), request)
	if err != nil {
		test.Fatalf("first commit: %v", err)
	}

	store.findPaymentMisses = 1
	request.Start = 12
	second, err := service.CommitGatewayBooking(context.Background(), request)
	if err != nil {
		test.Fatalf("second commit: %v", err)
	}
	if !second.Replayed || second.Booking.ID != first.Booking.ID {
		test.Fatalf("expected the stored booking to be returned, got %+v", second)
	}
	if store.claimCount() != 1 {
		test.Fatalf("expected the losing commit to roll back its claims, got %d", store.claimCount())
	}
}

func TestCommitGatewayBookingRejections(test *testing.T) {
	test.Parallel()

	testCases := []struct {
		name    string
		mutate  func(request *GatewayBookingRequest)
		prepare func(store *stubStore, service *Service)
		err     error
	}{
		{
			name:   "bad signature",
			mutate: func(request *GatewayBookingRequest) { request.Proof.Signature = "deadbeef" },
			err:    ErrPaymentVerificationFailed,
		},
		{
			name:   "missing proof",
			mutate: func(request *GatewayBookingRequest) { request.Proof.OrderID = "" },
			err:    ErrInvalidPaymentProof,
		},
		{
			name:   "slot in the past",
			mutate: func(request *GatewayBookingRequest) { request.Date = mustDate(test, "2025-03-12"); request.Start = 15 },
			err:    ErrSlotInPast,
		},
		{
			name:   "outside hours",
			mutate: func(request *GatewayBookingRequest) { request.Start = 22; request.Duration = 2 },
			err:    ErrSlotOutsideHours,
		},
		{
			name:   "missing customer",
			mutate: func(request *GatewayBookingRequest) { request.Customer.Contact = " " },
			err:    ErrInvalidCustomer,
		},
		{
			name: "overlapping booking",
			prepare: func(store *stubStore, service *Service) {
				if _, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 18, 2, "pay_other", false)); err != nil {
					test.Fatalf("seed booking: %v", err)
				}
			},
			err: ErrSlotUnavailable,
		},
		{
			name:    "store failure",
			prepare: func(store *stubStore, _ *Service) { store.insertBookingError = errStoreBroken },
			err:     errStoreBroken,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			service := mustNewService(test, store)
			if testCase.prepare != nil {
				testCase.prepare(store, service)
			}
			claimsBefore := store.claimCount()
			transactionsBefore := store.transactionCount()
			request := gatewayRequest(test, store, "2025-03-13", 17, 2, "pay_1", false)
			if testCase.mutate != nil {
				testCase.mutate(&request)
			}
			_, err := service.CommitGatewayBooking(context.Background(), request)
			if !errors.Is(err, testCase.err) {
				test.Fatalf("expected %v, got %v", testCase.err, err)
			}
			if store.claimCount() != claimsBefore || store.transactionCount() != transactionsBefore {
				test.Fatalf("expected a failed commit to leave no partial state")
			}
		})
	}
}

func TestCommitGatewayBookingPublishesCommitFailure(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	publisher := &recordingPublisher{}
	service := mustNewService(test, store, WithEventPublisher(publisher))
	store.claimSlotsError = errStoreBroken

	_, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 17, 1, "pay_lost", false))
	if !errors.Is(err, errStoreBroken) {
		test.Fatalf("expected store failure, got %v", err)
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != EventBookingCommitFailed || publisher.events[0].PaymentID != "pay_lost" {
		test.Fatalf("expected a commit_failed event for pay_lost, got %+v", publisher.events)
	}

	_, err = service.CommitGatewayBooking(context.Background(), GatewayBookingRequest{
		Date:     mustDate(test, "2025-03-13"),
		Start:    17,
		Duration: 1,
		Customer: Customer{Name: "Asha", Contact: "1"},
		Proof:    PaymentProof{OrderID: "order_x", PaymentID: "pay_x", Signature: "bad"},
	})
	if !errors.Is(err, ErrPaymentVerificationFailed) {
		test.Fatalf("expected verification failure, got %v", err)
	}
	if len(publisher.events) != 1 {
		test.Fatalf("expected unverified payments to publish nothing, got %d events", len(publisher.events))
	}
}

func TestCommitGatewayBookingRespectsPaymentClaim(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	claimer := newStubClaimer()
	service := mustNewService(test, store, WithPaymentClaimer(claimer, 0))
	claimer.held["payment:pay_busy"] = true

	_, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 17, 1, "pay_busy", false))
	if !errors.Is(err, ErrPaymentInProgress) {
		test.Fatalf("expected ErrPaymentInProgress, got %v", err)
	}

	if _, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 17, 1, "pay_free", false)); err != nil {
		test.Fatalf("commit: %v", err)
	}
	if claimer.held["payment:pay_free"] {
		test.Fatalf("expected claim to be released after commit")
	}

	claimer.err = errStoreBroken
	if _, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 19, 1, "pay_down", false)); !errors.Is(err, errStoreBroken) {
		test.Fatalf("expected claimer failure to stop the commit, got %v", err)
	}
}

func TestCommitGatewayBookingMustMatchPaidOrder(test *testing.T) {
	test.Parallel()

	testCases := []struct {
		name    string
		mutate  func(request *GatewayBookingRequest)
		prepare func(service *Service)
		err     error
	}{
		{
			name:   "longer stay with fees claimed",
			mutate: func(request *GatewayBookingRequest) { request.Duration = 5; request.PayFees = true },
			err:    ErrOrderMismatch,
		},
		{
			name:   "longer stay",
			mutate: func(request *GatewayBookingRequest) { request.Duration = 2 },
			err:    ErrOrderMismatch,
		},
		{
			name:   "later start",
			mutate: func(request *GatewayBookingRequest) { request.Start = 18 },
			err:    ErrOrderMismatch,
		},
		{
			name:   "other date",
			mutate: func(request *GatewayBookingRequest) { request.Date = mustDate(test, "2025-03-14") },
			err:    ErrOrderMismatch,
		},
		{
			name:   "fees claimed",
			mutate: func(request *GatewayBookingRequest) { request.PayFees = true },
			err:    ErrOrderMismatch,
		},
		{
			name:   "unknown order",
			mutate: func(request *GatewayBookingRequest) { request.Proof = signedProof(test, "order_unknown", "pay_unknown") },
			err:    ErrOrderNotFound,
		},
		{
			name: "fees changed after the order",
			prepare: func(service *Service) {
				current, err := service.Settings(context.Background())
				if err != nil {
					test.Fatalf("settings: %v", err)
				}
				current.Fees, err = NewFeeSchedule(mustDecimal(test, "700"), mustDecimal(test, "100"), mustDecimal(test, "0.02"), mustDecimal(test, "0.18"))
				if err != nil {
					test.Fatalf("fees: %v", err)
				}
				if _, err := service.UpdateSettings(context.Background(), current, current.Version); err != nil {
					test.Fatalf("update settings: %v", err)
				}
			},
			err: ErrOrderMismatch,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			publisher := &recordingPublisher{}
			service := mustNewService(test, store, WithOrderGateway(&stubGateway{}), WithEventPublisher(publisher))
			date := mustDate(test, "2025-03-13")

			order, _, err := service.CreateOrder(context.Background(), OrderInput{Date: date, Start: 17, Duration: 1})
			if err != nil {
				test.Fatalf("create order: %v", err)
			}
			if order.AmountPaise != 10000 {
				test.Fatalf("expected 10000 paise for one hour, got %d", order.AmountPaise)
			}
			if testCase.prepare != nil {
				testCase.prepare(service)
			}
			request := GatewayBookingRequest{
				Date:     date,
				Start:    17,
				Duration: 1,
				Customer: Customer{Name: "Asha", Contact: "9876543210"},
				Proof:    signedProof(test, order.ID, "pay_mismatch"),
			}
			if testCase.mutate != nil {
				testCase.mutate(&request)
			}

			_, err = service.CommitGatewayBooking(context.Background(), request)
			if !errors.Is(err, testCase.err) {
				test.Fatalf("expected %v, got %v", testCase.err, err)
			}
			if store.claimCount() != 0 || store.transactionCount() != 0 {
				test.Fatalf("expected a rejected commit to write nothing, got %d claims and %d transactions", store.claimCount(), store.transactionCount())
			}
			if _, err := store.FindBookingByPaymentID(context.Background(), "pay_mismatch"); !errors.Is(err, ErrBookingNotFound) {
				test.Fatalf("expected no booking for the payment, got %v", err)
			}
			if len(publisher.events) != 1 || publisher.events[0].Type != EventBookingCommitFailed {
				test.Fatalf("expected a commit_failed event, got %+v", publisher.events)
			}
		})
	}
}

func TestCommitGatewayBookingRealignsStaleSequence(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	service := mustNewService(test, store)
	if _, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 8, 1, "pay_a", false)); err != nil {
		test.Fatalf("first commit: %v", err)
	}
	store.state.sequences["booking:ZT"] = 0

	result, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 10, 1, "pay_b", false))
	if err != nil {
		test.Fatalf("second commit: %v", err)
	}
	if result.Booking.ID.String() != "ZT0002" {
		test.Fatalf("expected ZT0002 after realignment, got %s", result.Booking.ID)
	}
}

func TestConcurrentCommitsNeverOverlap(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	service := mustNewService(test, store)
	const contenders = 8

	var waitGroup sync.WaitGroup
	results := make(chan error, contenders)
	for index := 0; index < contenders; index++ {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			_, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-20", SlotHour(17+index%2), 2, fmt.Sprintf("pay_%d", index), false))
			results <- err
		}(index)
	}
	waitGroup.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, ErrSlotUnavailable) {
			test.Fatalf("expected ErrSlotUnavailable, got %v", err)
		}
	}
	if succeeded != 1 {
		test.Fatalf("expected exactly one winner, got %d", succeeded)
	}
	active, _ := store.ListActiveBookingsOn(context.Background(), mustDate(test, "2025-03-20"))
	for left := range active {
		for right := left + 1; right < len(active); right++ {
			if active[left].Range.Overlaps(active[right].Range) {
				test.Fatalf("bookings %s and %s overlap", active[left].ID, active[right].ID)
			}
		}
	}
}

func TestCommitManualBooking(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	service := mustNewService(test, store)

	booking, err := service.CommitManualBooking(context.Background(), ManualBookingRequest{
		Date:          mustDate(test, "2025-03-12"),
		Start:         15,
		Duration:      1,
		Customer:      Customer{Name: "Walk In", Contact: "front desk"},
		PaymentMethod: ledger.PaymentUPI,
		Discount:      mustDecimal(test, "50"),
		CreatedBy:     "admin@turf.test",
	})
	if err != nil {
		test.Fatalf("manual commit: %v", err)
	}
	if booking.Gateway != nil {
		test.Fatalf("expected no gateway payment on a manual booking")
	}
	if !booking.Amount.Due().Equal(mustDecimal(test, "450")) {
		test.Fatalf("expected 450 due after discount, got %s", booking.Amount.Due())
	}
	transactions := store.transactionsOf(booking.ID)
	if len(transactions) != 1 || transactions[0].PaymentMethod != ledger.PaymentUPI {
		test.Fatalf("expected one UPI advance, got %+v", transactions)
	}

	_, err = service.CommitManualBooking(context.Background(), ManualBookingRequest{
		Date:     mustDate(test, "2025-03-12"),
		Start:    16,
		Duration: 1,
		Customer: Customer{Name: "Walk In", Contact: "front desk"},
		Discount: mustDecimal(test, "501"),
	})
	if !errors.Is(err, ErrInvalidDiscount) {
		test.Fatalf("expected ErrInvalidDiscount, got %v", err)
	}

	_, err = service.CommitManualBooking(context.Background(), ManualBookingRequest{
		Date:     mustDate(test, "2025-03-12"),
		Start:    14,
		Duration: 1,
		Customer: Customer{Name: "Late", Contact: "front desk"},
	})
	if !errors.Is(err, ErrSlotInPast) {
		test.Fatalf("expected a finished slot to be rejected, got %v", err)
	}
}
