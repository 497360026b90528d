package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
)

func TestUpdateStatusCompletesAndCollectsBalance(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	publisher := &recordingPublisher{}
	service := mustNewService(test, store, WithEventPublisher(publisher))
	committed, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 17, 2, "pay_done", true))
	if err != nil {
		test.Fatalf("commit: %v", err)
	}

	completed, err := service.UpdateStatus(context.Background(), committed.Booking.ID, BookingCompleted, ledger.PaymentCash)
	if err != nil {
		test.Fatalf("complete: %v", err)
	}
	if completed.Status != BookingCompleted || completed.PaymentStatus != PaymentCompleted {
		test.Fatalf("expected completed/completed, got %s/%s", completed.Status, completed.PaymentStatus)
	}
	if !completed.Amount.Due().IsZero() {
		test.Fatalf("expected nothing due, got %s", completed.Amount.Due())
	}
	if len(completed.Amount.Entries) != 2 || completed.Amount.Entries[1].Kind != EntryBalance {
		test.Fatalf("expected a balance entry, got %+v", completed.Amount.Entries)
	}
	transactions := store.transactionsOf(committed.Booking.ID)
	if len(transactions) != 2 || !transactions[1].Amount.Equal(mustDecimal(test, "1000")) || transactions[1].PaymentMethod != ledger.PaymentCash {
		test.Fatalf("expected a 1000 cash balance transaction, got %+v", transactions)
	}
	if store.claimCount() != 2 {
		test.Fatalf("expected completion to keep the slots claimed")
	}
	types := publisher.types()
	if len(types) != 2 || types[1] != EventBookingCompleted {
		test.Fatalf("expected a completed event, got %v", types)
	}
}

func TestUpdateStatusCancelReleasesSlots(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	service := mustNewService(test, store)
	committed, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 17, 2, "pay_cancel", true))
	if err != nil {
		test.Fatalf("commit: %v", err)
	}
	cancelled, err := service.UpdateStatus(context.Background(), committed.Booking.ID, BookingCancelled, "")
	if err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != BookingCancelled {
		test.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if store.claimCount() != 0 {
		test.Fatalf("expected slots to be released, got %d claims", store.claimCount())
	}
	if _, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 18, 1, "pay_rebook", true)); err != nil {
		test.Fatalf("expected a released slot to be bookable, got %v", err)
	}
}

func TestUpdateStatusRejectsTerminalTransitions(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	service := mustNewService(test, store)
	committed, err := service.CommitGatewayBooking(context.Background(), gatewayRequest(test, store, "2025-03-13", 9, 1, "pay_terminal", true))
	if err != nil {
		test.Fatalf("commit: %v", err)
	}
	if _, err := service.UpdateStatus(context.Background(), committed.Booking.ID, BookingCancelled, ""); err != nil {
		test.Fatalf("cancel: %v", err)
	}

	testCases := []BookingStatus{BookingCompleted, BookingConfirmed, BookingCancelled}
	for _, target := range testCases {
		if _, err := service.UpdateStatus(context.Background(), committed.Booking.ID, target, ""); !errors.Is(err, ErrInvalidStatusTransition) {
			test.Fatalf("expected ErrInvalidStatusTransition for %s, got %v", target, err)
		}
	}

	missing, _ := NewBookingID("ZT9999")
	if _, err := service.UpdateStatus(context.Background(), missing, BookingCompleted, ""); !errors.Is(err, ErrBookingNotFound) {
		test.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}
