package booking

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
)

// UpdateStatus moves a confirmed booking to completed or cancelled.
// Completing records the outstanding balance as paid with method.
// Cancelling frees the booked slots.
func (service *Service) UpdateStatus(ctx context.Context, id BookingID, to BookingStatus, method ledger.PaymentMethod) (Booking, error) {
	var updated Booking
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		booking, err := transactionStore.LockBooking(ctx, id)
		if err != nil {
			return err
		}
		if !booking.Status.CanTransitionTo(to) {
			return ledger.WrapError(errorOperationService, errorSubjectBooking, errorCodeTransition,
				fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, booking.Status, to))
		}
		expected := booking.Status
		now := service.now()
		switch to {
		case BookingCompleted:
			if err := service.collectBalance(ctx, transactionStore, &booking, method); err != nil {
				return err
			}
		case BookingCancelled:
			if err := transactionStore.ReleaseSlots(ctx, booking.ID); err != nil {
				return err
			}
		}
		booking.Status = to
		booking.UpdatedAt = now
		if err := transactionStore.UpdateBooking(ctx, booking, expected); err != nil {
			return err
		}
		updated = booking
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationUpdateStatus,
		BookingID: id,
		Date:      updated.Date,
		Amount:    updated.Amount.Paid(),
		Error:     operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	eventType := EventBookingCompleted
	if to == BookingCancelled {
		eventType = EventBookingCancelled
	}
	service.publish(ctx, bookingEvent(eventType, updated))
	return updated, nil
}

func (service *Service) collectBalance(ctx context.Context, transactionStore Store, booking *Booking, method ledger.PaymentMethod) error {
	due := booking.Amount.Due()
	if due.IsPositive() {
		if method == "" {
			method = ledger.PaymentCash
		}
		if _, err := ledger.ParsePaymentMethod(method.String()); err != nil {
			return err
		}
		now := service.now()
		balance, err := ledger.AppendTransaction(ctx, transactionStore, ledger.TransactionInput{
			Amount:         due,
			Date:           now,
			Description:    fmt.Sprintf("%s for %s", balanceEntryNote, booking.ID),
			Category:       ledger.CategoryBooking,
			PaymentMethod:  method,
			Type:           ledger.TransactionIncome,
			Status:         ledger.StatusPaid,
			RelatedBooking: booking.ID.String(),
		}, now)
		if err != nil {
			return err
		}
		booking.Amount.Entries = append(booking.Amount.Entries, AmountEntry{
			TransactionID: balance.ID.String(),
			Kind:          EntryBalance,
			Amount:        due,
			Method:        method,
			Note:          balanceEntryNote,
			RecordedAt:    now,
		})
	}
	booking.PaymentStatus = PaymentCompleted
	return nil
}
