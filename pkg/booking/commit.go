package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/shopspring/decimal"
)

// GatewayBookingRequest is a public booking paid through the gateway.
type GatewayBookingRequest struct {
	Date     Date
	Start    SlotHour
	Duration int
	Customer Customer
	PayFees  bool
	Proof    PaymentProof
}

// ManualBookingRequest is a booking recorded by staff for a payment taken at the venue.
type ManualBookingRequest struct {
	Date          Date
	Start         SlotHour
	Duration      int
	Customer      Customer
	PaymentMethod ledger.PaymentMethod
	Discount      decimal.Decimal
	CreatedBy     string
}

// CommitResult is the outcome of a commit. Replayed is set when the payment
// had already been committed and the existing booking is returned.
type CommitResult struct {
	Booking  Booking
	Replayed bool
}

// CommitGatewayBooking verifies the gateway signature and persists the booking,
// its slot claims and its ledger transactions in one database transaction.
// Amounts are always recomputed from the active fee schedule.
func (service *Service) CommitGatewayBooking(ctx context.Context, request GatewayBookingRequest) (CommitResult, error) {
	result, attempts, operationError := service.commitGateway(ctx, request)
	entry := OperationLog{
		Operation: operationCommitGateway,
		BookingID: result.Booking.ID,
		PaymentID: request.Proof.PaymentID,
		Date:      request.Date,
		Amount:    result.Booking.Amount.Advance,
		Attempts:  attempts,
		Error:     operationError,
	}
	if result.Replayed {
		entry.Status = operationStatusReplay
	}
	service.logOperation(ctx, entry)
	if operationError != nil {
		if !errors.Is(operationError, ErrPaymentVerificationFailed) && !errors.Is(operationError, ErrInvalidPaymentProof) && !errors.Is(operationError, ErrPaymentInProgress) {
			service.publish(ctx, Event{
				Type:      EventBookingCommitFailed,
				OrderID:   request.Proof.OrderID,
				PaymentID: request.Proof.PaymentID,
				Date:      request.Date.String(),
				StartTime: request.Start.StartTime(),
				Duration:  request.Duration,
				Reason:    operationError.Error(),
			})
		}
		return CommitResult{}, operationError
	}
	if !result.Replayed {
		service.publish(ctx, bookingEvent(EventBookingConfirmed, result.Booking))
	}
	return result, nil
}

func (service *Service) commitGateway(ctx context.Context, request GatewayBookingRequest) (CommitResult, int, error) {
	proof, err := NewPaymentProof(request.Proof.OrderID, request.Proof.PaymentID, request.Proof.Signature)
	if err != nil {
		return CommitResult{}, 0, err
	}
	if err := service.verifier.Verify(proof); err != nil {
		return CommitResult{}, 0, ledger.WrapError(errorOperationService, errorSubjectPayment, errorCodeSignature, err)
	}
	existing, err := service.store.FindBookingByPaymentID(ctx, proof.PaymentID)
	if err == nil {
		return CommitResult{Booking: existing, Replayed: true}, 0, nil
	}
	if !errors.Is(err, ErrBookingNotFound) {
		return CommitResult{}, 0, err
	}
	if service.claimer != nil {
		claimKey := "payment:" + proof.PaymentID
		claimed, err := service.claimer.Claim(ctx, claimKey, service.claimTTL)
		if err != nil {
			return CommitResult{}, 0, ledger.WrapError(errorOperationService, errorSubjectPayment, errorCodeClaim, err)
		}
		if !claimed {
			return CommitResult{}, 0, ledger.WrapError(errorOperationService, errorSubjectPayment, errorCodeClaim, ErrPaymentInProgress)
		}
		defer func() {
			_ = service.claimer.Release(context.WithoutCancel(ctx), claimKey)
		}()
	}
	customer, err := NewCustomer(request.Customer.Name, request.Customer.Contact)
	if err != nil {
		return CommitResult{}, 0, err
	}
	settings, err := service.store.GetSettings(ctx)
	if err != nil {
		return CommitResult{}, 0, err
	}
	slots, err := service.bookableRange(request.Date, request.Start, request.Duration, settings.Hours, false)
	if err != nil {
		return CommitResult{}, 0, err
	}
	amounts, err := settings.Fees.Calculate(slots.Duration)
	if err != nil {
		return CommitResult{}, 0, err
	}
	order, err := service.store.GetOrder(ctx, proof.OrderID)
	if err != nil {
		return CommitResult{}, 0, err
	}
	if err := order.Covers(request.Date, slots, request.PayFees, amounts.ChargePaise(request.PayFees)); err != nil {
		return CommitResult{}, 0, ledger.WrapError(errorOperationService, errorSubjectOrder, errorCodeMatch, err)
	}
	gateway := &GatewayPayment{
		PayFeesFlag: request.PayFees,
		OrderID:     proof.OrderID,
		PaymentID:   proof.PaymentID,
		Signature:   proof.Signature,
		Fee:         amounts.TotalGatewayFee,
	}
	draft := commitDraft{
		settings:  settings,
		date:      request.Date,
		slots:     slots,
		customer:  customer,
		amounts:   amounts,
		method:    ledger.PaymentOnline,
		gateway:   gateway,
		createdBy: "public",
	}
	booking, attempts, err := service.persist(ctx, draft)
	if errors.Is(err, ErrDuplicatePayment) {
		existing, lookupErr := service.store.FindBookingByPaymentID(ctx, proof.PaymentID)
		if lookupErr != nil {
			return CommitResult{}, attempts, lookupErr
		}
		return CommitResult{Booking: existing, Replayed: true}, attempts, nil
	}
	if err != nil {
		return CommitResult{}, attempts, err
	}
	return CommitResult{Booking: booking}, attempts, nil
}

// CommitManualBooking records a booking taken at the venue. The advance is
// recorded as paid with the given method; the remainder is due at the venue.
func (service *Service) CommitManualBooking(ctx context.Context, request ManualBookingRequest) (Booking, error) {
	booking, attempts, operationError := service.commitManual(ctx, request)
	service.logOperation(ctx, OperationLog{
		Operation: operationCommitManual,
		BookingID: booking.ID,
		Date:      request.Date,
		Amount:    booking.Amount.Advance,
		Attempts:  attempts,
		Error:     operationError,
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	service.publish(ctx, bookingEvent(EventBookingConfirmed, booking))
	return booking, nil
}

func (service *Service) commitManual(ctx context.Context, request ManualBookingRequest) (Booking, int, error) {
	customer, err := NewCustomer(request.Customer.Name, request.Customer.Contact)
	if err != nil {
		return Booking{}, 0, err
	}
	method := request.PaymentMethod
	if method == "" {
		method = ledger.PaymentCash
	}
	if _, err := ledger.ParsePaymentMethod(method.String()); err != nil {
		return Booking{}, 0, err
	}
	settings, err := service.store.GetSettings(ctx)
	if err != nil {
		return Booking{}, 0, err
	}
	slots, err := service.bookableRange(request.Date, request.Start, request.Duration, settings.Hours, true)
	if err != nil {
		return Booking{}, 0, err
	}
	amounts, err := settings.Fees.Calculate(slots.Duration)
	if err != nil {
		return Booking{}, 0, err
	}
	if request.Discount.IsNegative() || request.Discount.GreaterThan(amounts.Remaining) {
		return Booking{}, 0, fmt.Errorf("%w: must be between 0 and %s", ErrInvalidDiscount, amounts.Remaining)
	}
	return service.persist(ctx, commitDraft{
		settings:  settings,
		date:      request.Date,
		slots:     slots,
		customer:  customer,
		amounts:   amounts,
		discount:  request.Discount.Round(2),
		method:    method,
		createdBy: request.CreatedBy,
	})
}

type commitDraft struct {
	settings  Settings
	date      Date
	slots     Range
	customer  Customer
	amounts   Amounts
	discount  decimal.Decimal
	method    ledger.PaymentMethod
	gateway   *GatewayPayment
	createdBy string
}

// persist writes a booking with a fresh id, retrying when the id collides.
func (service *Service) persist(ctx context.Context, draft commitDraft) (Booking, int, error) {
	var (
		committed Booking
		err       error
		attempts  int
	)
	for attempts = 1; attempts <= commitAttempts; attempts++ {
		err = service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			booking, err := service.insertBooking(ctx, transactionStore, draft)
			if err != nil {
				return err
			}
			committed = booking
			return nil
		})
		if !errors.Is(err, ErrDuplicateBookingID) || attempts == commitAttempts {
			break
		}
		if realignErr := service.realignSequence(ctx, draft.settings.Initials); realignErr != nil {
			return Booking{}, attempts, realignErr
		}
	}
	if err != nil {
		return Booking{}, attempts, ledger.WrapError(errorOperationService, errorSubjectBooking, errorCodeCommit, err)
	}
	return committed, attempts, nil
}

func (service *Service) insertBooking(ctx context.Context, transactionStore Store, draft commitDraft) (Booking, error) {
	id, err := service.nextBookingID(ctx, transactionStore, draft.settings.Initials)
	if err != nil {
		return Booking{}, err
	}
	now := service.now()
	income := ledger.TransactionInput{
		Amount:         draft.amounts.Advance,
		Date:           now,
		Description:    fmt.Sprintf("%s for %s on %s at %s", advanceEntryNote, id, draft.date, draft.slots.Start.StartTime()),
		Category:       ledger.CategoryBooking,
		PaymentMethod:  draft.method,
		Type:           ledger.TransactionIncome,
		Status:         ledger.StatusPaid,
		RelatedBooking: id.String(),
	}
	reference := ""
	if draft.gateway != nil {
		feePaidBy := ledger.FeePaidByTurf
		if draft.gateway.PayFeesFlag {
			feePaidBy = ledger.FeePaidByCustomer
		}
		income.GatewayDetails = &ledger.GatewayDetails{
			OrderID:   draft.gateway.OrderID,
			PaymentID: draft.gateway.PaymentID,
			Fee:       draft.amounts.TotalGatewayFee,
			FeePaidBy: feePaidBy,
		}
		reference = draft.gateway.PaymentID
	}
	advance, err := ledger.AppendTransaction(ctx, transactionStore, income, now)
	if err != nil {
		return Booking{}, err
	}
	booking := Booking{
		ID:       id,
		Date:     draft.date,
		Range:    draft.slots,
		Customer: draft.customer,
		Amount: AmountDetails{
			Total:     draft.amounts.Total,
			Advance:   draft.amounts.Advance,
			Remaining: draft.amounts.Remaining,
			Discount:  draft.discount,
			Entries: []AmountEntry{{
				TransactionID: advance.ID.String(),
				Kind:          EntryAdvance,
				Amount:        draft.amounts.Advance,
				Method:        draft.method,
				Reference:     reference,
				Note:          advanceEntryNote,
				RecordedAt:    now,
			}},
		},
		PaymentStatus: PaymentPending,
		Status:        BookingConfirmed,
		Gateway:       draft.gateway,
		CreatedBy:     draft.createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if booking.Amount.Due().IsZero() {
		booking.PaymentStatus = PaymentCompleted
	}
	if err := transactionStore.InsertBooking(ctx, booking); err != nil {
		return Booking{}, err
	}
	if err := transactionStore.ClaimSlots(ctx, id, draft.date, draft.slots); err != nil {
		return Booking{}, ledger.WrapError(errorOperationService, errorSubjectSlot, errorCodeClaim, err)
	}
	if draft.gateway != nil && !draft.gateway.PayFeesFlag && draft.amounts.TotalGatewayFee.IsPositive() {
		vendor := draft.settings.GatewayVendor
		if vendor == "" {
			vendor = defaultGatewayVendor
		}
		_, err := ledger.AppendTransaction(ctx, transactionStore, ledger.TransactionInput{
			Amount:         draft.amounts.TotalGatewayFee,
			Date:           now,
			Description:    fmt.Sprintf("%s for %s", gatewayFeeNote, id),
			Category:       ledger.CategoryGatewayFee,
			PaymentMethod:  ledger.PaymentOnline,
			Type:           ledger.TransactionExpense,
			Status:         ledger.StatusPaid,
			RelatedBooking: id.String(),
			Vendor:         vendor,
			GatewayDetails: income.GatewayDetails,
		}, now)
		if err != nil {
			return Booking{}, err
		}
	}
	return booking, nil
}

// nextBookingID draws the next number for initials. A counter that does not
// exist yet starts after the newest stored booking.
func (service *Service) nextBookingID(ctx context.Context, transactionStore Store, initials Initials) (BookingID, error) {
	sequence, err := transactionStore.NextSequence(ctx, initials.SequenceName(), func(ctx context.Context) (int64, error) {
		return service.latestSequence(ctx, transactionStore, initials)
	})
	if err != nil {
		return BookingID{}, err
	}
	return FormatBookingID(initials, sequence), nil
}

func (service *Service) latestSequence(ctx context.Context, store Store, initials Initials) (int64, error) {
	latest, err := store.LatestBookingID(ctx, initials)
	if errors.Is(err, ErrBookingNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	sequence, err := latest.Sequence(initials)
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: "seed_sequence", BookingID: latest, Error: err})
		return 0, nil
	}
	return sequence, nil
}

// realignSequence moves the counter past the newest stored booking after an id collision.
func (service *Service) realignSequence(ctx context.Context, initials Initials) error {
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		latest, err := service.latestSequence(ctx, transactionStore, initials)
		if err != nil {
			return err
		}
		return transactionStore.EnsureSequenceAtLeast(ctx, initials.SequenceName(), latest)
	})
}

func bookingEvent(eventType EventType, booking Booking) Event {
	event := Event{
		Type:      eventType,
		BookingID: booking.ID.String(),
		Date:      booking.Date.String(),
		StartTime: booking.StartTime(),
		Duration:  booking.Range.Duration,
		Amount:    booking.Amount.Total,
	}
	if booking.Gateway != nil {
		event.OrderID = booking.Gateway.OrderID
		event.PaymentID = booking.Gateway.PaymentID
	}
	return event
}
