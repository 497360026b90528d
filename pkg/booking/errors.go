package booking

import "errors"

// Domain-level error values returned by the booking service.
var (
	ErrInvalidDate               = errors.New("invalid date")
	ErrInvalidStartTime          = errors.New("invalid start time")
	ErrInvalidDuration           = errors.New("invalid duration")
	ErrInvalidCustomer           = errors.New("invalid customer")
	ErrInvalidBookingID          = errors.New("invalid booking id")
	ErrInvalidInitials           = errors.New("invalid booking initials")
	ErrInvalidBookingStatus      = errors.New("invalid booking status")
	ErrInvalidPaymentStatus      = errors.New("invalid payment status")
	ErrInvalidDiscount           = errors.New("invalid discount")
	ErrInvalidFeeSchedule        = errors.New("invalid fee schedule")
	ErrInvalidOperatingHours     = errors.New("invalid operating hours")
	ErrInvalidSettings           = errors.New("invalid settings")
	ErrInvalidPaymentProof       = errors.New("invalid payment proof")
	ErrInvalidServiceConfig      = errors.New("invalid service config")
	ErrNonConsecutiveSelection   = errors.New("selected slots must be consecutive")
	ErrSlotOutsideHours          = errors.New("slot outside operating hours")
	ErrSlotInPast                = errors.New("slot has already started")
	ErrSlotUnavailable           = errors.New("slot unavailable")
	ErrDuplicateBookingID        = errors.New("duplicate booking id")
	ErrDuplicatePayment          = errors.New("payment already committed")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrPaymentInProgress         = errors.New("payment commit in progress")
	ErrBookingNotFound           = errors.New("booking not found")
	ErrSettingsNotFound          = errors.New("settings not found")
	ErrSettingsVersionConflict   = errors.New("settings version conflict")
	ErrInvalidStatusTransition   = errors.New("invalid booking status transition")
	ErrGatewayUnavailable        = errors.New("payment gateway unavailable")
	ErrOrderNotFound             = errors.New("payment order not found")
	ErrOrderMismatch             = errors.New("booking does not match the paid order")
)
