package booking

import "time"

const (
	operationCommitGateway = "commit_gateway"
	operationCommitManual  = "commit_manual"
	operationUpdateStatus  = "update_status"
	operationUpdateConfig  = "update_settings"
	operationCreateOrder   = "create_order"

	operationStatusOK     = "ok"
	operationStatusError  = "error"
	operationStatusReplay = "replay"

	errorOperationService = "service"
	errorSubjectBooking   = "booking"
	errorSubjectOrder     = "order"
	errorSubjectPayment   = "payment"
	errorSubjectSettings  = "settings"
	errorSubjectSlot      = "slot"
	errorCodeClaim        = "claim"
	errorCodeCommit       = "commit"
	errorCodeMatch        = "match"
	errorCodeSignature    = "signature"
	errorCodeTransition   = "transition"
	errorCodeValidate     = "validate"

	// SequencePrefix namespaces booking counters by initials.
	SequencePrefix = "booking:"

	bookingIDDigits      = 4
	commitAttempts       = 3
	defaultClaimTTL      = 15 * time.Minute
	defaultRecentLimit   = 10
	maxRecentLimit       = 50
	dateLayout           = "2006-01-02"
	startTimeLayout      = "3:04 PM"
	advanceEntryNote     = "Advance payment"
	balanceEntryNote     = "Balance collected at venue"
	gatewayFeeNote       = "Payment gateway fee"
	defaultGatewayVendor = "Razorpay"
)
