package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/turf/internal/auth"
	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dayLayout = "2006-01-02"

func bindJSON(ctx *gin.Context, destination any) error {
	if err := ctx.ShouldBindJSON(destination); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return nil
}

func bindQuery(ctx *gin.Context, destination any) error {
	if err := ctx.ShouldBindQuery(destination); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return nil
}

// parseInstant accepts RFC 3339 timestamps or plain dates in location. Empty input yields the zero time.
func parseInstant(raw string, location *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}
	if instant, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return instant, nil
	}
	instant, err := time.ParseInLocation(dayLayout, trimmed, location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", errInvalidPayload, raw)
	}
	return instant, nil
}

type customerRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type paymentProofRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func (request paymentProofRequest) proof() (booking.PaymentProof, error) {
	return booking.NewPaymentProof(request.OrderID, request.PaymentID, request.Signature)
}

type slotRequest struct {
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"startTime" binding:"required"`
	Duration  int    `json:"duration" binding:"required"`
}

func (request slotRequest) parse() (booking.Date, booking.SlotHour, error) {
	date, err := booking.ParseDate(request.Date)
	if err != nil {
		return booking.Date{}, 0, err
	}
	start, err := booking.ParseStartTime(request.StartTime)
	if err != nil {
		return booking.Date{}, 0, err
	}
	return date, start, nil
}

type createBookingRequest struct {
	slotRequest
	Customer customerRequest     `json:"customer"`
	PayFees  bool                `json:"payFees"`
	Payment  paymentProofRequest `json:"payment"`
}

type manualBookingRequest struct {
	slotRequest
	Customer      customerRequest `json:"customer"`
	PaymentMethod string          `json:"paymentMethod"`
	Discount      decimal.Decimal `json:"discount"`
}

type bookingStatusRequest struct {
	Status        string `json:"status" binding:"required"`
	PaymentMethod string `json:"paymentMethod"`
}

type createOrderRequest struct {
	slotRequest
	PayFees bool `json:"payFees"`
}

type bookingListQuery struct {
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
	Search     string `form:"search"`
	Status     string `form:"status"`
	DateFilter string `form:"dateFilter"`
	Date       string `form:"date"`
}

type transactionRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Date           string          `json:"date"`
	Description    string          `json:"description" binding:"required"`
	Category       string          `json:"category" binding:"required"`
	PaymentMethod  string          `json:"paymentMethod" binding:"required"`
	Type           string          `json:"type" binding:"required"`
	Status         string          `json:"status"`
	RelatedBooking string          `json:"relatedBooking"`
	Vendor         string          `json:"vendor"`
}

type expenseRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	Description   string          `json:"description" binding:"required"`
	Category      string          `json:"category" binding:"required"`
	Vendor        string          `json:"vendor" binding:"required"`
	PaymentMethod string          `json:"paymentMethod" binding:"required"`
	Status        string          `json:"status"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ledgerListQuery struct {
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
	Type     string `form:"type"`
	Category string `form:"category"`
	Status   string `form:"status"`
	Search   string `form:"search"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type settingsRequest struct {
	TurfName          string          `json:"turfName" binding:"required"`
	BookingInitials   string          `json:"bookingInitials" binding:"required"`
	HourlyRate        decimal.Decimal `json:"hourlyRate"`
	BookingFeePerHour decimal.Decimal `json:"bookingFeePerHour"`
	GatewayFeeRate    decimal.Decimal `json:"gatewayFeeRate"`
	GSTRate           decimal.Decimal `json:"gstRate"`
	OpenHour          int             `json:"openHour"`
	CloseHour         int             `json:"closeHour"`
	GatewayVendor     string          `json:"gatewayVendor"`
	Version           int64           `json:"version"`
}

func (request settingsRequest) settings() (booking.Settings, error) {
	initials, err := booking.NewInitials(request.BookingInitials)
	if err != nil {
		return booking.Settings{}, err
	}
	fees, err := booking.NewFeeSchedule(request.HourlyRate, request.BookingFeePerHour, request.GatewayFeeRate, request.GSTRate)
	if err != nil {
		return booking.Settings{}, err
	}
	hours, err := booking.NewOperatingHours(request.OpenHour, request.CloseHour)
	if err != nil {
		return booking.Settings{}, err
	}
	return booking.Settings{
		TurfName:      strings.TrimSpace(request.TurfName),
		Initials:      initials,
		Fees:          fees,
		Hours:         hours,
		GatewayVendor: strings.TrimSpace(request.GatewayVendor),
	}, nil
}

type customerPayload struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

type amountEntryPayload struct {
	TransactionID string          `json:"txnId"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"paymentMethod"`
	Reference     string          `json:"reference,omitempty"`
	Note          string          `json:"note,omitempty"`
	RecordedAt    time.Time       `json:"recordedAt"`
}

type amountPayload struct {
	TotalAmount     decimal.Decimal      `json:"totalAmount"`
	AdvanceAmount   decimal.Decimal      `json:"advanceAmount"`
	RemainingAmount decimal.Decimal      `json:"remainingAmount"`
	Discount        decimal.Decimal      `json:"discount"`
	Due             decimal.Decimal      `json:"due"`
	Transactions    []amountEntryPayload `json:"transactions"`
}

type gatewayPaymentPayload struct {
	PayFeesFlag bool            `json:"payFeesFlag"`
	OrderID     string          `json:"orderId"`
	PaymentID   string          `json:"paymentId"`
	Fee         decimal.Decimal `json:"fee"`
}

type bookingPayload struct {
	BookingID      string                 `json:"bookingId"`
	Date           string                 `json:"date"`
	StartTime      string                 `json:"startTime"`
	Duration       int                    `json:"duration"`
	Customer       customerPayload        `json:"customer"`
	Amount         amountPayload          `json:"amount"`
	PaymentStatus  string                 `json:"paymentStatus"`
	Status         string                 `json:"status"`
	GatewayPayment *gatewayPaymentPayload `json:"gatewayPayment,omitempty"`
	CreatedBy      string                 `json:"createdBy,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func newBookingPayload(record booking.Booking) bookingPayload {
	entries := make([]amountEntryPayload, 0, len(record.Amount.Entries))
	for _, entry := range record.Amount.Entries {
		entries = append(entries, amountEntryPayload{
			TransactionID: entry.TransactionID,
			Kind:          string(entry.Kind),
			Amount:        entry.Amount,
			Method:        entry.Method.String(),
			Reference:     entry.Reference,
			Note:          entry.Note,
			RecordedAt:    entry.RecordedAt,
		})
	}
	payload := bookingPayload{
		BookingID: record.ID.String(),
		Date:      record.Date.String(),
		StartTime: record.StartTime(),
		Duration:  record.Range.Duration,
		Customer:  customerPayload{Name: record.Customer.Name, Contact: record.Customer.Contact},
		Amount: amountPayload{
			TotalAmount:     record.Amount.Total,
			AdvanceAmount:   record.Amount.Advance,
			RemainingAmount: record.Amount.Remaining,
			Discount:        record.Amount.Discount,
			Due:             record.Amount.Due(),
			Transactions:    entries,
		},
		PaymentStatus: record.PaymentStatus.String(),
		Status:        record.Status.String(),
		CreatedBy:     record.CreatedBy,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
	if record.Gateway != nil {
		payload.GatewayPayment = &gatewayPaymentPayload{
			PayFeesFlag: record.Gateway.PayFeesFlag,
			OrderID:     record.Gateway.OrderID,
			PaymentID:   record.Gateway.PaymentID,
			Fee:         record.Gateway.Fee,
		}
	}
	return payload
}

func newBookingPayloads(records []booking.Booking) []bookingPayload {
	payloads := make([]bookingPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, newBookingPayload(record))
	}
	return payloads
}

type bookedSlotPayload struct {
	StartTime string `json:"startTime"`
	Duration  int    `json:"duration"`
}

type slotPayload struct {
	ID        int    `json:"id"`
	StartTime string `json:"startTime"`
	Available bool   `json:"available"`
}

type quotePayload struct {
	Duration        int             `json:"duration"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	AdvanceAmount   decimal.Decimal `json:"advanceAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	GatewayFee      decimal.Decimal `json:"gatewayFee"`
	GatewayFeeTax   decimal.Decimal `json:"gatewayFeeTax"`
	TotalGatewayFee decimal.Decimal `json:"totalGatewayFee"`
}

func newQuotePayload(amounts booking.Amounts) quotePayload {
	return quotePayload{
		Duration:        amounts.DurationHours,
		TotalAmount:     amounts.Total,
		AdvanceAmount:   amounts.Advance,
		RemainingAmount: amounts.Remaining,
		GatewayFee:      amounts.GatewayFee,
		GatewayFeeTax:   amounts.GatewayFeeTax,
		TotalGatewayFee: amounts.TotalGatewayFee,
	}
}

type orderPayload struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type paginationPayload struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

func newPaginationPayload(pagination ledger.Pagination) paginationPayload {
	return paginationPayload{Total: pagination.Total, Page: pagination.Page, Limit: pagination.Limit, Pages: pagination.Pages}
}

type gatewayDetailsPayload struct {
	OrderID   string          `json:"orderId"`
	PaymentID string          `json:"paymentId"`
	Fee       decimal.Decimal `json:"fee"`
	FeePaidBy string          `json:"feePaidBy"`
}

type transactionPayload struct {
	TransactionID  string                 `json:"txnId"`
	Amount         decimal.Decimal        `json:"amount"`
	Date           time.Time              `json:"date"`
	Description    string                 `json:"description"`
	Category       string                 `json:"category"`
	PaymentMethod  string                 `json:"paymentMethod"`
	Type           string                 `json:"type"`
	Status         string                 `json:"status"`
	RelatedBooking string                 `json:"relatedBooking,omitempty"`
	Vendor         string                 `json:"vendor,omitempty"`
	GatewayDetails *gatewayDetailsPayload `json:"gatewayDetails,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

func newTransactionPayload(transaction ledger.Transaction) transactionPayload {
	payload := transactionPayload{
		TransactionID:  transaction.ID.String(),
		Amount:         transaction.Amount,
		Date:           transaction.Date,
		Description:    transaction.Description,
		Category:       transaction.Category.String(),
		PaymentMethod:  transaction.PaymentMethod.String(),
		Type:           transaction.Type.String(),
		Status:         transaction.Status.String(),
		RelatedBooking: transaction.RelatedBooking,
		Vendor:         transaction.Vendor,
		CreatedAt:      transaction.CreatedAt,
	}
	if transaction.GatewayDetails != nil {
		payload.GatewayDetails = &gatewayDetailsPayload{
			OrderID:   transaction.GatewayDetails.OrderID,
			PaymentID: transaction.GatewayDetails.PaymentID,
			Fee:       transaction.GatewayDetails.Fee,
			FeePaidBy: string(transaction.GatewayDetails.FeePaidBy),
		}
	}
	return payload
}

type expensePayload struct {
	ExpenseID          string          `json:"expenseId"`
	Amount             decimal.Decimal `json:"amount"`
	Date               time.Time       `json:"date"`
	Description        string          `json:"description"`
	Category           string          `json:"category"`
	Vendor             string          `json:"vendor"`
	PaymentMethod      string          `json:"paymentMethod"`
	Status             string          `json:"status"`
	RelatedTransaction string          `json:"relatedTransaction"`
	CreatedAt          time.Time       `json:"createdAt"`
}

func newExpensePayload(expense ledger.Expense) expensePayload {
	return expensePayload{
		ExpenseID:          expense.ID.String(),
		Amount:             expense.Amount,
		Date:               expense.Date,
		Description:        expense.Description,
		Category:           expense.Category.String(),
		Vendor:             expense.Vendor,
		PaymentMethod:      expense.PaymentMethod.String(),
		Status:             expense.Status.String(),
		RelatedTransaction: expense.RelatedTransaction.String(),
		CreatedAt:          expense.CreatedAt,
	}
}

type windowPayload struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func newWindowPayload(window ledger.Window) windowPayload {
	return windowPayload{From: window.Start, To: window.End}
}

type categoryTotalPayload struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

type settingsPayload struct {
	TurfName          string          `json:"turfName"`
	BookingInitials   string          `json:"bookingInitials"`
	HourlyRate        decimal.Decimal `json:"hourlyRate"`
	BookingFeePerHour decimal.Decimal `json:"bookingFeePerHour"`
	GatewayFeeRate    decimal.Decimal `json:"gatewayFeeRate"`
	GSTRate           decimal.Decimal `json:"gstRate"`
	OpenHour          int             `json:"openHour"`
	CloseHour         int             `json:"closeHour"`
	GatewayVendor     string          `json:"gatewayVendor"`
	Version           int64           `json:"version"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func newSettingsPayload(settings booking.Settings) settingsPayload {
	return settingsPayload{
		TurfName:          settings.TurfName,
		BookingInitials:   settings.Initials.String(),
		HourlyRate:        settings.Fees.HourlyRate,
		BookingFeePerHour: settings.Fees.BookingFeePerHour,
		GatewayFeeRate:    settings.Fees.GatewayFeeRate,
		GSTRate:           settings.Fees.GSTRate,
		OpenHour:          settings.Hours.Open,
		CloseHour:         settings.Hours.Close,
		GatewayVendor:     settings.GatewayVendor,
		Version:           settings.Version,
		UpdatedAt:         settings.UpdatedAt,
	}
}

type userPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile,omitempty"`
	Role   string `json:"role"`
}

func newUserPayload(user auth.User) userPayload {
	return userPayload{ID: user.ID, Name: user.Name, Email: user.Email, Mobile: user.Mobile, Role: user.Role.String()}
}

type tokensPayload struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func newTokensPayload(tokens auth.TokenPair) tokensPayload {
	return tokensPayload{
		AccessToken:      tokens.AccessToken,
		RefreshToken:     tokens.RefreshToken,
		AccessExpiresAt:  tokens.AccessExpiresAt,
		RefreshExpiresAt: tokens.RefreshExpiresAt,
	}
}
