package telemetry

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"go.uber.org/zap"
)

// NewLogger builds a production logger or a development one.
func NewLogger(production bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if production {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	return logger, nil
}

// BookingLogger writes booking operations to zap.
type BookingLogger struct {
	logger *zap.Logger
}

// NewBookingLogger wraps logger.
func NewBookingLogger(logger *zap.Logger) *BookingLogger {
	return &BookingLogger{logger: logger.Named("booking")}
}

// LogOperation implements booking.OperationLogger.
func (adapter *BookingLogger) LogOperation(_ context.Context, entry booking.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if !entry.BookingID.IsZero() {
		fields = append(fields, zap.String("booking_id", entry.BookingID.String()))
	}
	if entry.PaymentID != "" {
		fields = append(fields, zap.String("payment_id", entry.PaymentID))
	}
	if !entry.Date.IsZero() {
		fields = append(fields, zap.String("date", entry.Date.String()))
	}
	if !entry.Amount.IsZero() {
		fields = append(fields, zap.String("amount", entry.Amount.StringFixed(2)))
	}
	if entry.Attempts > 0 {
		fields = append(fields, zap.Int("attempts", entry.Attempts))
	}
	if entry.Error != nil {
		adapter.logger.Error("booking operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("booking operation", fields...)
}

// LedgerLogger writes ledger operations to zap.
type LedgerLogger struct {
	logger *zap.Logger
}

// NewLedgerLogger wraps logger.
func NewLedgerLogger(logger *zap.Logger) *LedgerLogger {
	return &LedgerLogger{logger: logger.Named("ledger")}
}

// LogOperation implements ledger.OperationLogger.
func (adapter *LedgerLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if !entry.TransactionID.IsZero() {
		fields = append(fields, zap.String("transaction_id", entry.TransactionID.String()))
	}
	if entry.ExpenseID.String() != "" {
		fields = append(fields, zap.String("expense_id", entry.ExpenseID.String()))
	}
	if !entry.Amount.IsZero() {
		fields = append(fields, zap.String("amount", entry.Amount.StringFixed(2)))
	}
	if entry.FromStatus != "" || entry.ToStatus != "" {
		fields = append(fields, zap.String("from_status", entry.FromStatus.String()), zap.String("to_status", entry.ToStatus.String()))
	}
	if entry.Error != nil {
		adapter.logger.Error("ledger operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("ledger operation", fields...)
}
