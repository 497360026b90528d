package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the ledger service.
var (
	ErrInvalidTransactionID     = errors.New("invalid transaction id")
	ErrInvalidExpenseID         = errors.New("invalid expense id")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidCategory          = errors.New("invalid category")
	ErrInvalidPaymentMethod     = errors.New("invalid payment method")
	ErrInvalidTransactionType   = errors.New("invalid transaction type")
	ErrInvalidTransactionStatus = errors.New("invalid transaction status")
	ErrInvalidDescription       = errors.New("invalid description")
	ErrVendorRequired           = errors.New("vendor is required for expenses")
	ErrVendorNotAllowed         = errors.New("vendor is only allowed on expenses")
	ErrInvalidPeriod            = errors.New("invalid period")
	ErrInvalidPage              = errors.New("invalid page")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrExpenseNotFound          = errors.New("expense not found")
	ErrDuplicateTransactionID   = errors.New("duplicate transaction id")
	ErrInvalidStatusTransition  = errors.New("invalid status transition")
	ErrStatusConflict           = errors.New("status changed concurrently")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
