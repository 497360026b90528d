package ledger

import (
	"errors"
	"testing"
)

func TestWrapErrorKeepsSentinelAndSegments(test *testing.T) {
	test.Parallel()

	testCases := []struct {
		name      string
		operation string
		subject   string
		code      string
		cause     error
		message   string
	}{
		{
			name:      "missing expense",
			operation: "update_expense_status",
			subject:   "expense",
			code:      "lookup",
			cause:     ErrExpenseNotFound,
			message:   "update_expense_status.expense.lookup: expense not found",
		},
		{
			name:      "status race",
			operation: "store",
			subject:   "transaction",
			code:      "update_status",
			cause:     ErrStatusConflict,
			message:   "store.transaction.update_status: status changed concurrently",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			wrapped := WrapError(testCase.operation, testCase.subject, testCase.code, testCase.cause)
			if wrapped.Error() != testCase.message {
				test.Fatalf("expected %q, got %q", testCase.message, wrapped.Error())
			}
			if !errors.Is(wrapped, testCase.cause) {
				test.Fatalf("expected %v to match %v", wrapped, testCase.cause)
			}
			var operationError OperationError
			if !errors.As(wrapped, &operationError) {
				test.Fatalf("expected OperationError, got %T", wrapped)
			}
			if operationError.Operation() != testCase.operation || operationError.Subject() != testCase.subject || operationError.Code() != testCase.code {
				test.Fatalf("unexpected segments %q/%q/%q", operationError.Operation(), operationError.Subject(), operationError.Code())
			}
		})
	}
}

func TestWrapErrorNil(test *testing.T) {
	test.Parallel()
	if WrapError("record_transaction", "transaction", "insert", nil) != nil {
		test.Fatalf("expected nil wrapped error")
	}
}
