package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Service contains the domain logic over a Store.
type Service struct {
	store  Store
	nowFn  func() time.Time
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// RecordTransaction appends a new transaction with the next TRX- identifier.
func (service *Service) RecordTransaction(ctx context.Context, input TransactionInput) (Transaction, error) {
	var recorded Transaction
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		transaction, err := AppendTransaction(ctx, transactionStore, input, service.nowFn())
		if err != nil {
			return err
		}
		recorded = transaction
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationRecordTransaction,
		TransactionID: recorded.ID,
		Amount:        input.Amount,
		ToStatus:      input.Status,
		Error:         operationError,
	})
	if operationError != nil {
		return Transaction{}, operationError
	}
	return recorded, nil
}

// AppendTransaction mints an id and inserts a transaction through writer.
// Callers running inside a wider database transaction pass their transactional writer.
func AppendTransaction(ctx context.Context, writer TransactionWriter, input TransactionInput, createdAt time.Time) (Transaction, error) {
	sequence, err := writer.NextSequence(ctx, SequenceTransactions, nil)
	if err != nil {
		return Transaction{}, err
	}
	transaction, err := NewTransaction(FormatTransactionID(sequence), input, createdAt)
	if err != nil {
		return Transaction{}, err
	}
	if err := writer.InsertTransaction(ctx, transaction); err != nil {
		return Transaction{}, err
	}
	return transaction, nil
}

// UpdateTransactionStatus moves a transaction to a new status. When the
// transaction belongs to an expense, the expense moves with it.
func (service *Service) UpdateTransactionStatus(ctx context.Context, id TransactionID, to TransactionStatus) (Transaction, error) {
	var updated Transaction
	var from TransactionStatus
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		transaction, err := transactionStore.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		from = transaction.Status
		if err := checkTransition(from, to); err != nil {
			return err
		}
		if err := transactionStore.UpdateTransactionStatus(ctx, id, from, to); err != nil {
			return err
		}
		expense, err := transactionStore.FindExpenseByTransaction(ctx, id)
		switch {
		case errors.Is(err, ErrExpenseNotFound):
		case err != nil:
			return err
		default:
			if err := transactionStore.UpdateExpenseStatus(ctx, expense.ID, expense.Status, to); err != nil {
				return err
			}
		}
		transaction.Status = to
		updated = transaction
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationUpdateTransactionStatus,
		TransactionID: id,
		Amount:        updated.Amount,
		FromStatus:    from,
		ToStatus:      to,
		Error:         operationError,
	})
	if operationError != nil {
		return Transaction{}, operationError
	}
	return updated, nil
}

// GetTransaction returns one transaction.
func (service *Service) GetTransaction(ctx context.Context, id TransactionID) (Transaction, error) {
	return service.store.GetTransaction(ctx, id)
}

// ListTransactions returns a filtered page of transactions, newest first.
func (service *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, Pagination, error) {
	transactions, total, err := service.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, Pagination{}, err
	}
	return transactions, NewPagination(filter.Page, total), nil
}

// RecordExpense appends an expense and its companion transaction atomically.
func (service *Service) RecordExpense(ctx context.Context, input ExpenseInput) (Expense, error) {
	var recorded Expense
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if !input.Category.IsExpenseCategory() {
			return fmt.Errorf("%w: %q is not an expense category", ErrInvalidCategory, input.Category)
		}
		createdAt := service.nowFn()
		companion, err := AppendTransaction(ctx, transactionStore, input.TransactionInput(), createdAt)
		if err != nil {
			return err
		}
		sequence, err := transactionStore.NextSequence(ctx, SequenceExpenses, nil)
		if err != nil {
			return err
		}
		expense, err := NewExpense(FormatExpenseID(sequence), companion.ID, input, createdAt)
		if err != nil {
			return err
		}
		if err := transactionStore.InsertExpense(ctx, expense); err != nil {
			return err
		}
		recorded = expense
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationRecordExpense,
		ExpenseID:     recorded.ID,
		TransactionID: recorded.RelatedTransaction,
		Amount:        input.Amount,
		ToStatus:      input.Status,
		Error:         operationError,
	})
	if operationError != nil {
		return Expense{}, operationError
	}
	return recorded, nil
}

// UpdateExpenseStatus moves an expense and its companion transaction together.
func (service *Service) UpdateExpenseStatus(ctx context.Context, id ExpenseID, to TransactionStatus) (Expense, error) {
	var updated Expense
	var from TransactionStatus
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		expense, err := transactionStore.GetExpense(ctx, id)
		if err != nil {
			return err
		}
		from = expense.Status
		if err := checkTransition(from, to); err != nil {
			return err
		}
		if err := transactionStore.UpdateExpenseStatus(ctx, id, from, to); err != nil {
			return err
		}
		companion, err := transactionStore.GetTransaction(ctx, expense.RelatedTransaction)
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateTransactionStatus(ctx, companion.ID, companion.Status, to); err != nil {
			return err
		}
		expense.Status = to
		updated = expense
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationUpdateExpenseStatus,
		ExpenseID:     id,
		TransactionID: updated.RelatedTransaction,
		Amount:        updated.Amount,
		FromStatus:    from,
		ToStatus:      to,
		Error:         operationError,
	})
	if operationError != nil {
		return Expense{}, operationError
	}
	return updated, nil
}

// GetExpense returns one expense.
func (service *Service) GetExpense(ctx context.Context, id ExpenseID) (Expense, error) {
	return service.store.GetExpense(ctx, id)
}

// ListExpenses returns a filtered page of expenses, newest first.
func (service *Service) ListExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, Pagination, error) {
	expenses, total, err := service.store.ListExpenses(ctx, filter)
	if err != nil {
		return nil, Pagination{}, err
	}
	return expenses, NewPagination(filter.Page, total), nil
}

// Summary aggregates revenue, expenses and pending income for period.
// Pending income is all-time, not bounded by the window.
func (service *Service) Summary(ctx context.Context, period Period) (Summary, error) {
	current, previous, err := period.Windows(service.nowFn())
	if err != nil {
		return Summary{}, err
	}
	currentRevenue, err := service.sum(ctx, TransactionIncome, StatusPaid, current)
	if err != nil {
		return Summary{}, err
	}
	previousRevenue, err := service.sum(ctx, TransactionIncome, StatusPaid, previous)
	if err != nil {
		return Summary{}, err
	}
	currentExpenses, err := service.sum(ctx, TransactionExpense, StatusPaid, current)
	if err != nil {
		return Summary{}, err
	}
	previousExpenses, err := service.sum(ctx, TransactionExpense, StatusPaid, previous)
	if err != nil {
		return Summary{}, err
	}
	pending, err := service.sum(ctx, TransactionIncome, StatusPending, Window{})
	if err != nil {
		return Summary{}, err
	}
	currentProfit := currentRevenue.Sub(currentExpenses)
	previousProfit := previousRevenue.Sub(previousExpenses)
	return Summary{
		Period:          period,
		Current:         current,
		Previous:        previous,
		TotalRevenue:    currentRevenue,
		TotalExpenses:   currentExpenses,
		NetProfit:       currentProfit,
		PendingPayments: pending,
		RevenueChange:   ChangePercent(currentRevenue, previousRevenue),
		ExpensesChange:  ChangePercent(currentExpenses, previousExpenses),
		ProfitChange:    ChangePercent(currentProfit, previousProfit),
	}, nil
}

// RevenueIn totals paid income inside window.
func (service *Service) RevenueIn(ctx context.Context, window Window) (decimal.Decimal, error) {
	return service.sum(ctx, TransactionIncome, StatusPaid, window)
}

// ExpenseSummary aggregates paid expenses for period, broken down by category.
func (service *Service) ExpenseSummary(ctx context.Context, period Period) (ExpenseSummary, error) {
	current, previous, err := period.Windows(service.nowFn())
	if err != nil {
		return ExpenseSummary{}, err
	}
	currentTotal, err := service.sum(ctx, TransactionExpense, StatusPaid, current)
	if err != nil {
		return ExpenseSummary{}, err
	}
	previousTotal, err := service.sum(ctx, TransactionExpense, StatusPaid, previous)
	if err != nil {
		return ExpenseSummary{}, err
	}
	pending, err := service.sum(ctx, TransactionExpense, StatusPending, Window{})
	if err != nil {
		return ExpenseSummary{}, err
	}
	byCategory, err := service.store.SumExpensesByCategory(ctx, StatusPaid, current.Start, current.End)
	if err != nil {
		return ExpenseSummary{}, WrapError(errorOperationService, errorSubjectSummary, errorCodeSum, err)
	}
	return ExpenseSummary{
		Period:          period,
		Current:         current,
		TotalExpenses:   currentTotal,
		PendingExpenses: pending,
		Change:          ChangePercent(currentTotal, previousTotal),
		ByCategory:      byCategory,
	}, nil
}

func (service *Service) sum(ctx context.Context, transactionType TransactionType, status TransactionStatus, window Window) (decimal.Decimal, error) {
	total, err := service.store.SumTransactions(ctx, SumQuery{
		Type:   transactionType,
		Status: status,
		From:   window.Start,
		To:     window.End,
	})
	if err != nil {
		return decimal.Zero, WrapError(errorOperationService, errorSubjectSummary, errorCodeSum, err)
	}
	return total.Round(2), nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func checkTransition(from TransactionStatus, to TransactionStatus) error {
	if _, err := ParseTransactionStatus(to.String()); err != nil {
		return err
	}
	if !from.CanTransitionTo(to) {
		return WrapError(errorOperationService, errorSubjectStatus, errorCodeTransition, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, from, to))
	}
	return nil
}
