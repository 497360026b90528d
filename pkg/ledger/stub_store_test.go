package ledger

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type stubStore struct {
	test *testing.T

	sequences    map[string]int64
	transactions map[string]Transaction
	expenses     map[string]Expense

	insertTransactionError error
	insertExpenseError     error
	sequenceError          error
	sumError               error
	updateStatusError      error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		test:         test,
		sequences:    map[string]int64{},
		transactions: map[string]Transaction{},
		expenses:     map[string]Expense{},
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) NextSequence(ctx context.Context, name string, seed SequenceSeed) (int64, error) {
	if store.sequenceError != nil {
		return 0, store.sequenceError
	}
	current, exists := store.sequences[name]
	if !exists && seed != nil {
		seeded, err := seed(ctx)
		if err != nil {
			return 0, err
		}
		current = seeded
	}
	current++
	store.sequences[name] = current
	return current, nil
}

func (store *stubStore) InsertTransaction(_ context.Context, transaction Transaction) error {
	if store.insertTransactionError != nil {
		return store.insertTransactionError
	}
	if _, exists := store.transactions[transaction.ID.String()]; exists {
		return ErrDuplicateTransactionID
	}
	store.transactions[transaction.ID.String()] = transaction
	return nil
}

func (store *stubStore) GetTransaction(_ context.Context, id TransactionID) (Transaction, error) {
	transaction, exists := store.transactions[id.String()]
	if !exists {
		return Transaction{}, ErrTransactionNotFound
	}
	return transaction, nil
}

func (store *stubStore) UpdateTransactionStatus(_ context.Context, id TransactionID, from TransactionStatus, to TransactionStatus) error {
	if store.updateStatusError != nil {
		return store.updateStatusError
	}
	transaction, exists := store.transactions[id.String()]
	if !exists {
		return ErrTransactionNotFound
	}
	if transaction.Status != from {
		return ErrStatusConflict
	}
	transaction.Status = to
	store.transactions[id.String()] = transaction
	return nil
}

func (store *stubStore) ListTransactions(_ context.Context, filter TransactionFilter) ([]Transaction, int64, error) {
	matched := make([]Transaction, 0, len(store.transactions))
	for _, transaction := range store.transactions {
		if filter.Type != "" && transaction.Type != filter.Type {
			continue
		}
		if filter.Category != "" && transaction.Category != filter.Category {
			continue
		}
		if filter.Status != "" && transaction.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(transaction.Description), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, transaction)
	}
	sort.Slice(matched, func(left, right int) bool {
		return matched[left].CreatedAt.After(matched[right].CreatedAt)
	})
	total := int64(len(matched))
	start := filter.Page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (store *stubStore) SumTransactions(_ context.Context, query SumQuery) (decimal.Decimal, error) {
	if store.sumError != nil {
		return decimal.Zero, store.sumError
	}
	total := decimal.Zero
	for _, transaction := range store.transactions {
		if transaction.Type != query.Type || transaction.Status != query.Status {
			continue
		}
		if !query.From.IsZero() && transaction.Date.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && !transaction.Date.Before(query.To) {
			continue
		}
		total = total.Add(transaction.Amount)
	}
	return total, nil
}

func (store *stubStore) InsertExpense(_ context.Context, expense Expense) error {
	if store.insertExpenseError != nil {
		return store.insertExpenseError
	}
	store.expenses[expense.ID.String()] = expense
	return nil
}

func (store *stubStore) GetExpense(_ context.Context, id ExpenseID) (Expense, error) {
	expense, exists := store.expenses[id.String()]
	if !exists {
		return Expense{}, ErrExpenseNotFound
	}
	return expense, nil
}

func (store *stubStore) FindExpenseByTransaction(_ context.Context, id TransactionID) (Expense, error) {
	for _, expense := range store.expenses {
		if expense.RelatedTransaction == id {
			return expense, nil
		}
	}
	return Expense{}, ErrExpenseNotFound
}

func (store *stubStore) UpdateExpenseStatus(_ context.Context, id ExpenseID, from TransactionStatus, to TransactionStatus) error {
	expense, exists := store.expenses[id.String()]
	if !exists {
		return ErrExpenseNotFound
	}
	if expense.Status != from {
		return ErrStatusConflict
	}
	expense.Status = to
	store.expenses[id.String()] = expense
	return nil
}

func (store *stubStore) ListExpenses(_ context.Context, filter ExpenseFilter) ([]Expense, int64, error) {
	matched := make([]Expense, 0, len(store.expenses))
	for _, expense := range store.expenses {
		if filter.Category != "" && expense.Category != filter.Category {
			continue
		}
		if filter.Status != "" && expense.Status != filter.Status {
			continue
		}
		matched = append(matched, expense)
	}
	return matched, int64(len(matched)), nil
}

func (store *stubStore) SumExpensesByCategory(_ context.Context, status TransactionStatus, from time.Time, to time.Time) ([]CategoryTotal, error) {
	totals := map[Category]decimal.Decimal{}
	for _, expense := range store.expenses {
		if expense.Status != status || expense.Date.Before(from) || !expense.Date.Before(to) {
			continue
		}
		totals[expense.Category] = totals[expense.Category].Add(expense.Amount)
	}
	result := make([]CategoryTotal, 0, len(totals))
	for _, category := range ExpenseCategories {
		if amount, exists := totals[category]; exists {
			result = append(result, CategoryTotal{Category: category, Amount: amount})
		}
	}
	return result, nil
}

func mustNewService(test *testing.T, store Store, now time.Time, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() time.Time { return now }, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}

func mustAmount(test *testing.T, raw string) decimal.Decimal {
	test.Helper()
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		test.Fatalf("amount %q: %v", raw, err)
	}
	return amount
}

func mustTransactionID(test *testing.T, raw string) TransactionID {
	test.Helper()
	id, err := NewTransactionID(raw)
	if err != nil {
		test.Fatalf("transaction id: %v", err)
	}
	return id
}
