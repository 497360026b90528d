package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore implements ledger.Store using GORM.
type LedgerStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction.
func (store *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &LedgerStore{db: transaction})
	})
}

func (store *LedgerStore) NextSequence(ctx context.Context, name string, seed ledger.SequenceSeed) (int64, error) {
	return nextSequence(ctx, store.db, name, seed)
}

func (store *LedgerStore) InsertTransaction(ctx context.Context, transaction ledger.Transaction) error {
	return insertTransaction(ctx, store.db, transaction)
}

func (store *LedgerStore) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	var model Transaction
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_id = ?", id.String()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, ledger.ErrTransactionNotFound)
	}
	if err != nil {
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	transaction, err := mapTransaction(model)
	if err != nil {
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transaction, nil
}

func (store *LedgerStore) UpdateTransactionStatus(ctx context.Context, id ledger.TransactionID, from ledger.TransactionStatus, to ledger.TransactionStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Where("transaction_id = ? AND status = ?", id.String(), from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdateStatus, ledger.ErrStatusConflict)
	}
	return nil
}

func (store *LedgerStore) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, int64, error) {
	query := store.db.WithContext(ctx).Model(&Transaction{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type.String())
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category.String())
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.Search != "" {
		pattern := searchPattern(filter.Search)
		query = query.Where(`(lower(transaction_id) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\' OR lower(coalesce(vendor, '')) LIKE ? ESCAPE '\')`, pattern, pattern, pattern)
	}
	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapStoreError(errorSubjectTransaction, errorCodeCount, err)
	}
	var rows []Transaction
	err := query.
		Order("date DESC").
		Order("transaction_id DESC").
		Offset(filter.Page.Offset()).
		Limit(filter.Page.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapTransaction(row)
		if err != nil {
			return nil, 0, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, total, nil
}

// SumTransactions totals amounts matching query. Bounds are [From, To).
func (store *LedgerStore) SumTransactions(ctx context.Context, query ledger.SumQuery) (decimal.Decimal, error) {
	statement := store.db.WithContext(ctx).Model(&Transaction{}).Select("coalesce(sum(amount), 0) as total")
	if query.Type != "" {
		statement = statement.Where("type = ?", query.Type.String())
	}
	if query.Status != "" {
		statement = statement.Where("status = ?", query.Status.String())
	}
	if !query.From.IsZero() {
		statement = statement.Where("date >= ?", query.From.UTC())
	}
	if !query.To.IsZero() {
		statement = statement.Where("date < ?", query.To.UTC())
	}
	var sum sqlSum
	if err := statement.Scan(&sum).Error; err != nil {
		return decimal.Zero, wrapStoreError(errorSubjectTransaction, errorCodeSum, err)
	}
	return sum.Total, nil
}

func (store *LedgerStore) InsertExpense(ctx context.Context, expense ledger.Expense) error {
	model := Expense{
		ExpenseID:            expense.ID.String(),
		Amount:               expense.Amount,
		Date:                 expense.Date.UTC(),
		Description:          expense.Description,
		Category:             expense.Category.String(),
		Vendor:               expense.Vendor,
		PaymentMethod:        expense.PaymentMethod.String(),
		Status:               expense.Status.String(),
		RelatedTransactionID: expense.RelatedTransaction.String(),
		CreatedAt:            expense.CreatedAt.UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if _, conflict := uniqueViolation(err); conflict {
		return wrapStoreError(errorSubjectExpense, errorCodeDuplicate, ledger.ErrDuplicateTransactionID)
	}
	if err != nil {
		return wrapStoreError(errorSubjectExpense, errorCodeInsert, err)
	}
	return nil
}

func (store *LedgerStore) GetExpense(ctx context.Context, id ledger.ExpenseID) (ledger.Expense, error) {
	return store.findExpense(store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("expense_id = ?", id.String()))
}

func (store *LedgerStore) FindExpenseByTransaction(ctx context.Context, id ledger.TransactionID) (ledger.Expense, error) {
	return store.findExpense(store.db.WithContext(ctx).Where("related_transaction_id = ?", id.String()))
}

func (store *LedgerStore) findExpense(query *gorm.DB) (ledger.Expense, error) {
	var model Expense
	err := query.Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Expense{}, wrapStoreError(errorSubjectExpense, errorCodeGet, ledger.ErrExpenseNotFound)
	}
	if err != nil {
		return ledger.Expense{}, wrapStoreError(errorSubjectExpense, errorCodeGet, err)
	}
	expense, err := mapExpense(model)
	if err != nil {
		return ledger.Expense{}, wrapStoreError(errorSubjectExpense, errorCodeInvalid, err)
	}
	return expense, nil
}

func (store *LedgerStore) UpdateExpenseStatus(ctx context.Context, id ledger.ExpenseID, from ledger.TransactionStatus, to ledger.TransactionStatus) error {
	result := store.db.WithContext(ctx).
		Model(&Expense{}).
		Where("expense_id = ? AND status = ?", id.String(), from.String()).
		Update("status", to.String())
	if result.Error != nil {
		return wrapStoreError(errorSubjectExpense, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectExpense, errorCodeUpdateStatus, ledger.ErrStatusConflict)
	}
	return nil
}

func (store *LedgerStore) ListExpenses(ctx context.Context, filter ledger.ExpenseFilter) ([]ledger.Expense, int64, error) {
	query := store.db.WithContext(ctx).Model(&Expense{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category.String())
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.Search != "" {
		pattern := searchPattern(filter.Search)
		query = query.Where(`(lower(expense_id) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\' OR lower(vendor) LIKE ? ESCAPE '\')`, pattern, pattern, pattern)
	}
	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapStoreError(errorSubjectExpense, errorCodeCount, err)
	}
	var rows []Expense
	err := query.
		Order("date DESC").
		Order("expense_id DESC").
		Offset(filter.Page.Offset()).
		Limit(filter.Page.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, wrapStoreError(errorSubjectExpense, errorCodeList, err)
	}
	expenses := make([]ledger.Expense, 0, len(rows))
	for _, row := range rows {
		expense, err := mapExpense(row)
		if err != nil {
			return nil, 0, wrapStoreError(errorSubjectExpense, errorCodeInvalid, err)
		}
		expenses = append(expenses, expense)
	}
	return expenses, total, nil
}

func (store *LedgerStore) SumExpensesByCategory(ctx context.Context, status ledger.TransactionStatus, from time.Time, to time.Time) ([]ledger.CategoryTotal, error) {
	var rows []categorySum
	err := store.db.WithContext(ctx).
		Model(&Expense{}).
		Select("category, coalesce(sum(amount), 0) as total").
		Where("status = ? AND date >= ? AND date < ?", status.String(), from.UTC(), to.UTC()).
		Group("category").
		Order("category ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectExpense, errorCodeSum, err)
	}
	totals := make([]ledger.CategoryTotal, 0, len(rows))
	for _, row := range rows {
		category, err := ledger.ParseCategory(row.Category)
		if err != nil {
			return nil, wrapStoreError(errorSubjectExpense, errorCodeInvalid, err)
		}
		totals = append(totals, ledger.CategoryTotal{Category: category, Amount: row.Total.Round(2)})
	}
	return totals, nil
}

type sqlSum struct {
	Total decimal.Decimal
}

type categorySum struct {
	Category string
	Total    decimal.Decimal
}

type gatewayDetailsRecord struct {
	OrderID   string          `json:"orderId"`
	PaymentID string          `json:"paymentId"`
	Fee       decimal.Decimal `json:"fee"`
	FeePaidBy string          `json:"feePaidBy"`
}

func insertTransaction(ctx context.Context, db *gorm.DB, transaction ledger.Transaction) error {
	model, err := transactionModel(transaction)
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	err = db.WithContext(ctx).Create(&model).Error
	if _, conflict := uniqueViolation(err); conflict {
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrDuplicateTransactionID)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func transactionModel(transaction ledger.Transaction) (Transaction, error) {
	model := Transaction{
		TransactionID:  transaction.ID.String(),
		Amount:         transaction.Amount,
		Date:           transaction.Date.UTC(),
		Description:    transaction.Description,
		Category:       transaction.Category.String(),
		PaymentMethod:  transaction.PaymentMethod.String(),
		Type:           transaction.Type.String(),
		Status:         transaction.Status.String(),
		RelatedBooking: stringPointer(transaction.RelatedBooking),
		Vendor:         stringPointer(transaction.Vendor),
		CreatedAt:      transaction.CreatedAt.UTC(),
	}
	if transaction.GatewayDetails != nil {
		raw, err := json.Marshal(gatewayDetailsRecord{
			OrderID:   transaction.GatewayDetails.OrderID,
			PaymentID: transaction.GatewayDetails.PaymentID,
			Fee:       transaction.GatewayDetails.Fee,
			FeePaidBy: string(transaction.GatewayDetails.FeePaidBy),
		})
		if err != nil {
			return Transaction{}, err
		}
		model.GatewayDetails = datatypes.JSON(raw)
	}
	return model, nil
}

func mapTransaction(model Transaction) (ledger.Transaction, error) {
	id, err := ledger.NewTransactionID(model.TransactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	transactionType, err := ledger.ParseTransactionType(model.Type)
	if err != nil {
		return ledger.Transaction{}, err
	}
	status, err := ledger.ParseTransactionStatus(model.Status)
	if err != nil {
		return ledger.Transaction{}, err
	}
	category, err := ledger.ParseCategory(model.Category)
	if err != nil {
		return ledger.Transaction{}, err
	}
	method, err := ledger.ParsePaymentMethod(model.PaymentMethod)
	if err != nil {
		return ledger.Transaction{}, err
	}
	transaction := ledger.Transaction{
		ID:             id,
		Amount:         model.Amount,
		Date:           model.Date.UTC(),
		Description:    model.Description,
		Category:       category,
		PaymentMethod:  method,
		Type:           transactionType,
		Status:         status,
		RelatedBooking: stringValue(model.RelatedBooking),
		Vendor:         stringValue(model.Vendor),
		CreatedAt:      model.CreatedAt.UTC(),
	}
	if len(model.GatewayDetails) > 0 && string(model.GatewayDetails) != "null" {
		var record gatewayDetailsRecord
		if err := json.Unmarshal(model.GatewayDetails, &record); err != nil {
			return ledger.Transaction{}, err
		}
		transaction.GatewayDetails = &ledger.GatewayDetails{
			OrderID:   record.OrderID,
			PaymentID: record.PaymentID,
			Fee:       record.Fee,
			FeePaidBy: ledger.FeePayer(record.FeePaidBy),
		}
	}
	return transaction, nil
}

func mapExpense(model Expense) (ledger.Expense, error) {
	id, err := ledger.NewExpenseID(model.ExpenseID)
	if err != nil {
		return ledger.Expense{}, err
	}
	relatedTransaction, err := ledger.NewTransactionID(model.RelatedTransactionID)
	if err != nil {
		return ledger.Expense{}, err
	}
	status, err := ledger.ParseTransactionStatus(model.Status)
	if err != nil {
		return ledger.Expense{}, err
	}
	category, err := ledger.ParseCategory(model.Category)
	if err != nil {
		return ledger.Expense{}, err
	}
	method, err := ledger.ParsePaymentMethod(model.PaymentMethod)
	if err != nil {
		return ledger.Expense{}, err
	}
	return ledger.Expense{
		ID:                 id,
		Amount:             model.Amount,
		Date:               model.Date.UTC(),
		Description:        model.Description,
		Category:           category,
		Vendor:             model.Vendor,
		PaymentMethod:      method,
		Status:             status,
		RelatedTransaction: relatedTransaction,
		CreatedAt:          model.CreatedAt.UTC(),
	}, nil
}
