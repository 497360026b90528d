package ledger

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	transactionIDPattern = regexp.MustCompile(`^TRX-\d+$`)
	expenseIDPattern     = regexp.MustCompile(`^EXP-\d+$`)
)

// TransactionID identifies a money movement, formatted TRX-<n>.
type TransactionID struct {
	value string
}

// ExpenseID identifies an expense, formatted EXP-<n>.
type ExpenseID struct {
	value string
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return TransactionID{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	if !transactionIDPattern.MatchString(trimmed) {
		return TransactionID{}, fmt.Errorf("%w: %q", ErrInvalidTransactionID, raw)
	}
	return TransactionID{value: trimmed}, nil
}

// FormatTransactionID renders a sequence number as a transaction id.
func FormatTransactionID(sequence int64) TransactionID {
	return TransactionID{value: transactionIDPrefix + strconv.FormatInt(sequence, 10)}
}

// String returns the normalized identifier.
func (id TransactionID) String() string {
	return id.value
}

// IsZero reports whether the id is unset.
func (id TransactionID) IsZero() bool {
	return id.value == ""
}

// NewExpenseID validates and normalizes an expense id.
func NewExpenseID(raw string) (ExpenseID, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return ExpenseID{}, fmt.Errorf("%w: empty value", ErrInvalidExpenseID)
	}
	if !expenseIDPattern.MatchString(trimmed) {
		return ExpenseID{}, fmt.Errorf("%w: %q", ErrInvalidExpenseID, raw)
	}
	return ExpenseID{value: trimmed}, nil
}

// FormatExpenseID renders a sequence number as an expense id.
func FormatExpenseID(sequence int64) ExpenseID {
	return ExpenseID{value: expenseIDPrefix + strconv.FormatInt(sequence, 10)}
}

// String returns the normalized identifier.
func (id ExpenseID) String() string {
	return id.value
}

// NewAmount validates a money amount and rounds it to paise.
func NewAmount(raw decimal.Decimal) (decimal.Decimal, error) {
	if !raw.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return raw.Round(2), nil
}

// TransactionType separates money in from money out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// ParseTransactionType converts a raw string into a TransactionType.
func ParseTransactionType(raw string) (TransactionType, error) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(raw))) {
	case TransactionIncome:
		return TransactionIncome, nil
	case TransactionExpense:
		return TransactionExpense, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
	}
}

// String returns the raw value.
func (transactionType TransactionType) String() string {
	return string(transactionType)
}

// TransactionStatus tracks settlement of a transaction.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "Pending"
	StatusPaid       TransactionStatus = "Paid"
	StatusFailed     TransactionStatus = "Failed"
	StatusRefunded   TransactionStatus = "Refunded"
	StatusProcessing TransactionStatus = "Processing"
)

var transactionStatuses = []TransactionStatus{StatusPending, StatusPaid, StatusFailed, StatusRefunded, StatusProcessing}

// ParseTransactionStatus converts a raw string into a TransactionStatus (case-insensitive).
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	trimmed := strings.TrimSpace(raw)
	for _, status := range transactionStatuses {
		if strings.EqualFold(trimmed, string(status)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTransactionStatus, raw)
}

// String returns the raw value.
func (status TransactionStatus) String() string {
	return string(status)
}

// allowedStatusTransitions lists the moves a settled or pending record may make.
var allowedStatusTransitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:    {StatusPaid, StatusFailed, StatusProcessing},
	StatusProcessing: {StatusPaid, StatusFailed},
	StatusPaid:       {StatusRefunded},
	StatusFailed:     {StatusPending},
	StatusRefunded:   {},
}

// CanTransitionTo reports whether a status may move to next.
func (status TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range allowedStatusTransitions[status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Category groups transactions for reporting.
type Category string

const (
	CategoryBooking     Category = "Booking"
	CategoryMaintenance Category = "Maintenance"
	CategoryUtility     Category = "Utility"
	CategorySalary      Category = "Salary"
	CategoryOther       Category = "Other"
	CategoryGatewayFee  Category = "GatewayFee"
)

var categories = []Category{CategoryBooking, CategoryMaintenance, CategoryUtility, CategorySalary, CategoryOther, CategoryGatewayFee}

// ExpenseCategories lists the categories an Expense record may carry.
var ExpenseCategories = []Category{CategoryMaintenance, CategoryUtility, CategorySalary, CategoryOther}

// ParseCategory converts a raw string into a Category (case-insensitive).
func ParseCategory(raw string) (Category, error) {
	trimmed := strings.TrimSpace(raw)
	for _, category := range categories {
		if strings.EqualFold(trimmed, string(category)) {
			return category, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
}

// IsExpenseCategory reports whether the category is valid for an Expense record.
func (category Category) IsExpenseCategory() bool {
	for _, expenseCategory := range ExpenseCategories {
		if category == expenseCategory {
			return true
		}
	}
	return false
}

// String returns the raw value.
func (category Category) String() string {
	return string(category)
}

// PaymentMethod records how money moved.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "Cash"
	PaymentUPI          PaymentMethod = "UPI"
	PaymentCard         PaymentMethod = "Card"
	PaymentBankTransfer PaymentMethod = "BankTransfer"
	PaymentOnline       PaymentMethod = "Online"
)

var paymentMethods = []PaymentMethod{PaymentCash, PaymentUPI, PaymentCard, PaymentBankTransfer, PaymentOnline}

// ParsePaymentMethod converts a raw string into a PaymentMethod (case-insensitive).
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	trimmed := strings.TrimSpace(raw)
	for _, method := range paymentMethods {
		if strings.EqualFold(trimmed, string(method)) {
			return method, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, raw)
}

// String returns the raw value.
func (method PaymentMethod) String() string {
	return string(method)
}

// FeePayer names who bore the gateway fee.
type FeePayer string

const (
	FeePaidByCustomer FeePayer = "customer"
	FeePaidByTurf     FeePayer = "turf"
)

// GatewayDetails links a transaction to a gateway payment.
type GatewayDetails struct {
	OrderID   string
	PaymentID string
	Fee       decimal.Decimal
	FeePaidBy FeePayer
}

// Transaction is a single recorded money movement.
type Transaction struct {
	ID             TransactionID
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	Category       Category
	PaymentMethod  PaymentMethod
	Type           TransactionType
	Status         TransactionStatus
	RelatedBooking string
	Vendor         string
	GatewayDetails *GatewayDetails
	CreatedAt      time.Time
}

// TransactionInput carries the caller-supplied fields of a new transaction.
type TransactionInput struct {
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	Category       Category
	PaymentMethod  PaymentMethod
	Type           TransactionType
	Status         TransactionStatus
	RelatedBooking string
	Vendor         string
	GatewayDetails *GatewayDetails
}

// NewTransaction validates input and builds a Transaction.
func NewTransaction(id TransactionID, input TransactionInput, createdAt time.Time) (Transaction, error) {
	if id.IsZero() {
		return Transaction{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	amount, err := NewAmount(input.Amount)
	if err != nil {
		return Transaction{}, err
	}
	if _, err := ParseTransactionType(input.Type.String()); err != nil {
		return Transaction{}, err
	}
	if _, err := ParseCategory(input.Category.String()); err != nil {
		return Transaction{}, err
	}
	if _, err := ParsePaymentMethod(input.PaymentMethod.String()); err != nil {
		return Transaction{}, err
	}
	if _, err := ParseTransactionStatus(input.Status.String()); err != nil {
		return Transaction{}, err
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return Transaction{}, fmt.Errorf("%w: empty value", ErrInvalidDescription)
	}
	vendor := strings.TrimSpace(input.Vendor)
	if input.Type == TransactionExpense && vendor == "" {
		return Transaction{}, ErrVendorRequired
	}
	if input.Type == TransactionIncome && vendor != "" {
		return Transaction{}, ErrVendorNotAllowed
	}
	date := input.Date
	if date.IsZero() {
		date = createdAt
	}
	return Transaction{
		ID:             id,
		Amount:         amount,
		Date:           date,
		Description:    description,
		Category:       input.Category,
		PaymentMethod:  input.PaymentMethod,
		Type:           input.Type,
		Status:         input.Status,
		RelatedBooking: strings.TrimSpace(input.RelatedBooking),
		Vendor:         vendor,
		GatewayDetails: input.GatewayDetails,
		CreatedAt:      createdAt,
	}, nil
}

// Expense is an outgoing payment that owns a companion Transaction.
type Expense struct {
	ID                 ExpenseID
	Amount             decimal.Decimal
	Date               time.Time
	Description        string
	Category           Category
	Vendor             string
	PaymentMethod      PaymentMethod
	Status             TransactionStatus
	RelatedTransaction TransactionID
	CreatedAt          time.Time
}

// ExpenseInput carries the caller-supplied fields of a new expense.
type ExpenseInput struct {
	Amount        decimal.Decimal
	Date          time.Time
	Description   string
	Category      Category
	Vendor        string
	PaymentMethod PaymentMethod
	Status        TransactionStatus
}

// TransactionInput derives the companion transaction for an expense.
func (input ExpenseInput) TransactionInput() TransactionInput {
	return TransactionInput{
		Amount:        input.Amount,
		Date:          input.Date,
		Description:   input.Description,
		Category:      input.Category,
		PaymentMethod: input.PaymentMethod,
		Type:          TransactionExpense,
		Status:        input.Status,
		Vendor:        input.Vendor,
	}
}

// NewExpense validates input and builds an Expense owning relatedTransaction.
func NewExpense(id ExpenseID, relatedTransaction TransactionID, input ExpenseInput, createdAt time.Time) (Expense, error) {
	if id.value == "" {
		return Expense{}, fmt.Errorf("%w: empty value", ErrInvalidExpenseID)
	}
	if relatedTransaction.IsZero() {
		return Expense{}, fmt.Errorf("%w: missing companion transaction", ErrInvalidTransactionID)
	}
	if !input.Category.IsExpenseCategory() {
		return Expense{}, fmt.Errorf("%w: %q is not an expense category", ErrInvalidCategory, input.Category)
	}
	companion, err := NewTransaction(relatedTransaction, input.TransactionInput(), createdAt)
	if err != nil {
		return Expense{}, err
	}
	return Expense{
		ID:                 id,
		Amount:             companion.Amount,
		Date:               companion.Date,
		Description:        companion.Description,
		Category:           companion.Category,
		Vendor:             companion.Vendor,
		PaymentMethod:      companion.PaymentMethod,
		Status:             companion.Status,
		RelatedTransaction: relatedTransaction,
		CreatedAt:          createdAt,
	}, nil
}

// Page selects one page of a listing.
type Page struct {
	Number int
	Limit  int
}

// NewPage normalizes paging input, defaulting empty values.
func NewPage(number int, limit int) (Page, error) {
	if number < 0 || limit < 0 {
		return Page{}, fmt.Errorf("%w: negative value", ErrInvalidPage)
	}
	if number == 0 {
		number = 1
	}
	if limit == 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		return Page{}, fmt.Errorf("%w: limit exceeds maximum: %d > %d", ErrInvalidPage, limit, maxPageLimit)
	}
	return Page{Number: number, Limit: limit}, nil
}

// Offset returns the number of rows preceding this page.
func (page Page) Offset() int {
	return (page.Number - 1) * page.Limit
}

// Pagination describes a listing result.
type Pagination struct {
	Total int64
	Page  int
	Limit int
	Pages int
}

// NewPagination summarizes total rows for a page.
func NewPagination(page Page, total int64) Pagination {
	pages := 0
	if page.Limit > 0 {
		pages = int((total + int64(page.Limit) - 1) / int64(page.Limit))
	}
	return Pagination{Total: total, Page: page.Number, Limit: page.Limit, Pages: pages}
}

// TransactionFilter narrows a transaction listing. Zero values match everything.
type TransactionFilter struct {
	Page     Page
	Type     TransactionType
	Category Category
	Status   TransactionStatus
	Search   string
}

// ExpenseFilter narrows an expense listing. Zero values match everything.
type ExpenseFilter struct {
	Page     Page
	Category Category
	Status   TransactionStatus
	Search   string
}

// SumQuery selects transactions to total. A zero bound is open.
type SumQuery struct {
	Type   TransactionType
	Status TransactionStatus
	From   time.Time
	To     time.Time
}

// CategoryTotal is a per-category sum.
type CategoryTotal struct {
	Category Category
	Amount   decimal.Decimal
}

// SequenceSeed supplies the starting value for a counter that does not exist yet.
type SequenceSeed func(ctx context.Context) (int64, error)

// SequenceStore mints monotonically increasing numbers per name.
type SequenceStore interface {
	NextSequence(ctx context.Context, name string, seed SequenceSeed) (int64, error)
}

// TransactionWriter is the subset of persistence other domains use to record money movement.
type TransactionWriter interface {
	SequenceStore
	InsertTransaction(ctx context.Context, transaction Transaction) error
}

// Store is the persistence contract used by Service.
type Store interface {
	TransactionWriter
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetTransaction(ctx context.Context, id TransactionID) (Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id TransactionID, from TransactionStatus, to TransactionStatus) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, int64, error)
	SumTransactions(ctx context.Context, query SumQuery) (decimal.Decimal, error)
	InsertExpense(ctx context.Context, expense Expense) error
	GetExpense(ctx context.Context, id ExpenseID) (Expense, error)
	FindExpenseByTransaction(ctx context.Context, id TransactionID) (Expense, error)
	UpdateExpenseStatus(ctx context.Context, id ExpenseID, from TransactionStatus, to TransactionStatus) error
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, int64, error)
	SumExpensesByCategory(ctx context.Context, status TransactionStatus, from time.Time, to time.Time) ([]CategoryTotal, error)
}
