package ledger

const (
	operationRecordTransaction       = "record_transaction"
	operationUpdateTransactionStatus = "update_transaction_status"
	operationRecordExpense           = "record_expense"
	operationUpdateExpenseStatus     = "update_expense_status"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// SequenceTransactions names the counter behind TRX- identifiers.
	SequenceTransactions = "TRX"
	// SequenceExpenses names the counter behind EXP- identifiers.
	SequenceExpenses = "EXP"

	transactionIDPrefix = "TRX-"
	expenseIDPrefix     = "EXP-"

	defaultPageLimit = 20
	maxPageLimit     = 100

	errorOperationService = "service"
	errorSubjectStatus    = "status"
	errorSubjectSummary   = "summary"
	errorCodeTransition   = "transition"
	errorCodeSum          = "sum"
)
