package httpapi

import (
	"net/http"

	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/gin-gonic/gin"
)

func (server *Server) handleTransactionSummary(ctx *gin.Context) {
	period, err := ledger.ParsePeriod(ctx.Query("period"))
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	summary, err := server.ledger.Summary(ctx.Request.Context(), period)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{
		"period":          summary.Period.String(),
		"window":          newWindowPayload(summary.Current),
		"totalRevenue":    summary.TotalRevenue,
		"totalExpenses":   summary.TotalExpenses,
		"netProfit":       summary.NetProfit,
		"pendingPayments": summary.PendingPayments,
		"revenueChange":   summary.RevenueChange,
		"expensesChange":  summary.ExpensesChange,
		"profitChange":    summary.ProfitChange,
	})
}

func (server *Server) handleListTransactions(ctx *gin.Context) {
	var query ledgerListQuery
	if err := bindQuery(ctx, &query); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	filter, err := transactionFilter(query)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	transactions, pagination, err := server.ledger.ListTransactions(ctx.Request.Context(), filter)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	payloads := make([]transactionPayload, 0, len(transactions))
	for _, transaction := range transactions {
		payloads = append(payloads, newTransactionPayload(transaction))
	}
	respond(ctx, http.StatusOK, gin.H{"transactions": payloads, "pagination": newPaginationPayload(pagination)})
}

func transactionFilter(query ledgerListQuery) (ledger.TransactionFilter, error) {
	page, err := ledger.NewPage(query.Page, query.Limit)
	if err != nil {
		return ledger.TransactionFilter{}, err
	}
	filter := ledger.TransactionFilter{Page: page, Search: query.Search}
	if query.Type != "" {
		if filter.Type, err = ledger.ParseTransactionType(query.Type); err != nil {
			return ledger.TransactionFilter{}, err
		}
	}
	if query.Category != "" {
		if filter.Category, err = ledger.ParseCategory(query.Category); err != nil {
			return ledger.TransactionFilter{}, err
		}
	}
	if query.Status != "" {
		if filter.Status, err = ledger.ParseTransactionStatus(query.Status); err != nil {
			return ledger.TransactionFilter{}, err
		}
	}
	return filter, nil
}

func (server *Server) handleCreateTransaction(ctx *gin.Context) {
	var request transactionRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	input, err := server.transactionInput(request)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	transaction, err := server.ledger.RecordTransaction(ctx.Request.Context(), input)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, gin.H{"transaction": newTransactionPayload(transaction)})
}

func (server *Server) transactionInput(request transactionRequest) (ledger.TransactionInput, error) {
	date, err := parseInstant(request.Date, server.config.Location)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	category, err := ledger.ParseCategory(request.Category)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	method, err := ledger.ParsePaymentMethod(request.PaymentMethod)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	transactionType, err := ledger.ParseTransactionType(request.Type)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	status, err := parseStatusOrPending(request.Status)
	if err != nil {
		return ledger.TransactionInput{}, err
	}
	return ledger.TransactionInput{
		Amount:         request.Amount,
		Date:           date,
		Description:    request.Description,
		Category:       category,
		PaymentMethod:  method,
		Type:           transactionType,
		Status:         status,
		RelatedBooking: request.RelatedBooking,
		Vendor:         request.Vendor,
	}, nil
}

func parseStatusOrPending(raw string) (ledger.TransactionStatus, error) {
	if raw == "" {
		return ledger.StatusPending, nil
	}
	return ledger.ParseTransactionStatus(raw)
}

func (server *Server) handleUpdateTransactionStatus(ctx *gin.Context) {
	id, err := ledger.NewTransactionID(ctx.Param("id"))
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	var request statusRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	status, err := ledger.ParseTransactionStatus(request.Status)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	transaction, err := server.ledger.UpdateTransactionStatus(ctx.Request.Context(), id, status)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"transaction": newTransactionPayload(transaction)})
}

func (server *Server) handleExpenseSummary(ctx *gin.Context) {
	period, err := ledger.ParsePeriod(ctx.Query("period"))
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	summary, err := server.ledger.ExpenseSummary(ctx.Request.Context(), period)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	byCategory := make([]categoryTotalPayload, 0, len(summary.ByCategory))
	for _, total := range summary.ByCategory {
		byCategory = append(byCategory, categoryTotalPayload{Category: total.Category.String(), Amount: total.Amount})
	}
	respond(ctx, http.StatusOK, gin.H{
		"period":          summary.Period.String(),
		"window":          newWindowPayload(summary.Current),
		"totalExpenses":   summary.TotalExpenses,
		"pendingExpenses": summary.PendingExpenses,
		"change":          summary.Change,
		"byCategory":      byCategory,
	})
}

func (server *Server) handleListExpenses(ctx *gin.Context) {
	var query ledgerListQuery
	if err := bindQuery(ctx, &query); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	transactionQuery, err := transactionFilter(query)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	expenses, pagination, err := server.ledger.ListExpenses(ctx.Request.Context(), ledger.ExpenseFilter{
		Page:     transactionQuery.Page,
		Category: transactionQuery.Category,
		Status:   transactionQuery.Status,
		Search:   transactionQuery.Search,
	})
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	payloads := make([]expensePayload, 0, len(expenses))
	for _, expense := range expenses {
		payloads = append(payloads, newExpensePayload(expense))
	}
	respond(ctx, http.StatusOK, gin.H{"expenses": payloads, "pagination": newPaginationPayload(pagination)})
}

func (server *Server) handleCreateExpense(ctx *gin.Context) {
	var request expenseRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	date, err := parseInstant(request.Date, server.config.Location)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	category, err := ledger.ParseCategory(request.Category)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	method, err := ledger.ParsePaymentMethod(request.PaymentMethod)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	status, err := parseStatusOrPending(request.Status)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	expense, err := server.ledger.RecordExpense(ctx.Request.Context(), ledger.ExpenseInput{
		Amount:        request.Amount,
		Date:          date,
		Description:   request.Description,
		Category:      category,
		Vendor:        request.Vendor,
		PaymentMethod: method,
		Status:        status,
	})
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, gin.H{"expense": newExpensePayload(expense)})
}

func (server *Server) handleUpdateExpenseStatus(ctx *gin.Context) {
	id, err := ledger.NewExpenseID(ctx.Param("id"))
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	var request statusRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	status, err := ledger.ParseTransactionStatus(request.Status)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	expense, err := server.ledger.UpdateExpenseStatus(ctx.Request.Context(), id, status)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"expense": newExpensePayload(expense)})
}
