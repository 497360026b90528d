package ledger

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// ChangePercent compares current against previous as a whole percentage.
// Growth from zero reports 100 and flat zero reports 0. Halves round up.
func ChangePercent(current decimal.Decimal, previous decimal.Decimal) int64 {
	if previous.IsZero() {
		if current.IsPositive() {
			return 100
		}
		return 0
	}
	ratio := current.Sub(previous).Div(previous).Mul(hundred)
	return ratio.Add(half).Floor().IntPart()
}

// Summary is the financial overview of one period.
type Summary struct {
	Period          Period
	Current         Window
	Previous        Window
	TotalRevenue    decimal.Decimal
	TotalExpenses   decimal.Decimal
	NetProfit       decimal.Decimal
	PendingPayments decimal.Decimal
	RevenueChange   int64
	ExpensesChange  int64
	ProfitChange    int64
}

// ExpenseSummary is the spending overview of one period.
type ExpenseSummary struct {
	Period          Period
	Current         Window
	TotalExpenses   decimal.Decimal
	PendingExpenses decimal.Decimal
	Change          int64
	ByCategory      []CategoryTotal
}
