package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"smartfin/internal/core"
)

type Risk string

const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

const (
	noBudgetIssues = "Great job staying within your budget!"

	// topCategoryShare is the part of the monthly expense limit a single
	// category may take before a reduction is suggested.
	topCategoryShare = 0.3
)

type (
	// CategoryShare is one row of an expense breakdown. Percentage is in
	// [0, 100] with one decimal.
	CategoryShare struct {
		Category   string  `json:"category"`
		Amount     float64 `json:"amount"`
		Percentage float64 `json:"percentage"`
	}

	// Summary is the current-month dashboard view.
	Summary struct {
		Month             string  `json:"month"`
		Income            float64 `json:"income"`
		Expenses          float64 `json:"expenses"`
		Net               float64 `json:"net"`
		IncomeProgress    float64 `json:"incomeProgress"`
		ExpenseProgress   float64 `json:"expenseProgress"`
		RemainingBudget   float64 `json:"remainingBudget"`
		OverExpenseLimit  bool    `json:"overExpenseLimit"`
		Risk              Risk    `json:"risk"`
		TransactionCount  int     `json:"transactionCount"`
		TotalTransactions int     `json:"totalTransactions"`
	}

	InvoiceSummary struct {
		Count   int     `json:"count"`
		Total   float64 `json:"total"`
		Paid    float64 `json:"paid"`
		Pending float64 `json:"pending"`
		Overdue float64 `json:"overdue"`
	}
)

// ProjectMonths extends a historical series by n projected months.
// Income follows half the net trend per month, expenses grow 2% per month.
// Series shorter than two points cannot carry a trend and project nothing.
func ProjectMonths(series []core.MonthlyPoint, n int, ref time.Time) []core.MonthlyPoint {
	if len(series) < 2 || n <= 0 {
		return []core.MonthlyPoint{}
	}
	var sumIncome, sumExpenses float64
	for _, p := range series {
		sumIncome += p.Income
		sumExpenses += p.Expenses
	}
	count := float64(len(series))
	avgIncome := sumIncome / count
	avgExpenses := sumExpenses / count
	trend := (series[len(series)-1].Net - series[0].Net) / count

	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]core.MonthlyPoint, 0, n)
	for i := 1; i <= n; i++ {
		m := first.AddDate(0, i, 0)
		income := avgIncome + trend*float64(i)*0.5
		expenses := avgExpenses * (1 + float64(i)*0.02)
		out = append(out, core.MonthlyPoint{
			Month:     m.Format(MonthLabelLayout),
			Year:      m.Year(),
			MonthNum:  int(m.Month()),
			Income:    round2(math.Max(0, income)),
			Expenses:  round2(math.Max(0, expenses)),
			Net:       round2(income - expenses),
			Projected: true,
		})
	}
	return out
}

// ExpenseBreakdown ranks expense categories by amount, largest first, and
// keeps at most limit rows. limit <= 0 keeps everything.
func ExpenseBreakdown(txs []core.Transaction, limit int) []CategoryShare {
	total := TotalByType(txs, core.Expense)
	rows := make([]CategoryShare, 0)
	for cat, agg := range ByCategory(expensesOnly(txs)) {
		pct := 0.0
		if total > 0 {
			pct = math.Round(agg.Expense/total*1000) / 10
		}
		rows = append(rows, CategoryShare{Category: cat, Amount: agg.Expense, Percentage: pct})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Amount != rows[j].Amount {
			return rows[i].Amount > rows[j].Amount
		}
		return rows[i].Category < rows[j].Category
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func expensesOnly(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Type == core.Expense {
			out = append(out, tx)
		}
	}
	return out
}

// RiskLevel classifies a monthly net balance.
func RiskLevel(net float64) Risk {
	switch {
	case net > 1000:
		return RiskLow
	case net > 0:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Summarize builds the dashboard numbers for the month containing ref.
func Summarize(txs []core.Transaction, p core.UserProfile, ref time.Time) Summary {
	month := CurrentMonthTransactions(txs, ref)
	income := TotalByType(month, core.Income)
	expenses := TotalByType(month, core.Expense)
	net := round2(income - expenses)

	s := Summary{
		Month:             ref.Format(MonthLabelLayout),
		Income:            income,
		Expenses:          expenses,
		Net:               net,
		IncomeProgress:    ProgressPercentage(income, p.MonthlyIncomeGoal),
		ExpenseProgress:   ProgressPercentage(expenses, p.MonthlyExpenseLimit),
		Risk:              RiskLevel(net),
		TransactionCount:  len(month),
		TotalTransactions: len(txs),
	}
	if p.MonthlyExpenseLimit > 0 {
		s.RemainingBudget = round2(p.MonthlyExpenseLimit - expenses)
		s.OverExpenseLimit = expenses > p.MonthlyExpenseLimit
	}
	return s
}

// BudgetRecommendations returns short advice lines derived from expense
// totals and the profile's monthly expense limit. It never returns an
// empty slice.
func BudgetRecommendations(txs []core.Transaction, p core.UserProfile) []string {
	recs := make([]string, 0, 2)
	limit := p.MonthlyExpenseLimit

	breakdown := ExpenseBreakdown(txs, 1)
	if len(breakdown) > 0 && breakdown[0].Amount > limit*topCategoryShare {
		recs = append(recs, fmt.Sprintf("Consider reducing %s expenses by 10-15%%", breakdown[0].Category))
	}

	total := TotalByType(txs, core.Expense)
	if limit > 0 && total > limit {
		recs = append(recs, fmt.Sprintf("You're %.1f%% over your monthly limit", (total/limit-1)*100))
	}

	if len(recs) == 0 {
		recs = append(recs, noBudgetIssues)
	}
	return recs
}

// SummarizeInvoices totals invoices by effective status at now.
func SummarizeInvoices(invoices []core.Invoice, now time.Time) InvoiceSummary {
	var s InvoiceSummary
	for _, inv := range invoices {
		s.Count++
		s.Total += inv.Total
		switch inv.EffectiveStatus(now) {
		case core.InvoicePaid:
			s.Paid += inv.Total
		case core.InvoiceOverdue:
			s.Overdue += inv.Total
		default:
			s.Pending += inv.Total
		}
	}
	s.Total = round2(s.Total)
	s.Paid = round2(s.Paid)
	s.Pending = round2(s.Pending)
	s.Overdue = round2(s.Overdue)
	return s
}
