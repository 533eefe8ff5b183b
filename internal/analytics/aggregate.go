// Package analytics holds the pure aggregation functions behind the
// dashboard, the budget page and the prediction prompt.
//
// Every function takes a read-only snapshot of records and returns new
// values. Records with unusable data (invalid amount, zero date, unknown
// type) are skipped rather than reported.
package analytics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"smartfin/internal/core"
)

// MonthLabelLayout formats MonthlyPoint labels, e.g. "Jan 2026".
const MonthLabelLayout = "Jan 2006"

// CurrentMonthTransactions returns the records whose date falls in the
// calendar month and year of ref.
func CurrentMonthTransactions(txs []core.Transaction, ref time.Time) []core.Transaction {
	return inMonth(txs, ref.Year(), ref.Month())
}

func inMonth(txs []core.Transaction, year int, month time.Month) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, tx := range txs {
		if tx.Date.InMonth(year, month) {
			out = append(out, tx)
		}
	}
	return out
}

// TotalByType sums the valid amounts of records of type t.
func TotalByType(txs []core.Transaction, t core.TransactionType) float64 {
	amounts := make([]core.Amount, 0, len(txs))
	for _, tx := range txs {
		if tx.Type == t && tx.Amount.Valid() {
			amounts = append(amounts, tx.Amount)
		}
	}
	return core.SumAmounts(amounts...)
}

// ByCategory groups records per category in a single pass. Sums are kept
// in decimal and rounded once, like TotalByType.
func ByCategory(txs []core.Transaction) map[string]core.CategoryAggregate {
	type sums struct{ income, expense decimal.Decimal }
	acc := make(map[string]*sums)
	for _, tx := range txs {
		if tx.Category == "" || !tx.Amount.Valid() || !tx.Type.Valid() {
			continue
		}
		sum, ok := acc[tx.Category]
		if !ok {
			sum = &sums{}
			acc[tx.Category] = sum
		}
		amt := decimal.NewFromFloat(tx.Amount.Float64())
		if tx.Type == core.Income {
			sum.income = sum.income.Add(amt)
		} else {
			sum.expense = sum.expense.Add(amt)
		}
	}

	out := make(map[string]core.CategoryAggregate, len(acc))
	for cat, sum := range acc {
		inc, exp := sum.income.Round(2), sum.expense.Round(2)
		income, _ := inc.Float64()
		expense, _ := exp.Float64()
		total, _ := inc.Sub(exp).Float64()
		out[cat] = core.CategoryAggregate{Category: cat, Income: income, Expense: expense, Total: total}
	}
	return out
}

// MonthlySeries returns exactly months points in chronological order, the
// last one being the month that contains ref.
func MonthlySeries(txs []core.Transaction, months int, ref time.Time) []core.MonthlyPoint {
	if months <= 0 {
		return []core.MonthlyPoint{}
	}
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	points := make([]core.MonthlyPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		m := first.AddDate(0, -i, 0)
		subset := inMonth(txs, m.Year(), m.Month())
		income := TotalByType(subset, core.Income)
		expenses := TotalByType(subset, core.Expense)
		points = append(points, core.MonthlyPoint{
			Month:    m.Format(MonthLabelLayout),
			Year:     m.Year(),
			MonthNum: int(m.Month()),
			Income:   income,
			Expenses: expenses,
			Net:      round2(income - expenses),
		})
	}
	return points
}

// ProgressPercentage returns actual/target as a percentage clamped to
// [0, 100]. A zero target or a non-finite argument yields 0.
func ProgressPercentage(actual, target float64) float64 {
	if target == 0 || !finite(actual) || !finite(target) {
		return 0
	}
	p := actual / target * 100
	switch {
	case !finite(p), p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
