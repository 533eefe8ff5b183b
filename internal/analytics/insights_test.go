package analytics

import (
	"reflect"
	"testing"
	"time"

	"smartfin/internal/core"
)

func TestProjectMonths(t *testing.T) {
	series := []core.MonthlyPoint{
		{Income: 1000, Expenses: 500, Net: 500},
		{Income: 1200, Expenses: 700, Net: 500},
		{Income: 1400, Expenses: 600, Net: 800},
	}
	ref := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	got := ProjectMonths(series, 3, ref)
	if len(got) != 3 {
		t.Fatalf("want 3 projected points, got %d", len(got))
	}
	// avgIncome 1200, avgExpenses 600, trend (800-500)/3 = 100
	want := []core.MonthlyPoint{
		{Month: "Dec 2025", Year: 2025, MonthNum: 12, Income: 1250, Expenses: 612, Net: 638, Projected: true},
		{Month: "Jan 2026", Year: 2026, MonthNum: 1, Income: 1300, Expenses: 624, Net: 676, Projected: true},
		{Month: "Feb 2026", Year: 2026, MonthNum: 2, Income: 1350, Expenses: 636, Net: 714, Projected: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}

	if len(ProjectMonths(series[:1], 3, ref)) != 0 {
		t.Fatalf("single point series must not project")
	}
}

func TestProjectMonthsClampsNegativeIncome(t *testing.T) {
	series := []core.MonthlyPoint{
		{Income: 100, Expenses: 0, Net: 100},
		{Income: 0, Expenses: 900, Net: -900},
	}
	got := ProjectMonths(series, 1, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	// avgIncome 50, trend -500: income 50-250 = -200 clamps to 0, net keeps it.
	if got[0].Income != 0 {
		t.Fatalf("income should clamp at 0, got %v", got[0].Income)
	}
	if got[0].Net != -659 {
		t.Fatalf("net should use unclamped values, got %v", got[0].Net)
	}
}

func TestExpenseBreakdown(t *testing.T) {
	got := ExpenseBreakdown(sample(), 2)
	if len(got) != 2 {
		t.Fatalf("limit not applied: %d rows", len(got))
	}
	if got[0].Category != "Housing" || got[0].Amount != 1200 {
		t.Fatalf("unexpected top row %+v", got[0])
	}
	if got[0].Percentage != 82.5 {
		t.Fatalf("percentage = %v", got[0].Percentage)
	}
	if len(ExpenseBreakdown(nil, 6)) != 0 {
		t.Fatalf("empty input should give no rows")
	}
}

func TestRiskLevel(t *testing.T) {
	cases := map[float64]Risk{
		1500:   RiskLow,
		1000:   RiskMedium,
		0.01:   RiskMedium,
		0:      RiskHigh,
		-42.42: RiskHigh,
	}
	for net, want := range cases {
		if got := RiskLevel(net); got != want {
			t.Fatalf("RiskLevel(%v) = %s want %s", net, got, want)
		}
	}
}

func TestSummarize(t *testing.T) {
	p := core.DefaultProfile()
	p.MonthlyIncomeGoal = 4000
	p.MonthlyExpenseLimit = 1000
	s := Summarize(sample(), p, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))

	if s.Income != 3000 || s.Expenses != 1275.75 || s.Net != 1724.25 {
		t.Fatalf("unexpected totals %+v", s)
	}
	if s.IncomeProgress != 75 || s.ExpenseProgress != 100 {
		t.Fatalf("unexpected progress %v / %v", s.IncomeProgress, s.ExpenseProgress)
	}
	if !s.OverExpenseLimit || s.RemainingBudget != -275.75 {
		t.Fatalf("expected over limit, got %+v", s)
	}
	if s.Risk != RiskLow || s.TransactionCount != 5 || s.TotalTransactions != 8 {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestBudgetRecommendations(t *testing.T) {
	txs := []core.Transaction{
		tx(core.Expense, 600, "Housing", 2025, 3, 1),
		tx(core.Expense, 500, "Food", 2025, 3, 2),
	}
	p := core.DefaultProfile()

	p.MonthlyExpenseLimit = 1000
	got := BudgetRecommendations(txs, p)
	want := []string{
		"Consider reducing Housing expenses by 10-15%",
		"You're 10.0% over your monthly limit",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}

	p.MonthlyExpenseLimit = 5000
	got = BudgetRecommendations(txs, p)
	if !reflect.DeepEqual(got, []string{noBudgetIssues}) {
		t.Fatalf("got %q", got)
	}

	p.MonthlyExpenseLimit = 0
	got = BudgetRecommendations(txs, p)
	if !reflect.DeepEqual(got, []string{"Consider reducing Housing expenses by 10-15%"}) {
		t.Fatalf("no limit set: got %q", got)
	}

	small := []core.Transaction{
		tx(core.Expense, 50, "Food", 2025, 5, 2),
	}
	got = BudgetRecommendations(small, p)
	if !reflect.DeepEqual(got, []string{"Consider reducing Food expenses by 10-15%"}) {
		t.Fatalf("single expense without limit: got %q", got)
	}
	if got := BudgetRecommendations(nil, p); !reflect.DeepEqual(got, []string{noBudgetIssues}) {
		t.Fatalf("no expenses: got %q", got)
	}
}

func TestSummarizeInvoices(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	invoices := []core.Invoice{
		{Total: 100, Status: core.InvoicePaid, DueDate: core.NewDate(2025, 5, 1)},
		{Total: 250.5, Status: core.InvoicePending, DueDate: core.NewDate(2025, 7, 1)},
		{Total: 80, Status: core.InvoicePending, DueDate: core.NewDate(2025, 5, 15)},
	}
	got := SummarizeInvoices(invoices, now)
	want := InvoiceSummary{Count: 3, Total: 430.5, Paid: 100, Pending: 250.5, Overdue: 80}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}
