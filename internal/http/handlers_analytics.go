package http

import (
	"net/http"
	"sort"

	"smartfin/internal/analytics"
	"smartfin/internal/core"
	"smartfin/internal/forecast"
	"smartfin/internal/log"
)

const (
	recentActivityRows = 5
	maxSeriesMonths    = 60
)

type dashboardResponse struct {
	Summary  analytics.Summary        `json:"summary"`
	Recent   []core.Transaction       `json:"recentTransactions"`
	Invoices analytics.InvoiceSummary `json:"invoices"`
	Currency string                   `json:"currency"`
}

type budgetResponse struct {
	Summary         analytics.Summary         `json:"summary"`
	Categories      []core.CategoryAggregate  `json:"categories"`
	Breakdown       []analytics.CategoryShare `json:"breakdown"`
	Recommendations []string                  `json:"recommendations"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ref, err := parseRefDate(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ctx := r.Context()
	txs, err := s.ledger.Transactions(ctx)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	p, err := s.ledger.Profile(ctx)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	invs, err := s.ledger.Invoices(ctx)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}

	NewJSONResponse().Data(dashboardResponse{
		Summary:  analytics.Summarize(txs, p, ref),
		Recent:   recentTransactions(txs, recentActivityRows),
		Invoices: analytics.SummarizeInvoices(invs, s.now()),
		Currency: p.Currency,
	}).Write(w)
}

// recentTransactions returns the last n records newest first. txs is
// ordered oldest first.
func recentTransactions(txs []core.Transaction, n int) []core.Transaction {
	out := make([]core.Transaction, 0, n)
	for i := len(txs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, txs[i])
	}
	return out
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	months, err := parseMonths(q, forecast.DefaultHistoryMonths, maxSeriesMonths)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ref, err := parseRefDate(q, s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	txs, err := s.ledger.Transactions(r.Context())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(analytics.MonthlySeries(txs, months, ref)).Write(w)
}

// handleCategories aggregates per category, optionally narrowed with
// ?type= and ?month=.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	txs, err := s.ledger.ListTransactions(r.Context(), f)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(sortedAggregates(analytics.ByCategory(txs))).Write(w)
}

func sortedAggregates(m map[string]core.CategoryAggregate) []core.CategoryAggregate {
	out := make([]core.CategoryAggregate, 0, len(m))
	for _, agg := range m {
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// handleBudget shows the current month against the profile goals. The
// recommendations look at the whole history.
func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	ref, err := parseRefDate(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ctx := r.Context()
	txs, err := s.ledger.Transactions(ctx)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	p, err := s.ledger.Profile(ctx)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}

	month := analytics.CurrentMonthTransactions(txs, ref)
	expenses := make([]core.Transaction, 0, len(month))
	for _, tx := range month {
		if tx.Type == core.Expense {
			expenses = append(expenses, tx)
		}
	}

	NewJSONResponse().Data(budgetResponse{
		Summary:         analytics.Summarize(txs, p, ref),
		Categories:      sortedAggregates(analytics.ByCategory(expenses)),
		Breakdown:       analytics.ExpenseBreakdown(month, forecast.BreakdownRows),
		Recommendations: analytics.BudgetRecommendations(txs, p),
	}).Write(w)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.Transactions(r.Context())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(map[string][]string{
		"watchCategories": s.forecast.Thresholds().Categories(txs),
	}).Write(w)
}

// handlePredictions never fails because of the model: the forecast
// service falls back locally.
func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	months, err := parseMonths(r.URL.Query(), forecast.DefaultHistoryMonths, maxSeriesMonths)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ctx := r.Context()
	txs, err := s.ledger.Transactions(ctx)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	p, err := s.ledger.Profile(ctx)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(s.forecast.Insights(ctx, txs, p, s.now(), months)).Write(w)
}
