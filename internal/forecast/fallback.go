// Package forecast produces 30-day cash-flow predictions, asking a hosted
// model first and computing a local estimate whenever that fails.
package forecast

import (
	"smartfin/internal/core"
	"smartfin/internal/watch"
)

const (
	// FallbackRecommendation accompanies every locally computed prediction.
	FallbackRecommendation = "Track your spending more consistently to get better insights."

	recentWindow = 5
)

// Fallback estimates the next 30 days as the sum of the last five income
// records minus the sum of the last five expense records.
//
// "Last" means last in slice order. Ledger stores list records oldest
// first, so with their output this is the five most recent of each type.
// Fallback never fails; with no records the prediction is 0.
func Fallback(txs []core.Transaction, th watch.Thresholds) core.PredictionResult {
	income := lastOfType(txs, core.Income, recentWindow)
	expense := lastOfType(txs, core.Expense, recentWindow)
	return core.PredictionResult{
		Prediction:      core.SumAmounts(income...) - core.SumAmounts(expense...),
		WatchCategories: th.Categories(txs),
		Recommendation:  FallbackRecommendation,
		Source:          core.SourceFallback,
	}
}

func lastOfType(txs []core.Transaction, t core.TransactionType, n int) []core.Amount {
	out := make([]core.Amount, 0, n)
	for i := len(txs) - 1; i >= 0 && len(out) < n; i-- {
		if txs[i].Type == t {
			out = append(out, txs[i].Amount)
		}
	}
	return out
}
