package forecast

import (
	"encoding/json"
	"fmt"
	"strings"

	"smartfin/internal/analytics"
	"smartfin/internal/core"
)

const promptTransactions = 10

// BuildPrompt renders the advisor prompt: profile goals, overall totals,
// the ten most recent records verbatim and the watch list the model is
// asked to echo back.
func BuildPrompt(txs []core.Transaction, p core.UserProfile, watchList []string) string {
	income := analytics.TotalByType(txs, core.Income)
	expenses := analytics.TotalByType(txs, core.Expense)

	recent := txs
	if len(recent) > promptTransactions {
		recent = recent[len(recent)-promptTransactions:]
	}
	recentJSON, err := json.Marshal(recent)
	if err != nil {
		recentJSON = []byte("[]")
	}
	watchJSON, err := json.Marshal(watchList)
	if err != nil {
		watchJSON = []byte("[]")
	}

	var sb strings.Builder
	sb.WriteString("As a financial advisor, analyze this data and provide cash flow predictions:\n\n")
	sb.WriteString("User Profile:\n")
	fmt.Fprintf(&sb, "- Monthly Income Goal: %s\n", num(p.MonthlyIncomeGoal))
	fmt.Fprintf(&sb, "- Monthly Expense Limit: %s\n", num(p.MonthlyExpenseLimit))
	fmt.Fprintf(&sb, "- Currency: %s\n\n", p.Currency)
	sb.WriteString("Recent Financial Data:\n")
	fmt.Fprintf(&sb, "- Total Income: %s\n", num(income))
	fmt.Fprintf(&sb, "- Total Expenses: %s\n", num(expenses))
	fmt.Fprintf(&sb, "- Net Balance: %s\n\n", num(income-expenses))
	fmt.Fprintf(&sb, "Recent Transactions: %s\n\n", recentJSON)
	sb.WriteString("Please provide:\n")
	sb.WriteString("1. Cash flow prediction for next 30 days (single number)\n")
	fmt.Fprintf(&sb, "2. Use these spending categories to watch: %s\n", watchJSON)
	sb.WriteString("3. One actionable budget recommendation\n\n")
	sb.WriteString("Format response as JSON:\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"prediction\": number,\n")
	fmt.Fprintf(&sb, "  \"watchCategories\": %s,\n", watchJSON)
	sb.WriteString("  \"recommendation\": \"string\"\n")
	sb.WriteString("}")
	return sb.String()
}

func num(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
