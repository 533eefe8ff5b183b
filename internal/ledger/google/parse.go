package google

import (
	"fmt"
	"strings"
	"time"

	"smartfin/internal/core"
)

// header is the first row of the mirror sheet.
var header = []any{"ID", "Date", "Type", "Category", "Amount", "Notes", "CreatedAt"}

const lastColumn = "G"

// toRow renders tx in column order. Unknown values become empty cells.
func toRow(tx core.Transaction) []any {
	var amount any = ""
	if tx.Amount.Valid() {
		amount = tx.Amount.Float64()
	}
	date := ""
	if !tx.Date.IsZero() {
		date = tx.Date.String()
	}
	created := ""
	if !tx.CreatedAt.IsZero() {
		created = tx.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []any{tx.ID, date, string(tx.Type), tx.Category, amount, tx.Notes, created}
}

// parseRow is the inverse of toRow. ok is false for the header and for rows
// without an id.
func parseRow(row []any) (core.Transaction, bool) {
	cols := toStrings(row)
	id := safeGet(cols, 0)
	if id == "" || strings.EqualFold(id, "ID") {
		return core.Transaction{}, false
	}
	tx := core.Transaction{
		ID:       id,
		Type:     core.TransactionType(strings.ToLower(safeGet(cols, 2))),
		Category: safeGet(cols, 3),
		Notes:    safeGet(cols, 5),
		Amount:   core.NaN(),
	}
	if d, err := core.ParseDate(safeGet(cols, 1)); err == nil {
		tx.Date = d
	}
	if a, err := core.ParseAmount(safeGet(cols, 4)); err == nil {
		tx.Amount = a
	}
	if t, err := time.Parse(time.RFC3339, safeGet(cols, 6)); err == nil {
		tx.CreatedAt = t
	}
	return tx, true
}

// findRow returns the 1-based sheet row holding id in column A, or 0.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
