package watch

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"smartfin/internal/core"
)

func expense(cat string, amount float64) core.Transaction {
	return core.Transaction{Type: core.Expense, Category: cat, Amount: core.Amount(amount), Date: core.NewDate(2025, 1, 1)}
}

func TestCategories(t *testing.T) {
	cases := []struct {
		name string
		txs  []core.Transaction
		want []string
	}{
		{
			name: "no records",
			txs:  nil,
			want: []string{NoExpensesMessage},
		},
		{
			name: "income only",
			txs:  []core.Transaction{{Type: core.Income, Category: "Salary", Amount: 100}},
			want: []string{NoExpensesMessage},
		},
		{
			name: "three entertainment expenses",
			txs:  []core.Transaction{expense("Entertainment", 100), expense("Entertainment", 100), expense("Entertainment", 100)},
			want: []string{"Entertainment"},
		},
		{
			name: "single housing expense",
			txs:  []core.Transaction{expense("Housing", 1000)},
			want: []string{AllClearMessage},
		},
		{
			name: "housing below its higher threshold",
			txs: []core.Transaction{
				expense("Housing", 140), expense("Housing", 140),
				expense("Food", 360), expense("Food", 360),
			},
			// Housing share 28% < 30%, Food 72%.
			want: []string{"Food"},
		},
		{
			name: "shopping passes its lower threshold",
			txs: []core.Transaction{
				expense("Shopping", 80), expense("Shopping", 80),
				expense("Rent Share", 420), expense("Rent Share", 420),
			},
			// Shopping 16% >= 15%, unmapped Rent Share uses 20%.
			want: []string{"Rent Share", "Shopping"},
		},
		{
			name: "top three by total with name tie-break",
			txs: []core.Transaction{
				expense("Food", 100), expense("Food", 100),
				expense("Shopping", 100), expense("Shopping", 100),
				expense("Entertainment", 100), expense("Entertainment", 100),
				expense("Other Expense", 150), expense("Other Expense", 150),
			},
			want: []string{"Other Expense", "Entertainment", "Food"},
		},
		{
			name: "blank category and invalid amount",
			txs: []core.Transaction{
				expense("", 50), expense(" ", 50),
				{Type: core.Expense, Category: "Food", Amount: core.NaN()},
			},
			want: []string{Uncategorized},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Categories(tc.txs)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %q want %q", got, tc.want)
			}
			if len(got) > MaxCategories {
				t.Fatalf("more than %d categories: %q", MaxCategories, got)
			}
		})
	}
}

func TestCategoriesDoesNotMutateInput(t *testing.T) {
	txs := []core.Transaction{expense("", 10), expense("Food", 10)}
	before := append([]core.Transaction(nil), txs...)
	Categories(txs)
	if !reflect.DeepEqual(txs, before) {
		t.Fatalf("input modified")
	}
}

func TestIsReassurance(t *testing.T) {
	if !IsReassurance([]string{AllClearMessage}) || !IsReassurance([]string{NoExpensesMessage}) {
		t.Fatalf("messages should be recognised")
	}
	if IsReassurance([]string{"Food"}) {
		t.Fatalf("category list is not a reassurance")
	}
}

func TestLoadThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thresholds.yaml")
	body := "default: 0.5\ncategories:\n  Travel: 0.1\n  Housing: 0.35\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	th, err := LoadThresholds(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if th.Default != 0.5 || th.For("Travel") != 0.1 || th.For("Housing") != 0.35 {
		t.Fatalf("overrides not applied: %+v", th)
	}
	if th.For("Shopping") != 0.15 {
		t.Fatalf("built-in entries should survive, got %v", th.For("Shopping"))
	}
	if th.For("Unknown") != 0.5 {
		t.Fatalf("default override not used")
	}
}

func TestParseThresholdsRejectsOutOfRange(t *testing.T) {
	for _, body := range []string{
		"default: 0\n",
		"default: 1.5\n",
		"categories:\n  Food: -0.2\n",
		"categories: [1, 2\n",
	} {
		if _, err := ParseThresholds([]byte(body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
	if _, err := LoadThresholds(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
