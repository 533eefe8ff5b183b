// Package watch flags expense categories that take a disproportionate
// share of total spending.
package watch

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"smartfin/internal/core"
)

const (
	// NoExpensesMessage is returned when there are no expense records.
	NoExpensesMessage = "None. You're managing your expenses well!"
	// AllClearMessage is returned when no category qualifies.
	AllClearMessage = "You're managing your expenses well!"

	// Uncategorized groups expenses recorded without a category.
	Uncategorized = "Uncategorized"

	MaxCategories = 3
	MinCount      = 2

	DefaultThreshold = 0.20
)

// Thresholds maps a category name to the share of total expenses (0..1]
// it must reach before it is flagged. Categories not in ByCategory use
// Default.
type Thresholds struct {
	Default    float64
	ByCategory map[string]float64
}

// DefaultThresholds is the built-in table. Essential, mostly fixed costs
// sit at 30%, routine costs at 20% and discretionary spending at 15%.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Default: DefaultThreshold,
		ByCategory: map[string]float64{
			"Housing":    0.30,
			"Insurance":  0.30,
			"Healthcare": 0.30,
			"Education":  0.30,

			"Food":           0.20,
			"Transportation": 0.20,
			"Utilities":      0.20,

			"Entertainment": 0.15,
			"Shopping":      0.15,
			"Other Expense": 0.15,
		},
	}
}

// For returns the threshold of category.
func (t Thresholds) For(category string) float64 {
	if v, ok := t.ByCategory[category]; ok {
		return v
	}
	return t.Default
}

// Validate checks that every fraction is in (0, 1].
func (t Thresholds) Validate() error {
	if t.Default <= 0 || t.Default > 1 {
		return fmt.Errorf("default threshold %v out of range (0,1]", t.Default)
	}
	for cat, v := range t.ByCategory {
		if v <= 0 || v > 1 {
			return fmt.Errorf("threshold for %q %v out of range (0,1]", cat, v)
		}
	}
	return nil
}

type fileThresholds struct {
	Default    *float64           `yaml:"default"`
	Categories map[string]float64 `yaml:"categories"`
}

// LoadThresholds reads a YAML file of the form
//
//	default: 0.2
//	categories:
//	  Travel: 0.1
//	  Housing: 0.35
//
// and applies it on top of DefaultThresholds.
func LoadThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("read thresholds: %w", err)
	}
	return ParseThresholds(data)
}

// ParseThresholds is LoadThresholds without the file read.
func ParseThresholds(data []byte) (Thresholds, error) {
	var f fileThresholds
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Thresholds{}, fmt.Errorf("parse thresholds: %w", err)
	}
	t := DefaultThresholds()
	if f.Default != nil {
		t.Default = *f.Default
	}
	for cat, v := range f.Categories {
		t.ByCategory[strings.TrimSpace(cat)] = v
	}
	if err := t.Validate(); err != nil {
		return Thresholds{}, err
	}
	return t, nil
}

type categoryStat struct {
	name  string
	total float64
	count int
}

// Categories returns at most three watch-worthy category names, largest
// total first. A category qualifies when it has at least two expense
// records and its share of total expenses reaches its threshold.
//
// The result is never empty: with no expenses it holds NoExpensesMessage,
// with nothing qualifying it holds AllClearMessage.
func (t Thresholds) Categories(txs []core.Transaction) []string {
	stats := make(map[string]*categoryStat)
	var total float64
	expenses := 0
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		expenses++
		if !tx.Amount.Valid() {
			continue
		}
		name := strings.TrimSpace(tx.Category)
		if name == "" {
			name = Uncategorized
		}
		s, ok := stats[name]
		if !ok {
			s = &categoryStat{name: name}
			stats[name] = s
		}
		amt := tx.Amount.Float64()
		s.total += amt
		s.count++
		total += amt
	}
	if expenses == 0 {
		return []string{NoExpensesMessage}
	}

	qualifying := make([]*categoryStat, 0, len(stats))
	for _, s := range stats {
		if s.count < MinCount || total <= 0 {
			continue
		}
		if s.total/total >= t.For(s.name) {
			qualifying = append(qualifying, s)
		}
	}
	if len(qualifying) == 0 {
		return []string{AllClearMessage}
	}

	sort.Slice(qualifying, func(i, j int) bool {
		if qualifying[i].total != qualifying[j].total {
			return qualifying[i].total > qualifying[j].total
		}
		return qualifying[i].name < qualifying[j].name
	})
	if len(qualifying) > MaxCategories {
		qualifying = qualifying[:MaxCategories]
	}
	names := make([]string, len(qualifying))
	for i, s := range qualifying {
		names[i] = s.name
	}
	return names
}

// Categories applies the built-in thresholds.
func Categories(txs []core.Transaction) []string {
	return DefaultThresholds().Categories(txs)
}

// IsReassurance reports whether names is one of the informational
// results rather than a list of categories.
func IsReassurance(names []string) bool {
	return len(names) == 1 && (names[0] == NoExpensesMessage || names[0] == AllClearMessage)
}
