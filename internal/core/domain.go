package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the calendar-date layout used on the wire and in storage.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	// Date is a calendar date. The zero Date means "missing" and is
	// excluded from every month filter.
	Date struct {
		time.Time
	}

	// Amount is a transaction amount. A value that did not arrive as a
	// number is kept as NaN so aggregations can skip it.
	Amount float64

	Transaction struct {
		ID        string          `json:"id"`
		Type      TransactionType `json:"type"`
		Amount    Amount          `json:"amount"`
		Category  string          `json:"category"`
		Date      Date            `json:"date"`
		Notes     string          `json:"notes,omitempty"`
		CreatedAt time.Time       `json:"createdAt"`
		UpdatedAt time.Time       `json:"updatedAt,omitzero"`
	}

	UserProfile struct {
		Name                string    `json:"name,omitempty"`
		IncomeSource        string    `json:"incomeSource,omitempty"`
		Currency            string    `json:"currency"`
		TrackingFrequency   string    `json:"trackingFrequency,omitempty"`
		MonthlyIncomeGoal   float64   `json:"monthlyIncomeGoal"`
		MonthlyExpenseLimit float64   `json:"monthlyExpenseLimit"`
		AISuggestions       bool      `json:"aiSuggestions"`
		UpdatedAt           time.Time `json:"updatedAt,omitzero"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrEmptyCategory   = errors.New("empty category")
	ErrMissingDate     = errors.New("missing date")
	ErrNotesTooLong    = errors.New("notes too long (max 500 characters)")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrNegativeGoal    = errors.New("goal and limit must be non-negative")
)

// IncomeCategories and ExpenseCategories are the preset category names
// offered for new transactions. Any other non-empty name is accepted.
var (
	IncomeCategories  = []string{"Salary", "Freelance", "Business", "Investment", "Rental", "Other Income"}
	ExpenseCategories = []string{
		"Food", "Transportation", "Housing", "Utilities", "Healthcare",
		"Entertainment", "Shopping", "Education", "Insurance", "Other Expense",
	}
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts YYYY-MM-DD or RFC3339 input.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// InMonth reports whether d falls in the given calendar year and month.
// A zero date is never in any month.
func (d Date) InMonth(year int, month time.Month) bool {
	if d.IsZero() {
		return false
	}
	return d.Time.Year() == year && d.Time.Month() == month
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.Format(DateLayout))), nil
}

// UnmarshalJSON never fails: unreadable dates become the zero Date.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}

// NaN is the amount used for values that were not numbers.
func NaN() Amount {
	return Amount(math.NaN())
}

// Valid reports whether a is a finite number.
func (a Amount) Valid() bool {
	f := float64(a)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (a Amount) Float64() float64 {
	return float64(a)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(a), 'f', -1, 64)), nil
}

// UnmarshalJSON only accepts JSON numbers. Strings, null and anything
// else decode to NaN instead of failing the whole document.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == '"' || bytes.Equal(data, []byte("null")) {
		*a = NaN()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*a = NaN()
		return nil
	}
	*a = Amount(f)
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Amount.Valid() || t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if len(t.Notes) > 500 {
		return ErrNotesTooLong
	}
	return nil
}

// DefaultProfile is the profile used before the user saves one.
func DefaultProfile() UserProfile {
	return UserProfile{
		IncomeSource:      "Freelancing",
		Currency:          "USD",
		TrackingFrequency: "Weekly",
		AISuggestions:     true,
	}
}

func (p UserProfile) Validate() error {
	if len(p.Currency) != 3 || strings.ToUpper(p.Currency) != p.Currency {
		return ErrInvalidCurrency
	}
	if p.MonthlyIncomeGoal < 0 || p.MonthlyExpenseLimit < 0 ||
		math.IsNaN(p.MonthlyIncomeGoal) || math.IsNaN(p.MonthlyExpenseLimit) {
		return ErrNegativeGoal
	}
	return nil
}
