package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	InvoicePending InvoiceStatus = "Pending"
	InvoicePaid    InvoiceStatus = "Paid"
	InvoiceOverdue InvoiceStatus = "Overdue"
)

type (
	InvoiceStatus string

	InvoiceItem struct {
		Description string `json:"description"`
		Amount      Amount `json:"amount"`
	}

	Invoice struct {
		ID         string        `json:"id"`
		ClientName string        `json:"clientName"`
		Items      []InvoiceItem `json:"items"`
		Total      float64       `json:"total"`
		Status     InvoiceStatus `json:"status"`
		Currency   string        `json:"currency,omitempty"`
		Date       Date          `json:"date"`
		DueDate    Date          `json:"dueDate"`
		Notes      string        `json:"notes,omitempty"`
		CreatedAt  time.Time     `json:"createdAt"`
		UpdatedAt  time.Time     `json:"updatedAt,omitzero"`
	}
)

var (
	ErrEmptyClient       = errors.New("empty client name")
	ErrNoInvoiceItems    = errors.New("invoice needs at least one item with a description and a positive amount")
	ErrMissingDueDate    = errors.New("missing due date")
	ErrInvalidStatus     = errors.New("invalid invoice status")
	ErrDueBeforeIssuance = errors.New("due date before invoice date")
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoicePaid, InvoiceOverdue:
		return true
	default:
		return false
	}
}

// UnmarshalJSON accepts item amounts as numbers or numeric strings; the
// form that produced older exports stored them as strings.
func (it *InvoiceItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description string          `json:"description"`
		Amount      json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	it.Description = raw.Description
	amt := bytes.TrimSpace(raw.Amount)
	if len(amt) > 0 && amt[0] == '"' {
		s, err := strconv.Unquote(string(amt))
		if err != nil {
			it.Amount = 0
			return nil
		}
		it.Amount = ParseAmountOrZero(s)
		return nil
	}
	return it.Amount.UnmarshalJSON(amt)
}

// ComputeTotal sums item amounts; unusable amounts contribute 0.
func (inv Invoice) ComputeTotal() float64 {
	amounts := make([]Amount, 0, len(inv.Items))
	for _, it := range inv.Items {
		amounts = append(amounts, it.Amount)
	}
	return SumAmounts(amounts...)
}

// Normalize drops blank line items, recomputes Total and defaults Status.
func (inv Invoice) Normalize() Invoice {
	items := make([]InvoiceItem, 0, len(inv.Items))
	for _, it := range inv.Items {
		if strings.TrimSpace(it.Description) == "" || !it.Amount.Valid() || it.Amount <= 0 {
			continue
		}
		items = append(items, it)
	}
	inv.Items = items
	inv.Total = inv.ComputeTotal()
	if inv.Status == "" {
		inv.Status = InvoicePending
	}
	return inv
}

func (inv Invoice) Validate() error {
	if strings.TrimSpace(inv.ClientName) == "" {
		return ErrEmptyClient
	}
	if len(inv.Items) == 0 {
		return ErrNoInvoiceItems
	}
	if inv.DueDate.IsZero() {
		return ErrMissingDueDate
	}
	if !inv.Date.IsZero() && inv.DueDate.Before(inv.Date.Time) {
		return ErrDueBeforeIssuance
	}
	if !inv.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// EffectiveStatus reports Overdue for unpaid invoices whose due date has
// passed, whatever status was stored.
func (inv Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if inv.IsOverdue(now) {
		return InvoiceOverdue
	}
	return inv.Status
}

func (inv Invoice) IsOverdue(now time.Time) bool {
	if inv.Status == InvoicePaid || inv.DueDate.IsZero() {
		return false
	}
	return inv.DueDate.Before(now)
}
