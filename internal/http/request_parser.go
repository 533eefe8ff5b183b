package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"smartfin/internal/core"
	"smartfin/internal/ledger"
)

// maxBodySize caps JSON request bodies. Imports use archive.MaxDocumentSize.
const maxBodySize = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a single JSON value from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body larger than %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("malformed JSON: %w", err)
	}
	return nil
}

// sanitizeInput trims s and removes control characters other than tab,
// newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// transactionRequest is the body of POST and PUT on transactions. The
// amount may be a JSON number or a decimal string such as "12,50".
type transactionRequest struct {
	Type     core.TransactionType `json:"type"`
	Amount   json.RawMessage      `json:"amount"`
	Category string               `json:"category"`
	Date     string               `json:"date"`
	Notes    string               `json:"notes"`
}

// toTransaction converts the request without validating it; unreadable
// amounts and dates come out as NaN and the zero date.
func (req transactionRequest) toTransaction() core.Transaction {
	tx := core.Transaction{
		Type:     core.TransactionType(strings.ToLower(strings.TrimSpace(string(req.Type)))),
		Amount:   parseAmountField(req.Amount),
		Category: sanitizeInput(req.Category),
		Notes:    sanitizeInput(req.Notes),
	}
	if d, err := core.ParseDate(req.Date); err == nil {
		tx.Date = d
	}
	return tx
}

func parseAmountField(raw json.RawMessage) core.Amount {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return core.NaN()
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return core.NaN()
		}
		a, err := core.ParseAmount(s)
		if err != nil {
			return core.NaN()
		}
		return a
	}
	var a core.Amount
	_ = a.UnmarshalJSON(raw)
	return a
}

type statusRequest struct {
	Status core.InvoiceStatus `json:"status"`
}

// parseFilter reads ?type= and ?month=YYYY-MM.
func parseFilter(query url.Values) (ledger.Filter, error) {
	var f ledger.Filter
	if v := strings.TrimSpace(query.Get("type")); v != "" {
		t := core.TransactionType(strings.ToLower(v))
		if !t.Valid() {
			return f, fmt.Errorf("invalid type %q: must be income or expense", v)
		}
		f.Type = t
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := time.Parse("2006-01", v)
		if err != nil {
			return f, fmt.Errorf("invalid month %q: must be YYYY-MM", v)
		}
		f.Year, f.Month = m.Year(), m.Month()
	}
	return f, nil
}

// parseRefDate reads ?date=YYYY-MM-DD, defaulting to now.
func parseRefDate(query url.Values, now time.Time) (time.Time, error) {
	v := strings.TrimSpace(query.Get("date"))
	if v == "" {
		return now, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: must be YYYY-MM-DD", v)
	}
	return d.Time, nil
}

// parseMonths reads ?months=N within [1, maxMonths], defaulting to def.
func parseMonths(query url.Values, def, maxMonths int) (int, error) {
	v := strings.TrimSpace(query.Get("months"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxMonths {
		return 0, fmt.Errorf("invalid months %q: must be between 1 and %d", v, maxMonths)
	}
	return n, nil
}
