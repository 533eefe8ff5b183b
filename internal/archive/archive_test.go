package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"smartfin/internal/core"
	"smartfin/internal/ledger"
)

var exportTime = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func sampleSnapshot() ledger.Snapshot {
	p := core.DefaultProfile()
	p.Name = "Ada"
	p.MonthlyExpenseLimit = 2000
	return ledger.Snapshot{
		Profile: &p,
		Transactions: []core.Transaction{
			{ID: "t1", Type: core.Income, Amount: 3000, Category: "Salary", Date: core.NewDate(2025, 6, 1), CreatedAt: exportTime},
			{ID: "t2", Type: core.Expense, Amount: 45.5, Category: "Food", Date: core.NewDate(2025, 6, 3), Notes: "groceries"},
		},
		Invoices: []core.Invoice{{
			ID:         "inv-1",
			ClientName: "Acme",
			Items:      []core.InvoiceItem{{Description: "Design", Amount: 400}},
			Total:      400,
			Status:     core.InvoicePending,
			Date:       core.NewDate(2025, 5, 1),
			DueDate:    core.NewDate(2025, 5, 31),
		}},
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, NewDocument(sampleSnapshot(), exportTime)); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var head struct {
		Version    string `json:"version"`
		ExportDate string `json:"exportDate"`
	}
	if err := json.Unmarshal(buf.Bytes(), &head); err != nil {
		t.Fatalf("exported document is not JSON: %v", err)
	}
	if head.Version != "1.0" || head.ExportDate != "2025-06-15T10:30:00Z" {
		t.Errorf("header = %+v", head)
	}

	snap, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if snap.Profile == nil || snap.Profile.Name != "Ada" || snap.Profile.MonthlyExpenseLimit != 2000 {
		t.Errorf("profile = %+v", snap.Profile)
	}
	if len(snap.Transactions) != 2 || snap.Transactions[1].Notes != "groceries" {
		t.Errorf("transactions = %+v", snap.Transactions)
	}
	if !snap.Transactions[0].CreatedAt.Equal(exportTime) {
		t.Errorf("createdAt = %v", snap.Transactions[0].CreatedAt)
	}
	if len(snap.Invoices) != 1 || snap.Invoices[0].Total != 400 {
		t.Errorf("invoices = %+v", snap.Invoices)
	}
}

func TestNewDocumentFillsMissingSections(t *testing.T) {
	doc := NewDocument(ledger.Snapshot{}, exportTime)
	if doc.Profile == nil || doc.Profile.Currency != "USD" {
		t.Errorf("profile = %+v, want default", doc.Profile)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"transactions": []`) || !strings.Contains(out, `"invoices": []`) {
		t.Errorf("empty sections not written as arrays:\n%s", out)
	}
}

func TestDecodeSections(t *testing.T) {
	tests := []struct {
		name             string
		input            string
		wantProfile      bool
		wantTransactions int // -1 means section absent
		wantInvoices     int
	}{
		{"only transactions", `{"transactions":[{"id":"a","type":"expense","amount":5,"category":"Food","date":"2025-01-02"}]}`, false, 1, -1},
		{"empty arrays clear", `{"transactions":[],"invoices":[]}`, false, 0, 0},
		{"transactions not an array", `{"transactions":{"id":"a"},"invoices":"none"}`, false, -1, -1},
		{"null sections", `{"profile":null,"transactions":null}`, false, -1, -1},
		{"profile only", `{"profile":{"name":"Bo"}}`, true, -1, -1},
		{"profile not an object", `{"profile":"Bo"}`, false, -1, -1},
		{"empty document", `{}`, false, -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Decode(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if (snap.Profile != nil) != tt.wantProfile {
				t.Errorf("profile present = %v, want %v", snap.Profile != nil, tt.wantProfile)
			}
			if got := sectionLen(snap.Transactions); got != tt.wantTransactions {
				t.Errorf("transactions = %d, want %d", got, tt.wantTransactions)
			}
			if got := sectionLen(snap.Invoices); got != tt.wantInvoices {
				t.Errorf("invoices = %d, want %d", got, tt.wantInvoices)
			}
		})
	}
}

func sectionLen[T any](s []T) int {
	if s == nil {
		return -1
	}
	return len(s)
}

func TestDecodeProfileKeepsDefaults(t *testing.T) {
	snap, err := Decode(strings.NewReader(`{"profile":{"name":"Bo","monthlyIncomeGoal":100}}`))
	if err != nil {
		t.Fatal(err)
	}
	p := snap.Profile
	if p.Name != "Bo" || p.MonthlyIncomeGoal != 100 {
		t.Errorf("profile = %+v", p)
	}
	if p.Currency != "USD" || !p.AISuggestions {
		t.Errorf("defaults lost: %+v", p)
	}
}

func TestDecodeLenientRecords(t *testing.T) {
	input := `{"transactions":[{"id":"a","type":"expense","amount":"12","category":"Food","date":"soon"}],
		"invoices":[{"id":"i","clientName":"Acme","items":[{"description":"x","amount":"50"},{"description":"","amount":10}]}]}`
	snap, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	tx := snap.Transactions[0]
	if tx.Amount.Valid() {
		t.Errorf("string amount decoded as %v, want NaN", tx.Amount)
	}
	if !tx.Date.IsZero() {
		t.Errorf("unparseable date decoded as %v, want zero", tx.Date)
	}
	inv := snap.Invoices[0]
	if len(inv.Items) != 1 || inv.Total != 50 || inv.Status != core.InvoicePending {
		t.Errorf("invoice not normalized: %+v", inv)
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, input := range []string{"", "not json", `[1,2]`, `{"transactions":[1,2]}`} {
		if _, err := Decode(strings.NewReader(input)); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("Decode(%q) error = %v, want ErrInvalidDocument", input, err)
		}
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(`{"transactions":[{"id":"s1","type":"income","amount":10,"category":"Salary","date":"2025-01-01"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	snap, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(snap.Transactions) != 1 || snap.Transactions[0].ID != "s1" {
		t.Errorf("transactions = %+v", snap.Transactions)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(exportTime); got != "smartfin-backup-2025-06-15.json" {
		t.Errorf("Filename() = %q", got)
	}
}

func TestWriteXLSX(t *testing.T) {
	snap := sampleSnapshot()
	snap.Transactions = append(snap.Transactions, core.Transaction{ID: "t3", Type: core.Expense, Amount: core.NaN(), Category: "Other Expense"})

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, snap, exportTime); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("workbook not readable: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 3 || got[0] != SheetTransactions {
		t.Errorf("sheets = %v", got)
	}

	rows, err := f.GetRows(SheetTransactions)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("transaction rows = %d, want 4", len(rows))
	}
	if rows[0][0] != "ID" || rows[1][3] != "Salary" || rows[2][4] != "45.5" {
		t.Errorf("unexpected transaction rows: %v", rows)
	}
	if len(rows[3]) > 4 && rows[3][4] != "" {
		t.Errorf("NaN amount written as %q", rows[3][4])
	}

	inv, err := f.GetRows(SheetInvoices)
	if err != nil {
		t.Fatal(err)
	}
	if len(inv) != 2 || inv[1][4] != string(core.InvoiceOverdue) {
		t.Errorf("invoice rows = %v, want overdue status", inv)
	}

	profile, err := f.GetRows(SheetProfile)
	if err != nil {
		t.Fatal(err)
	}
	if profile[1][1] != "Ada" {
		t.Errorf("profile rows = %v", profile)
	}
}
