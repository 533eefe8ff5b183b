package archive

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"smartfin/internal/core"
	"smartfin/internal/ledger"
)

const (
	SheetTransactions = "Transactions"
	SheetInvoices     = "Invoices"
	SheetProfile      = "Profile"
)

var (
	transactionHeader = []any{"ID", "Date", "Type", "Category", "Amount", "Notes", "Created At"}
	invoiceHeader     = []any{"ID", "Client", "Date", "Due Date", "Status", "Items", "Total", "Notes"}
)

// WriteXLSX renders snap as a workbook with one sheet per section. Invoice
// statuses are reported as of now.
func WriteXLSX(w io.Writer, snap ledger.Snapshot, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	// The default "Sheet1" is renamed so the workbook opens on transactions.
	if err := f.SetSheetName("Sheet1", SheetTransactions); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetInvoices); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetInvoices, err)
	}
	if _, err := f.NewSheet(SheetProfile); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetProfile, err)
	}

	txRows := make([][]any, 0, len(snap.Transactions))
	for _, tx := range snap.Transactions {
		txRows = append(txRows, []any{
			tx.ID, tx.Date.String(), string(tx.Type), tx.Category,
			amountCell(tx.Amount), tx.Notes, timeCell(tx.CreatedAt),
		})
	}
	if err := writeTable(f, SheetTransactions, transactionHeader, txRows, bold); err != nil {
		return err
	}

	invRows := make([][]any, 0, len(snap.Invoices))
	for _, inv := range snap.Invoices {
		invRows = append(invRows, []any{
			inv.ID, inv.ClientName, inv.Date.String(), inv.DueDate.String(),
			string(inv.EffectiveStatus(now)), len(inv.Items), inv.Total, inv.Notes,
		})
	}
	if err := writeTable(f, SheetInvoices, invoiceHeader, invRows, bold); err != nil {
		return err
	}

	p := core.DefaultProfile()
	if snap.Profile != nil {
		p = *snap.Profile
	}
	profileRows := [][]any{
		{"Name", p.Name},
		{"Income Source", p.IncomeSource},
		{"Currency", p.Currency},
		{"Tracking Frequency", p.TrackingFrequency},
		{"Monthly Income Goal", p.MonthlyIncomeGoal},
		{"Monthly Expense Limit", p.MonthlyExpenseLimit},
		{"AI Suggestions", p.AISuggestions},
	}
	if err := writeTable(f, SheetProfile, []any{"Field", "Value"}, profileRows, bold); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 18)
}

// amountCell leaves the cell empty for amounts that are not numbers.
func amountCell(a core.Amount) any {
	if !a.Valid() {
		return ""
	}
	return a.Float64()
}

func timeCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
