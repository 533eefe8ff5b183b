package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smartfin/internal/core"
)

// OverdueProcessor persists the Overdue status of pending invoices whose due
// date has passed, so stored data matches what the API reports.
type OverdueProcessor struct {
	service *LedgerService
}

func NewOverdueProcessor(service *LedgerService) *OverdueProcessor {
	return &OverdueProcessor{service: service}
}

// ProcessOverdue flags every pending invoice due before now and returns how
// many were changed. One failing invoice does not stop the others.
func (p *OverdueProcessor) ProcessOverdue(ctx context.Context, now time.Time) (int, error) {
	if p.service == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	invoices, err := p.service.Invoices(ctx)
	if err != nil {
		return 0, fmt.Errorf("list invoices: %w", err)
	}

	processed := 0
	for _, inv := range invoices {
		if inv.Status != core.InvoicePending || !inv.IsOverdue(now) {
			continue
		}
		if _, err := p.service.SetInvoiceStatus(ctx, inv.ID, core.InvoiceOverdue); err != nil {
			slog.ErrorContext(ctx, "Failed to mark invoice overdue",
				"invoice_id", inv.ID,
				"error", err)
			continue
		}
		processed++
		slog.InfoContext(ctx, "Invoice marked overdue",
			"invoice_id", inv.ID,
			"client", inv.ClientName,
			"due_date", inv.DueDate.String())
	}

	slog.InfoContext(ctx, "Overdue invoice check complete",
		"processed", processed,
		"total_checked", len(invoices))
	return processed, nil
}
