package services

import (
	"context"
	"testing"
	"time"

	"smartfin/internal/core"
)

func TestOverdueProcessor(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	items := []core.InvoiceItem{{Description: "Work", Amount: 10}}

	late, _ := svc.CreateInvoice(ctx, core.Invoice{ClientName: "Late", Items: items, DueDate: core.NewDate(2025, 6, 1)})
	paid, _ := svc.CreateInvoice(ctx, core.Invoice{ClientName: "Paid", Items: items, DueDate: core.NewDate(2025, 6, 1), Status: core.InvoicePaid})
	future, _ := svc.CreateInvoice(ctx, core.Invoice{ClientName: "Future", Items: items, DueDate: core.NewDate(2025, 7, 1)})

	n, err := NewOverdueProcessor(svc).ProcessOverdue(ctx, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed %d, want 1", n)
	}

	want := map[string]core.InvoiceStatus{
		late.ID:   core.InvoiceOverdue,
		paid.ID:   core.InvoicePaid,
		future.ID: core.InvoicePending,
	}
	for id, status := range want {
		inv, _ := svc.Store().GetInvoice(ctx, id)
		if inv.Status != status {
			t.Errorf("%s status = %s, want %s", inv.ClientName, inv.Status, status)
		}
	}

	if _, err := NewOverdueProcessor(nil).ProcessOverdue(ctx, time.Now()); err == nil {
		t.Error("expected error for uninitialised processor")
	}
}
