package http

import (
	"net/http"

	"smartfin/internal/analytics"
	"smartfin/internal/core"
	"smartfin/internal/log"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.ledger.Profile(r.Context())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Data(p).Write(w)
}

// handleUpdateProfile merges the body into the stored profile, so a client
// may send only the fields it changes.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.ledger.Profile(r.Context())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	if err := decodeJSON(w, r, &p); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	p.Name = sanitizeInput(p.Name)
	p.IncomeSource = sanitizeInput(p.IncomeSource)
	p.TrackingFrequency = sanitizeInput(p.TrackingFrequency)

	saved, err := s.ledger.UpdateProfile(r.Context(), p)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(saved).Write(w)
}

// handleListInvoices reports each invoice with its status as of now.
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invs, err := s.ledger.Invoices(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	now := s.now()
	out := make([]core.Invoice, 0, len(invs))
	for _, inv := range invs {
		inv.Status = inv.EffectiveStatus(now)
		out = append(out, inv)
	}
	NewJSONResponse().Data(out).Write(w)
}

func (s *Server) handleInvoiceSummary(w http.ResponseWriter, r *http.Request) {
	invs, err := s.ledger.Invoices(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Data(analytics.SummarizeInvoices(invs, s.now())).Write(w)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var inv core.Invoice
	if err := decodeJSON(w, r, &inv); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	inv.ID = ""
	inv.ClientName = sanitizeInput(inv.ClientName)
	inv.Notes = sanitizeInput(inv.Notes)

	created, err := s.ledger.CreateInvoice(r.Context(), inv)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(created).Write(w)
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var inv core.Invoice
	if err := decodeJSON(w, r, &inv); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	inv.ClientName = sanitizeInput(inv.ClientName)
	inv.Notes = sanitizeInput(inv.Notes)

	updated, err := s.ledger.UpdateInvoice(r.Context(), r.PathValue("id"), inv)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(updated).Write(w)
}

func (s *Server) handleSetInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	inv, err := s.ledger.SetInvoiceStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Data(inv).Write(w)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteInvoice(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
