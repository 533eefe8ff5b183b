package http

import (
	"bytes"
	"net/http"
	"strings"

	"smartfin/internal/archive"
	"smartfin/internal/log"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	now := s.now()

	var buf bytes.Buffer
	if err := archive.Encode(&buf, archive.NewDocument(snap, now)); err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+archive.Filename(now)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	now := s.now()

	var buf bytes.Buffer
	if err := archive.WriteXLSX(&buf, snap, now); err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	name := strings.TrimSuffix(archive.Filename(now), ".json") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport replaces the sections present in the uploaded document.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, archive.MaxDocumentSize)
	snap, err := archive.Decode(r.Body)
	if err != nil {
		s.fail(w, r, log.OpImport, err)
		return
	}
	if err := s.ledger.Import(r.Context(), snap); err != nil {
		s.fail(w, r, log.OpImport, err)
		return
	}

	imported := map[string]any{"profile": snap.Profile != nil}
	if snap.Transactions != nil {
		imported["transactions"] = len(snap.Transactions)
	}
	if snap.Invoices != nil {
		imported["invoices"] = len(snap.Invoices)
	}
	NewJSONResponse().Data(map[string]any{"imported": imported}).Write(w)
}

func (s *Server) handleDeleteData(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Reset(r.Context()); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
