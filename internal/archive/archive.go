// Package archive reads and writes the backup document used by export,
// import and seeding, and renders the ledger as an XLSX workbook.
package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"smartfin/internal/core"
	"smartfin/internal/ledger"
)

// Version is written into every exported document.
const Version = "1.0"

// MaxDocumentSize bounds how much Decode reads.
const MaxDocumentSize = 10 << 20

var ErrInvalidDocument = errors.New("invalid backup document")

// Document is the backup file layout.
type Document struct {
	Profile      *core.UserProfile  `json:"profile"`
	Transactions []core.Transaction `json:"transactions"`
	Invoices     []core.Invoice     `json:"invoices"`
	ExportDate   time.Time          `json:"exportDate"`
	Version      string             `json:"version"`
}

// NewDocument wraps a snapshot for export. Missing sections are written as
// empty arrays so the file can be imported back.
func NewDocument(snap ledger.Snapshot, now time.Time) Document {
	doc := Document{
		Profile:      snap.Profile,
		Transactions: snap.Transactions,
		Invoices:     snap.Invoices,
		ExportDate:   now.UTC(),
		Version:      Version,
	}
	if doc.Profile == nil {
		p := core.DefaultProfile()
		doc.Profile = &p
	}
	if doc.Transactions == nil {
		doc.Transactions = []core.Transaction{}
	}
	if doc.Invoices == nil {
		doc.Invoices = []core.Invoice{}
	}
	return doc
}

// Filename is the suggested download name for a backup taken at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("smartfin-backup-%s.json", now.UTC().Format(core.DateLayout))
}

func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// rawDocument keeps each section undecoded so its shape can be checked.
type rawDocument struct {
	Profile      json.RawMessage `json:"profile"`
	Transactions json.RawMessage `json:"transactions"`
	Invoices     json.RawMessage `json:"invoices"`
}

// Decode reads a backup document into a snapshot. Only the sections present
// with the right shape are set: a profile must be an object, transactions
// and invoices must be arrays. Anything else leaves the section nil so
// Replace keeps the stored data.
func Decode(r io.Reader) (ledger.Snapshot, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("read backup: %w", err)
	}
	if len(data) > MaxDocumentSize {
		return ledger.Snapshot{}, fmt.Errorf("%w: larger than %d bytes", ErrInvalidDocument, MaxDocumentSize)
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var snap ledger.Snapshot
	if isKind(raw.Profile, '{') {
		p := core.DefaultProfile()
		if err := json.Unmarshal(raw.Profile, &p); err != nil {
			return ledger.Snapshot{}, fmt.Errorf("%w: profile: %v", ErrInvalidDocument, err)
		}
		snap.Profile = &p
	}
	if isKind(raw.Transactions, '[') {
		txs := []core.Transaction{}
		if err := json.Unmarshal(raw.Transactions, &txs); err != nil {
			return ledger.Snapshot{}, fmt.Errorf("%w: transactions: %v", ErrInvalidDocument, err)
		}
		snap.Transactions = txs
	}
	if isKind(raw.Invoices, '[') {
		invs := []core.Invoice{}
		if err := json.Unmarshal(raw.Invoices, &invs); err != nil {
			return ledger.Snapshot{}, fmt.Errorf("%w: invoices: %v", ErrInvalidDocument, err)
		}
		for i := range invs {
			invs[i] = invs[i].Normalize()
		}
		snap.Invoices = invs
	}
	return snap, nil
}

// ReadFile decodes the backup stored at path.
func ReadFile(path string) (ledger.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func isKind(raw json.RawMessage, open byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == open
}
