package memory

import (
	"context"
	"fmt"
	"sync"

	"smartfin/internal/core"
	"smartfin/internal/ledger"
)

// Mirror keeps mirrored rows in insertion order, like a sheet would.
type Mirror struct {
	mu   sync.Mutex
	rows []core.Transaction
}

var _ ledger.Mirror = (*Mirror)(nil)

func NewMirror() *Mirror {
	return &Mirror{}
}

func (m *Mirror) Upsert(_ context.Context, tx core.Transaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == tx.ID {
			m.rows[i] = tx
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	m.rows = append(m.rows, tx)
	return fmt.Sprintf("mem:%d", len(m.rows)), nil
}

func (m *Mirror) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Mirror) List(_ context.Context) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Transaction(nil), m.rows...), nil
}
