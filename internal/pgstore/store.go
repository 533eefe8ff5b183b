// Package pgstore keeps the ledger in PostgreSQL through a pgx pool.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartfin/internal/core"
	"smartfin/internal/ledger"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool *pgxpool.Pool
}

var _ ledger.Store = (*Store)(nil)

// Open connects to dsn and makes sure the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const transactionColumns = `id, type, amount, category, date, notes, created_at, updated_at`

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx               core.Transaction
		typ              string
		amount           *float64
		date             *time.Time
		created, updated *time.Time
	)
	if err := row.Scan(&tx.ID, &typ, &amount, &tx.Category, &date, &tx.Notes, &created, &updated); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	tx.Amount = core.NaN()
	if amount != nil {
		tx.Amount = core.Amount(*amount)
	}
	tx.Date = fromDate(date)
	tx.CreatedAt = fromTime(created)
	tx.UpdatedAt = fromTime(updated)
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Year != 0 {
		from := time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(1, 0, 0)
		if f.Month != 0 {
			from = time.Date(f.Year, f.Month, 1, 0, 0, 0, 0, time.UTC)
			to = from.AddDate(0, 1, 0)
		}
		args = append(args, from, to)
		where = append(where, fmt.Sprintf("date >= $%d AND date < $%d", len(args)-1, len(args)))
	}
	q := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date ASC NULLS FIRST, created_at ASC NULLS FIRST, id"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := scanTransaction(s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func upsertTransaction(ctx context.Context, q querier, tx core.Transaction) error {
	_, err := q.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			amount = EXCLUDED.amount,
			category = EXCLUDED.category,
			date = EXCLUDED.date,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`,
		tx.ID, string(tx.Type), toAmount(tx.Amount), tx.Category, toDate(tx.Date), tx.Notes,
		toTime(tx.CreatedAt), toTime(tx.UpdatedAt))
	return err
}

func (s *Store) SaveTransaction(ctx context.Context, tx core.Transaction) error {
	if err := upsertTransaction(ctx, s.pool, tx); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context) (core.UserProfile, error) {
	var (
		p       core.UserProfile
		updated *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT name, income_source, currency, tracking_frequency,
		       monthly_income_goal, monthly_expense_limit, ai_suggestions, updated_at
		FROM profile WHERE id = 1`).
		Scan(&p.Name, &p.IncomeSource, &p.Currency, &p.TrackingFrequency,
			&p.MonthlyIncomeGoal, &p.MonthlyExpenseLimit, &p.AISuggestions, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.DefaultProfile(), nil
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	p.UpdatedAt = fromTime(updated)
	return p, nil
}

func upsertProfile(ctx context.Context, q querier, p core.UserProfile) error {
	_, err := q.Exec(ctx, `
		INSERT INTO profile (id, name, income_source, currency, tracking_frequency,
		                     monthly_income_goal, monthly_expense_limit, ai_suggestions, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			income_source = EXCLUDED.income_source,
			currency = EXCLUDED.currency,
			tracking_frequency = EXCLUDED.tracking_frequency,
			monthly_income_goal = EXCLUDED.monthly_income_goal,
			monthly_expense_limit = EXCLUDED.monthly_expense_limit,
			ai_suggestions = EXCLUDED.ai_suggestions,
			updated_at = EXCLUDED.updated_at`,
		p.Name, p.IncomeSource, p.Currency, p.TrackingFrequency,
		p.MonthlyIncomeGoal, p.MonthlyExpenseLimit, p.AISuggestions, toTime(p.UpdatedAt))
	return err
}

func (s *Store) SaveProfile(ctx context.Context, p core.UserProfile) error {
	if err := upsertProfile(ctx, s.pool, p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

const invoiceColumns = `id, client_name, items, total, status, currency, date, due_date, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (core.Invoice, error) {
	var (
		inv              core.Invoice
		items            []byte
		status           string
		date, due        *time.Time
		created, updated *time.Time
	)
	if err := row.Scan(&inv.ID, &inv.ClientName, &items, &inv.Total, &status, &inv.Currency,
		&date, &due, &inv.Notes, &created, &updated); err != nil {
		return core.Invoice{}, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return core.Invoice{}, fmt.Errorf("decode invoice items: %w", err)
	}
	inv.Status = core.InvoiceStatus(status)
	inv.Date = fromDate(date)
	inv.DueDate = fromDate(due)
	inv.CreatedAt = fromTime(created)
	inv.UpdatedAt = fromTime(updated)
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context) ([]core.Invoice, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY created_at DESC NULLS LAST, id`)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	out := make([]core.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return out, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Invoice{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice %s: %w", id, err)
	}
	return inv, nil
}

func upsertInvoice(ctx context.Context, q querier, inv core.Invoice) error {
	items := inv.Items
	if items == nil {
		items = []core.InvoiceItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode invoice items: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			client_name = EXCLUDED.client_name,
			items = EXCLUDED.items,
			total = EXCLUDED.total,
			status = EXCLUDED.status,
			currency = EXCLUDED.currency,
			date = EXCLUDED.date,
			due_date = EXCLUDED.due_date,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`,
		inv.ID, inv.ClientName, string(raw), inv.Total, string(inv.Status), inv.Currency,
		toDate(inv.Date), toDate(inv.DueDate), inv.Notes, toTime(inv.CreatedAt), toTime(inv.UpdatedAt))
	return err
}

func (s *Store) SaveInvoice(ctx context.Context, inv core.Invoice) error {
	if err := upsertInvoice(ctx, s.pool, inv); err != nil {
		return fmt.Errorf("save invoice: %w", err)
	}
	return nil
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (s *Store) Replace(ctx context.Context, snap ledger.Snapshot) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if snap.Profile != nil {
			if err := upsertProfile(ctx, tx, *snap.Profile); err != nil {
				return fmt.Errorf("replace profile: %w", err)
			}
		}
		if snap.Transactions != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM transactions`); err != nil {
				return fmt.Errorf("clear transactions: %w", err)
			}
			for _, t := range snap.Transactions {
				if err := upsertTransaction(ctx, tx, t); err != nil {
					return fmt.Errorf("insert transaction %s: %w", t.ID, err)
				}
			}
		}
		if snap.Invoices != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM invoices`); err != nil {
				return fmt.Errorf("clear invoices: %w", err)
			}
			for _, inv := range snap.Invoices {
				if err := upsertInvoice(ctx, tx, inv); err != nil {
					return fmt.Errorf("insert invoice %s: %w", inv.ID, err)
				}
			}
		}
		return nil
	})
}

func toAmount(a core.Amount) *float64 {
	if !a.Valid() {
		return nil
	}
	f := a.Float64()
	return &f
}

func toDate(d core.Date) *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func toTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromDate(t *time.Time) core.Date {
	if t == nil {
		return core.Date{}
	}
	y, m, d := t.Date()
	return core.NewDate(y, int(m), d)
}

func fromTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
