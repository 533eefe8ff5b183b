package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"smartfin/internal/core"
	"smartfin/internal/ledger"

	_ "modernc.org/sqlite"
)

// timestampLayout has a fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// PendingSync is the minimal data the sync queue needs about a row.
type PendingSync struct {
	ID        string
	Version   int64
	CreatedAt time.Time
}

// SQLiteRepository implements ledger.Store on a SQLite file and tracks
// which transactions still have to be mirrored.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises them anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const transactionColumns = `id, type, amount, category, date, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner, extra ...any) (core.Transaction, error) {
	var (
		tx                 core.Transaction
		typ                string
		amount             sql.NullFloat64
		date, created, upd sql.NullString
	)
	dest := append([]any{&tx.ID, &typ, &amount, &tx.Category, &date, &tx.Notes, &created, &upd}, extra...)
	if err := row.Scan(dest...); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	tx.Amount = core.NaN()
	if amount.Valid {
		tx.Amount = core.Amount(amount.Float64)
	}
	tx.Date = parseDate(date)
	tx.CreatedAt = parseTimestamp(created)
	tx.UpdatedAt = parseTimestamp(upd)
	return tx, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if from, to, ok := dateRange(f); ok {
		where = append(where, "date >= ? AND date < ?")
		args = append(args, from, to)
	}
	q := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date, created_at, id"

	rows, err := r.db.QueryContext(ctx, q, args...)
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

// dateRange turns a year or year+month filter into a half-open range of
// YYYY-MM-DD strings.
func dateRange(f ledger.Filter) (string, string, bool) {
	if f.Year == 0 {
		return "", "", false
	}
	if f.Month == 0 {
		from := time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return from.Format(core.DateLayout), from.AddDate(1, 0, 0).Format(core.DateLayout), true
	}
	from := time.Date(f.Year, f.Month, 1, 0, 0, 0, 0, time.UTC)
	return from.Format(core.DateLayout), from.AddDate(0, 1, 0).Format(core.DateLayout), true
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	tx, _, err := r.GetTransactionVersion(ctx, id)
	return tx, err
}

// GetTransactionVersion returns the transaction with its row version.
func (r *SQLiteRepository) GetTransactionVersion(ctx context.Context, id string) (core.Transaction, int64, error) {
	var version int64
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+`, version FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, 0, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, 0, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, version, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertTransaction(ctx context.Context, db execer, tx core.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			type = excluded.type,
			amount = excluded.amount,
			category = excluded.category,
			date = excluded.date,
			notes = excluded.notes,
			updated_at = excluded.updated_at,
			version = transactions.version + 1,
			sync_status = 'pending'`,
		tx.ID, string(tx.Type), amountValue(tx.Amount), tx.Category, dateValue(tx.Date), tx.Notes,
		timestampValue(tx.CreatedAt), timestampValue(tx.UpdatedAt))
	return err
}

func (r *SQLiteRepository) SaveTransaction(ctx context.Context, tx core.Transaction) error {
	if err := upsertTransaction(ctx, r.db, tx); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	slog.DebugContext(ctx, "Transaction saved to SQLite", "id", tx.ID, "type", tx.Type, "amount", tx.Amount.Float64())
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetProfile(ctx context.Context) (core.UserProfile, error) {
	var (
		p   core.UserProfile
		ai  int64
		upd sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT name, income_source, currency, tracking_frequency,
		       monthly_income_goal, monthly_expense_limit, ai_suggestions, updated_at
		FROM profile WHERE id = 1`).
		Scan(&p.Name, &p.IncomeSource, &p.Currency, &p.TrackingFrequency,
			&p.MonthlyIncomeGoal, &p.MonthlyExpenseLimit, &ai, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultProfile(), nil
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	p.AISuggestions = ai != 0
	p.UpdatedAt = parseTimestamp(upd)
	return p, nil
}

func upsertProfile(ctx context.Context, db execer, p core.UserProfile) error {
	ai := 0
	if p.AISuggestions {
		ai = 1
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO profile (id, name, income_source, currency, tracking_frequency,
		                     monthly_income_goal, monthly_expense_limit, ai_suggestions, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			income_source = excluded.income_source,
			currency = excluded.currency,
			tracking_frequency = excluded.tracking_frequency,
			monthly_income_goal = excluded.monthly_income_goal,
			monthly_expense_limit = excluded.monthly_expense_limit,
			ai_suggestions = excluded.ai_suggestions,
			updated_at = excluded.updated_at`,
		p.Name, p.IncomeSource, p.Currency, p.TrackingFrequency,
		p.MonthlyIncomeGoal, p.MonthlyExpenseLimit, ai, timestampValue(p.UpdatedAt))
	return err
}

func (r *SQLiteRepository) SaveProfile(ctx context.Context, p core.UserProfile) error {
	if err := upsertProfile(ctx, r.db, p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

const invoiceColumns = `id, client_name, total, status, currency, date, due_date, notes, created_at, updated_at`

func scanInvoice(row rowScanner) (core.Invoice, error) {
	var (
		inv                           core.Invoice
		status                        string
		date, due, created, updatedAt sql.NullString
	)
	if err := row.Scan(&inv.ID, &inv.ClientName, &inv.Total, &status, &inv.Currency,
		&date, &due, &inv.Notes, &created, &updatedAt); err != nil {
		return core.Invoice{}, err
	}
	inv.Status = core.InvoiceStatus(status)
	inv.Date = parseDate(date)
	inv.DueDate = parseDate(due)
	inv.CreatedAt = parseTimestamp(created)
	inv.UpdatedAt = parseTimestamp(updatedAt)
	return inv, nil
}

func (r *SQLiteRepository) ListInvoices(ctx context.Context) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	out := make([]core.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}

	// Items are loaded after the invoice cursor is closed: the pool holds a
	// single connection.
	for i := range out {
		items, err := r.invoiceItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (r *SQLiteRepository) invoiceItems(ctx context.Context, id string) ([]core.InvoiceItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT description, amount FROM invoice_items WHERE invoice_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()
	items := make([]core.InvoiceItem, 0)
	for rows.Next() {
		var (
			it  core.InvoiceItem
			amt float64
		)
		if err := rows.Scan(&it.Description, &amt); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		it.Amount = core.Amount(amt)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *SQLiteRepository) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice %s: %w", id, err)
	}
	if inv.Items, err = r.invoiceItems(ctx, id); err != nil {
		return core.Invoice{}, err
	}
	return inv, nil
}

func upsertInvoice(ctx context.Context, db execer, inv core.Invoice) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			client_name = excluded.client_name,
			total = excluded.total,
			status = excluded.status,
			currency = excluded.currency,
			date = excluded.date,
			due_date = excluded.due_date,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		inv.ID, inv.ClientName, inv.Total, string(inv.Status), inv.Currency,
		dateValue(inv.Date), dateValue(inv.DueDate), inv.Notes,
		timestampValue(inv.CreatedAt), timestampValue(inv.UpdatedAt))
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = ?`, inv.ID); err != nil {
		return err
	}
	for i, it := range inv.Items {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO invoice_items (invoice_id, position, description, amount) VALUES (?, ?, ?, ?)`,
			inv.ID, i, it.Description, it.Amount.Float64()); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) SaveInvoice(ctx context.Context, inv core.Invoice) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertInvoice(ctx, tx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) DeleteInvoice(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = ?`, id); err != nil {
			return fmt.Errorf("delete invoice items: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete invoice: %w", err)
		}
		return requireAffected(res)
	})
}

func (r *SQLiteRepository) Replace(ctx context.Context, snap ledger.Snapshot) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if snap.Profile != nil {
			if err := upsertProfile(ctx, tx, *snap.Profile); err != nil {
				return fmt.Errorf("replace profile: %w", err)
			}
		}
		if snap.Transactions != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
				return fmt.Errorf("clear transactions: %w", err)
			}
			for _, t := range snap.Transactions {
				if err := upsertTransaction(ctx, tx, t); err != nil {
					return fmt.Errorf("insert transaction %s: %w", t.ID, err)
				}
			}
		}
		if snap.Invoices != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_items`); err != nil {
				return fmt.Errorf("clear invoice items: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM invoices`); err != nil {
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

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// PendingSyncTransactions returns up to limit rows not yet mirrored,
// oldest first.
func (r *SQLiteRepository) PendingSyncTransactions(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, created_at FROM transactions
		WHERE sync_status = 'pending'
		ORDER BY created_at, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()
	out := make([]PendingSync, 0)
	for rows.Next() {
		var (
			p       PendingSync
			created sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Version, &created); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		p.CreatedAt = parseTimestamp(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced records a successful mirror of the given version. A row
// edited since then stays pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = 'synced', synced_at = ?
		WHERE id = ? AND version = ?`,
		timestampValue(time.Now()), id, version)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id, "version", version)
	return nil
}

// MarkSyncError flags a row whose mirror attempt failed permanently.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET sync_status = 'error'
		WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id, "version", version)
	return nil
}

// SyncCounts returns the number of rows per sync status.
func (r *SQLiteRepository) SyncCounts(ctx context.Context) (map[SyncStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sync_status, COUNT(*) FROM transactions GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("count sync status: %w", err)
	}
	defer rows.Close()
	out := map[SyncStatus]int{}
	for rows.Next() {
		var (
			s string
			n int
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("scan sync count: %w", err)
		}
		out[SyncStatus(s)] = n
	}
	return out, rows.Err()
}

func amountValue(a core.Amount) any {
	if !a.Valid() {
		return nil
	}
	return a.Float64()
}

func dateValue(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func timestampValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timestampLayout)
}

func parseDate(s sql.NullString) core.Date {
	if !s.Valid {
		return core.Date{}
	}
	d, err := core.ParseDate(s.String)
	if err != nil {
		return core.Date{}
	}
	return d
}

func parseTimestamp(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
